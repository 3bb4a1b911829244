package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// TargetKind tells which members a deduction rule applies to
type TargetKind string

const (
	TargetRecipient  TargetKind = "recipient"
	TargetAllMembers TargetKind = "all_members"
	TargetSpecific   TargetKind = "specific"
)

// Target is a tagged variant: Members is only meaningful for TargetSpecific.
type Target struct {
	Kind    TargetKind
	Members []string
}

func RecipientTarget() Target  { return Target{Kind: TargetRecipient} }
func AllMembersTarget() Target { return Target{Kind: TargetAllMembers} }

func SpecificTarget(members ...string) Target {
	return Target{Kind: TargetSpecific, Members: slices.Clone(members)}
}

// ParseTarget builds a Target from its stored representation.
func ParseTarget(kind string, members []string) (Target, error) {
	switch TargetKind(kind) {
	case TargetRecipient, TargetAllMembers:
		if len(members) > 0 {
			return Target{}, fmt.Errorf("%w: target members are only allowed for %q rules", ErrInvalidInput, TargetSpecific)
		}
		return Target{Kind: TargetKind(kind)}, nil
	case TargetSpecific:
		if len(members) == 0 {
			return Target{}, fmt.Errorf("%w: %q rules need at least one target member", ErrInvalidInput, TargetSpecific)
		}
		return SpecificTarget(members...), nil
	default:
		return Target{}, fmt.Errorf("%w: unknown deduction target %q", ErrInvalidInput, kind)
	}
}

func (t Target) String() string {
	if t.Kind == TargetSpecific {
		return fmt.Sprintf("%s%v", t.Kind, t.Members)
	}
	return string(t.Kind)
}

// DeductionRule binds a ledger section amount to a set of members. Amount is
// the section amount snapshotted when the rule was created.
type DeductionRule struct {
	ID            uint
	SectionID     uint
	SectionName   string
	Target        Target
	Amount        decimal.Decimal
	IsActive      bool
	EffectiveFrom time.Time
}

// AppliesOn reports whether the rule is in force on the given date.
// Effective dates compare at day granularity.
func (r DeductionRule) AppliesOn(date time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.EffectiveFrom.IsZero() {
		return true
	}
	return !dayOf(r.EffectiveFrom).After(dayOf(date))
}

// members resolves the rule target for one cycle.
func (r DeductionRule) members(recipient string, activeMembers []string) []string {
	switch r.Target.Kind {
	case TargetRecipient:
		if recipient == "" {
			return nil
		}
		return []string{recipient}
	case TargetAllMembers:
		return dedupe(activeMembers)
	case TargetSpecific:
		active := make(map[string]struct{}, len(activeMembers))
		for _, m := range activeMembers {
			active[m] = struct{}{}
		}
		out := make([]string, 0, len(r.Target.Members))
		for _, m := range dedupe(r.Target.Members) {
			if _, ok := active[m]; ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// CycleContext is what a rule set is evaluated against.
type CycleContext struct {
	Recipient string
	Date      time.Time
}

// DeductionLine is one rule's contribution to one member's deduction.
type DeductionLine struct {
	RuleID    uint            `json:"rule_id"`
	SectionID uint            `json:"section_id"`
	MembNo    string          `json:"memb_no"`
	Amount    decimal.Decimal `json:"amount"`
}

// DeductionRuleSet is the full list of rules of a round.
type DeductionRuleSet []DeductionRule

// Lines returns the per-rule breakdown for a cycle. Inactive rules and rules
// not yet effective on the cycle date contribute nothing.
func (rs DeductionRuleSet) Lines(c CycleContext, activeMembers []string) []DeductionLine {
	var lines []DeductionLine
	for _, rule := range rs {
		if !rule.AppliesOn(c.Date) {
			continue
		}
		for _, m := range rule.members(c.Recipient, activeMembers) {
			lines = append(lines, DeductionLine{
				RuleID:    rule.ID,
				SectionID: rule.SectionID,
				MembNo:    m,
				Amount:    rule.Amount,
			})
		}
	}
	return lines
}

// Evaluate sums Lines per member. Rules stack additively.
func (rs DeductionRuleSet) Evaluate(c CycleContext, activeMembers []string) map[string]decimal.Decimal {
	return SumLines(rs.Lines(c, activeMembers))
}

// SumLines folds deduction lines into a per-member total.
func SumLines(lines []DeductionLine) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, l := range lines {
		totals[l.MembNo] = totals[l.MembNo].Add(l.Amount)
	}
	return totals
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
