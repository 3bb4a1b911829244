package services

import (
	"context"
	"fmt"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DeductionService manages deduction rules and cycle deduction reports
type DeductionService struct {
	roundTx
	sections SectionService
}

// NewDeductionService creates a new deduction service
func NewDeductionService(store *repositories.Store, locker RoundLocker, sections SectionService) *DeductionService {
	return &DeductionService{
		roundTx:  newRoundTx(store, locker),
		sections: sections,
	}
}

// CreateRuleInput represents create deduction rule input
type CreateRuleInput struct {
	SectionID     uint
	AppliesTo     string
	TargetMembers []string
	EffectiveFrom *time.Time
}

// CycleDeductionReport is the per-member deduction breakdown of one cycle
type CycleDeductionReport struct {
	CycleID   uint                       `json:"cycle_id"`
	RoundID   uint                       `json:"round_id"`
	Status    domain.CycleStatus         `json:"status"`
	Recipient string                     `json:"recipient"`
	Lines     []domain.DeductionLine     `json:"lines"`
	Totals    map[string]decimal.Decimal `json:"totals"`
	Total     decimal.Decimal            `json:"total"`
}

// CreateRule adds a deduction rule. The amount is copied from the ledger
// section at creation time.
func (s *DeductionService) CreateRule(ctx context.Context, roundID uint, input CreateRuleInput, actor domain.Actor) (*models.DeductionRule, error) {
	target, err := domain.ParseTarget(input.AppliesTo, input.TargetMembers)
	if err != nil {
		return nil, err
	}
	section, err := s.sections.GetSection(ctx, input.SectionID)
	if err != nil {
		return nil, err
	}
	if section.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: section %s has a negative amount", domain.ErrInvalidInput, section.Code)
	}

	var rule *models.DeductionRule
	err = s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		if err := domain.CanEditRound(round.ID, round.Status); err != nil {
			return err
		}

		if target.Kind == domain.TargetSpecific {
			active, err := r.Memberships.ListActiveMembNos(ctx, round.ID)
			if err != nil {
				return err
			}
			set := make(map[string]struct{}, len(active))
			for _, m := range active {
				set[m] = struct{}{}
			}
			for _, m := range target.Members {
				if _, ok := set[m]; !ok {
					return fmt.Errorf("%w: %s", domain.ErrMemberNotInRound, m)
				}
			}
		}

		effective := dateOnly(s.now())
		if input.EffectiveFrom != nil {
			effective = dateOnly(*input.EffectiveFrom)
		}

		rule = &models.DeductionRule{
			RoundID:       round.ID,
			SectionID:     section.ID,
			SectionName:   section.Name,
			AppliesTo:     string(target.Kind),
			TargetMembers: models.MembNoList(target.Members),
			Amount:        section.Amount,
			IsActive:      true,
			EffectiveFrom: effective,
			CreatedBy:     actor.UserID,
		}
		if err := r.Rules.Create(ctx, rule); err != nil {
			return err
		}

		desc := fmt.Sprintf("เพิ่มรายการหัก %s (%s) %s บาท", section.Name, target, section.Amount.StringFixed(2))
		return record(ctx, r, round, models.EventTypeRuleCreate, round.Status, nil, desc, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithFields(logrus.Fields{
		"rule_id":    rule.ID,
		"section_id": rule.SectionID,
		"applies_to": rule.AppliesTo,
	}).Info("✅ Deduction rule created")
	return rule, nil
}

// DeactivateRule stops a rule from applying to future cycles. Recorded
// deductions of finalized cycles are untouched.
func (s *DeductionService) DeactivateRule(ctx context.Context, ruleID uint, actor domain.Actor) (*models.DeductionRule, error) {
	existing, err := s.store.Repos().Rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, notFound(err, domain.ErrRuleNotFound)
	}

	var rule *models.DeductionRule
	err = s.mutate(ctx, existing.RoundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		rl, err := r.Rules.GetByID(ctx, ruleID)
		if err != nil {
			return notFound(err, domain.ErrRuleNotFound)
		}
		rule = rl
		if !rl.IsActive {
			return nil
		}

		now := s.now()
		rl.IsActive = false
		rl.DeactivatedAt = &now
		if err := r.Rules.Update(ctx, rl); err != nil {
			return err
		}
		desc := fmt.Sprintf("ยกเลิกรายการหัก #%d %s", rl.ID, rl.SectionName)
		return record(ctx, r, round, models.EventTypeRuleDeactivate, round.Status, nil, desc, actor)
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(existing.RoundID).WithField("rule_id", ruleID).Info("✅ Deduction rule deactivated")
	return rule, nil
}

// ListRules lists deduction rules of a round
func (s *DeductionService) ListRules(ctx context.Context, roundID uint, activeOnly bool) ([]*models.DeductionRule, error) {
	if _, err := s.getRound(ctx, roundID); err != nil {
		return nil, err
	}
	return s.store.Repos().Rules.ListByRound(ctx, roundID, activeOnly)
}

// CycleDeductions reports the deductions of a cycle: recorded lines once the
// cycle is finalized, a live evaluation while it is open.
func (s *DeductionService) CycleDeductions(ctx context.Context, cycleID uint) (*CycleDeductionReport, error) {
	r := s.store.Repos()
	c, err := r.Cycles.GetWithDeductions(ctx, cycleID)
	if err != nil {
		return nil, notFound(err, domain.ErrCycleNotFound)
	}

	lines, err := cycleLines(ctx, r, c)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []domain.DeductionLine{}
	}

	totals := domain.SumLines(lines)
	total := decimal.Zero
	for _, amt := range totals {
		total = total.Add(amt)
	}

	return &CycleDeductionReport{
		CycleID:   c.ID,
		RoundID:   c.RoundID,
		Status:    c.Status,
		Recipient: c.RecipientMembNo,
		Lines:     lines,
		Totals:    totals,
		Total:     total,
	}, nil
}
