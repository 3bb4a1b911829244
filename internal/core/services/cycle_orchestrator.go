package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CycleOrchestrator keeps exactly one current collection cycle per active
// round and ties cycle progress to the rotation cursor.
type CycleOrchestrator struct {
	roundTx
	recorder CollectionRecorder
}

// NewCycleOrchestrator creates a new orchestrator. A nil recorder writes
// finalized deductions to the local collection_deductions table inside the
// finalize transaction.
func NewCycleOrchestrator(store *repositories.Store, locker RoundLocker, recorder CollectionRecorder) *CycleOrchestrator {
	return &CycleOrchestrator{
		roundTx:  newRoundTx(store, locker),
		recorder: recorder,
	}
}

// OpenCycleInput represents the optional inputs of a new cycle
type OpenCycleInput struct {
	MeetingDate *time.Time
	Remark      string
}

// CycleResult is a cycle together with its per-member deductions.
// Open cycles carry a preview, finalized cycles their recorded lines.
type CycleResult struct {
	Cycle      *models.Cycle              `json:"cycle"`
	Lines      []domain.DeductionLine     `json:"lines"`
	Deductions map[string]decimal.Decimal `json:"deductions"`
}

func newCycleResult(c *models.Cycle, lines []domain.DeductionLine) *CycleResult {
	if lines == nil {
		lines = []domain.DeductionLine{}
	}
	return &CycleResult{
		Cycle:      c,
		Lines:      lines,
		Deductions: domain.SumLines(lines),
	}
}

// StartRound moves a planned round to active, resets the cursor and opens
// cycle #1 for the first recipient.
func (s *CycleOrchestrator) StartRound(ctx context.Context, roundID uint, input OpenCycleInput, actor domain.Actor) (result *CycleResult, err error) {
	ctx, span := startSpan(ctx, "CycleOrchestrator.StartRound", roundID)
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		sched, err := r.Schedules.GetByRoundID(ctx, round.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		facts := domain.LifecycleFacts{HasSchedule: sched != nil}
		if sched != nil {
			facts.ScheduleSize = len(sched.RotationOrder)
		}

		from := round.Status
		to, err := domain.Transition(round.ID, from, domain.EventStart, facts)
		if err != nil {
			return err
		}

		rotation := sched.ToDomain()
		rotation.Cursor = 0
		rotation.IsActive = true
		sched.Apply(rotation)
		if err := r.Schedules.Update(ctx, sched); err != nil {
			return err
		}

		round.Status = to
		if err := r.Rounds.Update(ctx, round); err != nil {
			return err
		}
		if err := record(ctx, r, round, models.EventTypeStatusChange, from, nil, "เริ่มวง", actor); err != nil {
			return err
		}

		meeting := round.StartDate
		if input.MeetingDate != nil {
			meeting = *input.MeetingDate
		}
		result, err = s.openCycle(ctx, r, round, rotation, dateOnly(meeting), input.Remark, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithFields(logrus.Fields{
		"cycle_id":  result.Cycle.ID,
		"recipient": result.Cycle.RecipientMembNo,
	}).Info("✅ Cash round started")
	return result, nil
}

// StartNextCycle opens a new cycle at the current cursor. It fails with
// ErrCycleInProgress while another cycle of the round is open.
func (s *CycleOrchestrator) StartNextCycle(ctx context.Context, roundID uint, input OpenCycleInput, actor domain.Actor) (result *CycleResult, err error) {
	ctx, span := startSpan(ctx, "CycleOrchestrator.StartNextCycle", roundID)
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		open, err := r.Cycles.GetOpenByRound(ctx, round.ID)
		if err != nil {
			return err
		}

		if _, err := domain.Transition(round.ID, round.Status, domain.EventAdvance, domain.LifecycleFacts{
			HasSchedule: true,
			OpenCycle:   open != nil,
		}); err != nil {
			return err
		}

		sched, err := loadSchedule(ctx, r, round)
		if err != nil {
			return err
		}

		meeting := s.now()
		if input.MeetingDate != nil {
			meeting = *input.MeetingDate
		}
		result, err = s.openCycle(ctx, r, round, sched.ToDomain(), dateOnly(meeting), input.Remark, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(roundID).WithFields(logrus.Fields{
		"cycle_id":  result.Cycle.ID,
		"sequence":  result.Cycle.Sequence,
		"recipient": result.Cycle.RecipientMembNo,
	}).Info("✅ Cycle opened")
	return result, nil
}

func (s *CycleOrchestrator) openCycle(ctx context.Context, r *repositories.Repos, round *models.CashRound, rotation *domain.RotationSchedule, meeting time.Time, remark string, actor domain.Actor) (*CycleResult, error) {
	recipient, err := rotation.CurrentRecipient()
	if err != nil {
		return nil, domain.NewRuleError(err, round.ID, round.Status, "rotation schedule has no members")
	}

	seq, err := r.Cycles.NextSequence(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	openRoundID := round.ID
	cycle := &models.Cycle{
		RoundID:            round.ID,
		Sequence:           seq,
		Position:           rotation.Cursor,
		RecipientMembNo:    recipient,
		ContributionAmount: round.WeeklyAmount,
		MeetingDate:        meeting,
		Status:             domain.CycleOpen,
		Reference:          uuid.NewString(),
		OpenRoundID:        &openRoundID,
		Remark:             remark,
	}
	if err := r.Cycles.Create(ctx, cycle); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("เปิดงวดที่ %d ผู้รับเงิน %s", cycle.Sequence, recipient)
	if err := record(ctx, r, round, models.EventTypeCycleOpen, round.Status, &cycle.ID, desc, actor); err != nil {
		return nil, err
	}

	lines, err := computeLines(ctx, r, round.ID, recipient, meeting)
	if err != nil {
		return nil, err
	}
	return newCycleResult(cycle, lines), nil
}

// FinalizeCycle closes an open cycle, moves the rotation cursor to the member
// after the cycle's recipient and hands the cycle's deductions to the collection recorder, all in
// one transaction.
func (s *CycleOrchestrator) FinalizeCycle(ctx context.Context, cycleID uint, actor domain.Actor) (result *CycleResult, err error) {
	cycle, err := s.store.Repos().Cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, notFound(err, domain.ErrCycleNotFound)
	}

	ctx, span := startSpan(ctx, "CycleOrchestrator.FinalizeCycle", cycle.RoundID)
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, cycle.RoundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		c, err := r.Cycles.GetByID(ctx, cycleID)
		if err != nil {
			return notFound(err, domain.ErrCycleNotFound)
		}
		if !c.IsOpen() {
			return domain.NewRuleError(domain.ErrNotOpen, round.ID, round.Status, "cycle %d is %s", c.ID, c.Status)
		}

		sched, err := loadSchedule(ctx, r, round)
		if err != nil {
			return err
		}
		rotation := sched.ToDomain()
		if err := rotation.AdvancePast(c.RecipientMembNo); err != nil {
			return domain.NewRuleError(err, round.ID, round.Status, "cannot advance rotation")
		}
		sched.Apply(rotation)
		if err := r.Schedules.Update(ctx, sched); err != nil {
			return err
		}

		lines, err := computeLines(ctx, r, round.ID, c.RecipientMembNo, c.MeetingDate)
		if err != nil {
			return err
		}
		rows := make([]models.CycleDeduction, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, models.CycleDeduction{
				CycleID:   c.ID,
				RuleID:    l.RuleID,
				SectionID: l.SectionID,
				MembNo:    l.MembNo,
				Amount:    l.Amount,
			})
		}
		if err := r.Cycles.CreateDeductions(ctx, rows); err != nil {
			return err
		}

		now := s.now()
		c.Status = domain.CycleFinalized
		c.FinalizedAt = &now
		c.OpenRoundID = nil
		if err := r.Cycles.Update(ctx, c); err != nil {
			return err
		}
		c.Deductions = rows

		desc := fmt.Sprintf("ปิดงวดที่ %d ผู้รับเงิน %s", c.Sequence, c.RecipientMembNo)
		if err := record(ctx, r, round, models.EventTypeCycleFinalize, round.Status, &c.ID, desc, actor); err != nil {
			return err
		}

		var recorder CollectionRecorder = r.Collections
		if s.recorder != nil {
			recorder = s.recorder
		}
		batch := &domain.CollectionBatch{
			Reference:   c.Reference,
			RoundID:     round.ID,
			CycleID:     c.ID,
			Recipient:   c.RecipientMembNo,
			MeetingDate: c.MeetingDate,
			Lines:       lines,
			Totals:      domain.SumLines(lines),
		}
		if err := recorder.RecordDeductions(ctx, batch); err != nil {
			return fmt.Errorf("record deductions of cycle %d: %w", c.ID, err)
		}

		result = newCycleResult(c, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(cycle.RoundID).WithFields(logrus.Fields{
		"cycle_id":  cycleID,
		"recipient": result.Cycle.RecipientMembNo,
		"lines":     len(result.Lines),
	}).Info("✅ Cycle finalized")
	return result, nil
}

// CancelCycle abandons an open cycle. The cursor does not move, so the same
// recipient is due in the next cycle.
func (s *CycleOrchestrator) CancelCycle(ctx context.Context, cycleID uint, remark string, actor domain.Actor) (result *CycleResult, err error) {
	cycle, err := s.store.Repos().Cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, notFound(err, domain.ErrCycleNotFound)
	}

	ctx, span := startSpan(ctx, "CycleOrchestrator.CancelCycle", cycle.RoundID)
	defer func() { endSpan(span, err) }()

	err = s.mutate(ctx, cycle.RoundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		c, err := r.Cycles.GetByID(ctx, cycleID)
		if err != nil {
			return notFound(err, domain.ErrCycleNotFound)
		}
		if !c.IsOpen() {
			return domain.NewRuleError(domain.ErrNotOpen, round.ID, round.Status, "cycle %d is %s", c.ID, c.Status)
		}

		now := s.now()
		c.Status = domain.CycleCancelled
		c.CancelledAt = &now
		c.OpenRoundID = nil
		if remark != "" {
			c.Remark = remark
		}
		if err := r.Cycles.Update(ctx, c); err != nil {
			return err
		}

		desc := fmt.Sprintf("ยกเลิกงวดที่ %d", c.Sequence)
		if err := record(ctx, r, round, models.EventTypeCycleCancel, round.Status, &c.ID, desc, actor); err != nil {
			return err
		}

		result = newCycleResult(c, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithRound(cycle.RoundID).WithField("cycle_id", cycleID).Info("✅ Cycle cancelled")
	return result, nil
}

// CompleteRound closes an active round with no open cycle
func (s *CycleOrchestrator) CompleteRound(ctx context.Context, roundID uint, actor domain.Actor) (round *models.CashRound, err error) {
	ctx, span := startSpan(ctx, "CycleOrchestrator.CompleteRound", roundID)
	defer func() { endSpan(span, err) }()

	round, err = s.closeRound(ctx, roundID, domain.EventComplete, "ปิดวง", actor)
	if err != nil {
		return nil, err
	}
	logger.WithRound(roundID).Info("✅ Cash round completed")
	return round, nil
}

// CancelRound cancels a planned or active round with no open cycle
func (s *CycleOrchestrator) CancelRound(ctx context.Context, roundID uint, actor domain.Actor) (round *models.CashRound, err error) {
	ctx, span := startSpan(ctx, "CycleOrchestrator.CancelRound", roundID)
	defer func() { endSpan(span, err) }()

	round, err = s.closeRound(ctx, roundID, domain.EventCancel, "ยกเลิกวง", actor)
	if err != nil {
		return nil, err
	}
	logger.WithRound(roundID).Info("✅ Cash round cancelled")
	return round, nil
}

func (s *CycleOrchestrator) closeRound(ctx context.Context, roundID uint, event domain.LifecycleEvent, desc string, actor domain.Actor) (*models.CashRound, error) {
	var closed *models.CashRound
	err := s.mutate(ctx, roundID, func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error {
		open, err := r.Cycles.GetOpenByRound(ctx, round.ID)
		if err != nil {
			return err
		}

		from := round.Status
		to, err := domain.Transition(round.ID, from, event, domain.LifecycleFacts{OpenCycle: open != nil})
		if err != nil {
			return err
		}

		now := s.now()
		sched, err := r.Schedules.GetByRoundID(ctx, round.ID)
		switch {
		case err == nil:
			end := dateOnly(now)
			sched.IsActive = false
			sched.EndDate = &end
			if err := r.Schedules.Update(ctx, sched); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		round.Status = to
		if to == domain.StatusCompleted {
			end := dateOnly(now)
			round.ActualEndDate = &end
		}
		if err := r.Rounds.Update(ctx, round); err != nil {
			return err
		}
		if err := record(ctx, r, round, models.EventTypeStatusChange, from, nil, desc, actor); err != nil {
			return err
		}

		closed = round
		return nil
	})
	return closed, err
}

// GetCycle gets a cycle with its deductions
func (s *CycleOrchestrator) GetCycle(ctx context.Context, cycleID uint) (*CycleResult, error) {
	r := s.store.Repos()
	c, err := r.Cycles.GetWithDeductions(ctx, cycleID)
	if err != nil {
		return nil, notFound(err, domain.ErrCycleNotFound)
	}
	lines, err := cycleLines(ctx, r, c)
	if err != nil {
		return nil, err
	}
	return newCycleResult(c, lines), nil
}

// CurrentCycle gets the open cycle of a round
func (s *CycleOrchestrator) CurrentCycle(ctx context.Context, roundID uint) (*CycleResult, error) {
	if _, err := s.getRound(ctx, roundID); err != nil {
		return nil, err
	}

	r := s.store.Repos()
	open, err := r.Cycles.GetOpenByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, domain.ErrCycleNotFound
	}

	lines, err := cycleLines(ctx, r, open)
	if err != nil {
		return nil, err
	}
	return newCycleResult(open, lines), nil
}

// ListCycles lists cycles of a round, latest first unless ascending is set
func (s *CycleOrchestrator) ListCycles(ctx context.Context, roundID uint, offset, limit int, ascending bool) ([]*models.Cycle, int64, error) {
	if _, err := s.getRound(ctx, roundID); err != nil {
		return nil, 0, err
	}
	return s.store.Repos().Cycles.ListByRound(ctx, roundID, offset, limit, ascending)
}

// computeLines evaluates the round's rule set for one recipient and date
func computeLines(ctx context.Context, r *repositories.Repos, roundID uint, recipient string, date time.Time) ([]domain.DeductionLine, error) {
	rows, err := r.Rules.ListByRound(ctx, roundID, false)
	if err != nil {
		return nil, err
	}
	rules := make(domain.DeductionRuleSet, 0, len(rows))
	for _, row := range rows {
		rule, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	active, err := r.Memberships.ListActiveMembNos(ctx, roundID)
	if err != nil {
		return nil, err
	}

	return rules.Lines(domain.CycleContext{Recipient: recipient, Date: date}, active), nil
}

// cycleLines returns recorded lines for finalized cycles, a fresh evaluation
// for open ones and nothing for cancelled ones.
func cycleLines(ctx context.Context, r *repositories.Repos, c *models.Cycle) ([]domain.DeductionLine, error) {
	switch c.Status {
	case domain.CycleFinalized:
		lines := make([]domain.DeductionLine, 0, len(c.Deductions))
		for i := range c.Deductions {
			lines = append(lines, c.Deductions[i].ToLine())
		}
		return lines, nil
	case domain.CycleOpen:
		return computeLines(ctx, r, c.RoundID, c.RecipientMembNo, c.MeetingDate)
	}
	return nil, nil
}
