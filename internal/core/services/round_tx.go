package services

import (
	"context"
	"errors"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/core/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("spsc-cashround/services")

// roundTx runs a mutation under the round lock, inside one transaction, with
// the round row loaded FOR UPDATE.
type roundTx struct {
	store  *repositories.Store
	locker RoundLocker
	now    func() time.Time
}

func newRoundTx(store *repositories.Store, locker RoundLocker) roundTx {
	return roundTx{store: store, locker: locker, now: time.Now}
}

// SetClock replaces the time source used for timestamps and default dates
func (t *roundTx) SetClock(now func() time.Time) {
	t.now = now
}

func (t *roundTx) mutate(ctx context.Context, roundID uint, fn func(ctx context.Context, r *repositories.Repos, round *models.CashRound) error) error {
	return t.locker.WithRoundLock(ctx, roundID, func(ctx context.Context) error {
		return t.store.Transaction(ctx, func(r *repositories.Repos) error {
			round, err := r.Rounds.GetForUpdate(ctx, roundID)
			if err != nil {
				return notFound(err, domain.ErrRoundNotFound)
			}
			return fn(ctx, r, round)
		})
	})
}

// getRound loads a round outside of any transaction
func (t *roundTx) getRound(ctx context.Context, roundID uint) (*models.CashRound, error) {
	round, err := t.store.Repos().Rounds.GetByID(ctx, roundID)
	if err != nil {
		return nil, notFound(err, domain.ErrRoundNotFound)
	}
	return round, nil
}

// record writes one history row
func record(ctx context.Context, r *repositories.Repos, round *models.CashRound, eventType string, from domain.RoundStatus, cycleID *uint, description string, actor domain.Actor) error {
	return r.Events.Create(ctx, &models.RoundEvent{
		RoundID:     round.ID,
		EventType:   eventType,
		FromStatus:  string(from),
		ToStatus:    string(round.Status),
		CycleID:     cycleID,
		Description: description,
		PerformedBy: actor.UserID,
		IPAddress:   actor.IPAddress,
	})
}

// loadSchedule returns the round's schedule or a NoSchedule rule error
func loadSchedule(ctx context.Context, r *repositories.Repos, round *models.CashRound) (*models.RotationSchedule, error) {
	sched, err := r.Schedules.GetByRoundID(ctx, round.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewRuleError(domain.ErrNoSchedule, round.ID, round.Status, "round has no rotation schedule")
	}
	return sched, err
}

func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startSpan(ctx context.Context, name string, roundID uint) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("cash_round.id", int64(roundID))))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
