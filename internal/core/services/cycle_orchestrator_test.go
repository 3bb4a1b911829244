package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleOrchestrator_FullRotation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	// cycle 1: B receives
	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, started.Cycle.Sequence)
	assert.Equal(t, 0, started.Cycle.Position)
	assert.Equal(t, memberB, started.Cycle.RecipientMembNo)
	assert.Equal(t, domain.CycleOpen, started.Cycle.Status)
	assert.True(t, monday.Equal(started.Cycle.MeetingDate))
	assertAmount(t, "1000", started.Cycle.ContributionAmount)
	assertAmount(t, "150", started.Deductions[memberB])
	assertAmount(t, "100", started.Deductions[memberA])
	assertAmount(t, "100", started.Deductions[memberC])

	got, err := f.rounds.Get(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	// a second cycle cannot open while cycle 1 is open
	_, err = f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)
	assert.Equal(t, domain.StatusActive, ruleErr(t, err).Status)

	finalized, err := f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleFinalized, finalized.Cycle.Status)
	assert.NotNil(t, finalized.Cycle.FinalizedAt)
	assert.Len(t, finalized.Lines, 4)
	assert.Equal(t, 1, f.cursor(t, round.ID))

	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	assert.ErrorIs(t, err, domain.ErrNotOpen)
	assert.Equal(t, 1, f.cursor(t, round.ID), "cursor advances once per cycle")

	recorded, err := f.store.Repos().Collections.ListByReference(ctx, started.Cycle.Reference)
	require.NoError(t, err)
	require.Len(t, recorded, 3)
	assert.Equal(t, memberA, recorded[0].MembNo)
	assertAmount(t, "150", recorded[1].Amount)

	// cycle 2: A receives, then gets cancelled
	week2 := monday.AddDate(0, 0, 7)
	second, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{MeetingDate: &week2}, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Cycle.Sequence)
	assert.Equal(t, memberA, second.Cycle.RecipientMembNo)

	cancelled, err := f.cycles.CancelCycle(ctx, second.Cycle.ID, "เลื่อนประชุม", actor)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleCancelled, cancelled.Cycle.Status)
	assert.Empty(t, cancelled.Lines)
	assert.Equal(t, 1, f.cursor(t, round.ID), "cancel leaves the cursor alone")

	// cycle 3: A again, then C
	third, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{MeetingDate: &week2}, actor)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Cycle.Sequence)
	assert.Equal(t, memberA, third.Cycle.RecipientMembNo)
	_, err = f.cycles.FinalizeCycle(ctx, third.Cycle.ID, actor)
	require.NoError(t, err)

	fourth, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Equal(t, memberC, fourth.Cycle.RecipientMembNo)
	assert.Equal(t, 2, fourth.Cycle.Position)
	_, err = f.cycles.FinalizeCycle(ctx, fourth.Cycle.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 0, f.cursor(t, round.ID), "cursor wraps")

	completed, err := f.cycles.CompleteRound(ctx, round.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.ActualEndDate)

	sched, err := f.schedules.Get(ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, sched.IsActive)
	assert.NotNil(t, sched.EndDate)

	_, err = f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	cycles, total, err := f.cycles.ListCycles(ctx, round.ID, 0, 10, false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, 4, cycles[0].Sequence)

	cycles, _, err = f.cycles.ListCycles(ctx, round.ID, 0, 2, true)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, 1, cycles[0].Sequence)
	assert.Equal(t, memberB, cycles[0].RecipientMembNo)
}

func TestCycleOrchestrator_StartRoundGuards(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.newRound(t)

	_, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrNoSchedule)
	assert.Equal(t, domain.StatusPlanned, ruleErr(t, err).Status)

	_, err = f.cycles.StartRound(ctx, 9999, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	_, err = f.schedules.Create(ctx, round.ID, ScheduleInput{Order: []string{memberA, memberB, memberC}}, actor)
	require.NoError(t, err)
	_, err = f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	_, err = f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrAlreadyStarted)

	_, err = f.cycles.StartNextCycle(ctx, 9999, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
}

func TestCycleOrchestrator_NextCycleRequiresActiveRound(t *testing.T) {
	f := newFixture(t, nil)
	round := f.readyRound(t)

	_, err := f.cycles.StartNextCycle(context.Background(), round.ID, OpenCycleInput{}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCycleOrchestrator_CompleteAndCancelNeedClosedCycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	_, err = f.cycles.CompleteRound(ctx, round.ID, actor)
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)
	_, err = f.cycles.CancelRound(ctx, round.ID, actor)
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)

	_, err = f.cycles.CancelCycle(ctx, started.Cycle.ID, "", actor)
	require.NoError(t, err)

	cancelled, err := f.cycles.CancelRound(ctx, round.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ActualEndDate)

	_, err = f.cycles.CompleteRound(ctx, round.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCycleOrchestrator_RecorderFailureRollsBack(t *testing.T) {
	boom := errors.New("ledger unavailable")
	f := newFixture(t, failingRecorder{err: boom})
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	assert.ErrorIs(t, err, boom)

	current, err := f.cycles.CurrentCycle(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, started.Cycle.ID, current.Cycle.ID)
	assert.Equal(t, domain.CycleOpen, current.Cycle.Status)
	assert.Equal(t, 0, f.cursor(t, round.ID))

	var count int64
	require.NoError(t, f.db.Model(&models.CycleDeduction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCycleOrchestrator_RecorderReceivesBatch(t *testing.T) {
	rec := &capturingRecorder{}
	f := newFixture(t, rec)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)

	require.Len(t, rec.batches, 1)
	batch := rec.batches[0]
	assert.Equal(t, started.Cycle.Reference, batch.Reference)
	assert.Equal(t, memberB, batch.Recipient)
	assert.Len(t, batch.Lines, 4)
	assertAmount(t, "150", batch.Totals[memberB])
}

func TestCycleOrchestrator_ConcurrentNextCycleOpensOne(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCycleInProgress)
	}
	assert.Equal(t, 1, succeeded)

	var open int64
	require.NoError(t, f.db.Model(&models.Cycle{}).
		Where("round_id = ? AND status = ?", round.ID, domain.CycleOpen).
		Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestCycleOrchestrator_OpenCycleUniqueIndex(t *testing.T) {
	f := newFixture(t, nil)
	roundID := uint(1)

	first := models.Cycle{
		RoundID: roundID, Sequence: 1, RecipientMembNo: memberA,
		ContributionAmount: decimal.NewFromInt(1), MeetingDate: monday,
		Status: domain.CycleOpen, Reference: "ref-1", OpenRoundID: &roundID,
	}
	require.NoError(t, f.db.Create(&first).Error)

	second := first
	second.ID = 0
	second.Sequence = 2
	second.Reference = "ref-2"
	assert.Error(t, f.db.Create(&second).Error)
}

func TestCycleOrchestrator_SnapshotsWeeklyAmount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	raised := decimal.NewFromInt(1500)
	_, err = f.rounds.Update(ctx, round.ID, UpdateRoundInput{WeeklyAmount: &raised}, actor)
	require.NoError(t, err)

	current, err := f.cycles.GetCycle(ctx, started.Cycle.ID)
	require.NoError(t, err)
	assertAmount(t, "1000", current.Cycle.ContributionAmount)

	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)
	next, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assertAmount(t, "1500", next.Cycle.ContributionAmount)
}

func TestCycleOrchestrator_Reads(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	_, err := f.cycles.CurrentCycle(ctx, round.ID)
	assert.ErrorIs(t, err, domain.ErrCycleNotFound)
	_, err = f.cycles.GetCycle(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrCycleNotFound)
	_, err = f.cycles.FinalizeCycle(ctx, 9999, actor)
	assert.ErrorIs(t, err, domain.ErrCycleNotFound)
	_, _, err = f.cycles.ListCycles(ctx, 9999, 0, 10, false)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)

	got, err := f.cycles.GetCycle(ctx, started.Cycle.ID)
	require.NoError(t, err)
	assert.Len(t, got.Cycle.Deductions, 4)
	assert.Len(t, got.Lines, 4)
	assertAmount(t, "150", got.Deductions[memberB])

	// deactivating a rule later does not rewrite recorded deductions
	rules, err := f.deductions.ListRules(ctx, round.ID, true)
	require.NoError(t, err)
	for _, r := range rules {
		_, err := f.deductions.DeactivateRule(ctx, r.ID, actor)
		require.NoError(t, err)
	}
	again, err := f.cycles.GetCycle(ctx, started.Cycle.ID)
	require.NoError(t, err)
	assertAmount(t, "150", again.Deductions[memberB])

	next, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{MeetingDate: ptrTime(monday.AddDate(0, 0, 7))}, actor)
	require.NoError(t, err)
	assert.Empty(t, next.Lines)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestCycleOrchestrator_ClockDrivesDefaultDates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	thursday := monday.AddDate(0, 0, 3)
	f.cycles.SetClock(func() time.Time { return thursday.Add(14 * time.Hour) })
	f.deductions.SetClock(func() time.Time { return thursday.Add(14 * time.Hour) })

	rule, err := f.deductions.CreateRule(ctx, round.ID, CreateRuleInput{SectionID: f.feeID, AppliesTo: "all_members"}, actor)
	require.NoError(t, err)
	assert.True(t, rule.EffectiveFrom.Equal(thursday), rule.EffectiveFrom.String())

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.True(t, started.Cycle.MeetingDate.Equal(thursday), started.Cycle.MeetingDate.String())
}
