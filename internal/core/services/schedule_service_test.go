package services

import (
	"context"
	"testing"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleService_CreateValidatesOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.newRound(t)

	tests := []struct {
		name  string
		order []string
	}{
		{"empty", nil},
		{"duplicate", []string{memberA, memberA, memberB}},
		{"not a member", []string{memberA, memberB, memberD}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.schedules.Create(ctx, round.ID, ScheduleInput{Order: tt.order}, actor)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		})
	}

	sched, err := f.schedules.Create(ctx, round.ID, ScheduleInput{Order: []string{memberC, memberA, memberB}}, actor)
	require.NoError(t, err)
	assert.Equal(t, 0, sched.CurrentPosition)
	assert.True(t, sched.IsActive)
	assert.True(t, monday.Equal(sched.StartDate))

	_, err = f.schedules.Create(ctx, round.ID, ScheduleInput{Order: []string{memberA, memberB, memberC}}, actor)
	assert.ErrorIs(t, err, domain.ErrScheduleExists)
}

func TestScheduleService_ReorderKeepsCursor(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)

	res, err := f.schedules.Reorder(ctx, round.ID, []string{memberC, memberB, memberA}, actor)
	require.NoError(t, err)
	assert.False(t, res.CursorReset)
	assert.Equal(t, 1, res.Schedule.CurrentPosition)

	next, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Equal(t, memberB, next.Cycle.RecipientMembNo)

	// the open cycle keeps its recipient snapshot across a reorder
	_, err = f.schedules.Reorder(ctx, round.ID, []string{memberA, memberC, memberB}, actor)
	require.NoError(t, err)
	current, err := f.cycles.CurrentCycle(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, memberB, current.Cycle.RecipientMembNo)

	_, err = f.schedules.Reorder(ctx, round.ID, []string{memberA, memberB}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestScheduleService_ReorderDuringOpenCycleDoesNotRepeatRecipient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	require.Equal(t, memberB, started.Cycle.RecipientMembNo)

	// B moves to index 1, where a plain cursor step would land again
	_, err = f.schedules.Reorder(ctx, round.ID, []string{memberA, memberB, memberC}, actor)
	require.NoError(t, err)

	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cursor(t, round.ID))

	next, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Equal(t, memberC, next.Cycle.RecipientMembNo)
	_, err = f.cycles.FinalizeCycle(ctx, next.Cycle.ID, actor)
	require.NoError(t, err)

	third, err := f.cycles.StartNextCycle(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Equal(t, memberA, third.Cycle.RecipientMembNo)
}

func TestScheduleService_Seed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.newRound(t)

	_, err := f.rounds.AddMember(ctx, round.ID, MemberInput{MembNo: memberD, PositionHint: 1}, actor)
	require.NoError(t, err)

	sched, err := f.schedules.Seed(ctx, round.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{memberD, memberA, memberB, memberC}, sched.RotationOrder)

	// seeding again reorders the existing schedule
	require.NoError(t, f.rounds.RemoveMember(ctx, round.ID, memberD, actor))
	sched, err = f.schedules.Seed(ctx, round.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{memberA, memberB, memberC}, sched.RotationOrder)

	empty, err := f.rounds.Create(ctx, CreateRoundInput{
		Name:         "วงว่าง",
		WeeklyAmount: decimal.NewFromInt(100),
		StartDate:    monday,
	}, actor)
	require.NoError(t, err)
	_, err = f.schedules.Seed(ctx, empty.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestScheduleService_DeleteOnlyWhilePlanned(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	require.NoError(t, f.schedules.Delete(ctx, round.ID, actor))
	_, err := f.schedules.Get(ctx, round.ID)
	assert.ErrorIs(t, err, domain.ErrNoSchedule)
	assert.ErrorIs(t, f.schedules.Delete(ctx, round.ID, actor), domain.ErrNoSchedule)

	_, err = f.schedules.Create(ctx, round.ID, ScheduleInput{Order: []string{memberA, memberB, memberC}}, actor)
	require.NoError(t, err)
	_, err = f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	err = f.schedules.Delete(ctx, round.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusActive, ruleErr(t, err).Status)
}

func TestScheduleService_Rotation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	status, err := f.schedules.Rotation(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, status.Status)
	assert.Equal(t, 3, status.Size)
	assert.Equal(t, memberB, status.CurrentRecipient)
	assert.Equal(t, memberA, status.NextRecipient)
	assert.Nil(t, status.OpenCycleID)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	status, err = f.schedules.Rotation(ctx, round.ID)
	require.NoError(t, err)
	require.NotNil(t, status.OpenCycleID)
	assert.Equal(t, started.Cycle.ID, *status.OpenCycleID)

	_, err = f.schedules.Rotation(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
}
