package services

import (
	"context"
	"testing"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundService_Create(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	round := f.newRound(t)
	assert.Equal(t, domain.StatusPlanned, round.Status)
	assert.Regexp(t, `^CR202601-[0-9A-F]{8}$`, round.RoundNo)
	assert.Equal(t, actor.UserID, round.CreatedBy)

	members, err := f.rounds.ListMembers(ctx, round.ID, true)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	history, err := f.rounds.History(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.EventTypeCreate, history[0].EventType)
	assert.Equal(t, "127.0.0.1", history[0].IPAddress)
}

func TestRoundService_CreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	valid := func() CreateRoundInput {
		return CreateRoundInput{
			RoundNo:      "CR-FIXED",
			Name:         "วงทดสอบ",
			WeeklyAmount: decimal.NewFromInt(500),
			StartDate:    monday,
			Members:      []MemberInput{{MembNo: memberA}},
		}
	}

	tests := []struct {
		name   string
		modify func(in *CreateRoundInput)
		want   error
	}{
		{"blank name", func(in *CreateRoundInput) { in.Name = "  " }, domain.ErrInvalidInput},
		{"zero amount", func(in *CreateRoundInput) { in.WeeklyAmount = decimal.Zero }, domain.ErrInvalidInput},
		{"negative amount", func(in *CreateRoundInput) { in.WeeklyAmount = decimal.NewFromInt(-1) }, domain.ErrInvalidInput},
		{"no start date", func(in *CreateRoundInput) { in.StartDate = time.Time{} }, domain.ErrInvalidInput},
		{"end before start", func(in *CreateRoundInput) { in.ExpectedEndDate = ptrTime(monday.AddDate(0, 0, -1)) }, domain.ErrInvalidInput},
		{"duplicate member", func(in *CreateRoundInput) { in.Members = append(in.Members, MemberInput{MembNo: memberA}) }, domain.ErrInvalidInput},
		{"unknown member", func(in *CreateRoundInput) { in.Members = []MemberInput{{MembNo: "999999"}} }, domain.ErrMemberNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.modify(&in)
			_, err := f.rounds.Create(ctx, in, actor)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.rounds.Create(ctx, valid(), actor)
	require.NoError(t, err)
	_, err = f.rounds.Create(ctx, valid(), actor)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "round number must be unique")
}

func TestRoundService_UpdateAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	name := "วงใหม่"
	start := monday.AddDate(0, 0, 1)
	updated, err := f.rounds.Update(ctx, round.ID, UpdateRoundInput{Name: &name, StartDate: &start}, actor)
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, start.Equal(updated.StartDate))

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{MeetingDate: &start}, actor)
	require.NoError(t, err)

	later := monday.AddDate(0, 1, 0)
	_, err = f.rounds.Update(ctx, round.ID, UpdateRoundInput{StartDate: &later}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	zero := decimal.Zero
	_, err = f.rounds.Update(ctx, round.ID, UpdateRoundInput{WeeklyAmount: &zero}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	f.newRound(t)

	all, total, err := f.rounds.List(ctx, ListRoundsInput{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	active, total, err := f.rounds.List(ctx, ListRoundsInput{Status: "active", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, round.ID, active[0].ID)

	_, _, err = f.rounds.List(ctx, ListRoundsInput{Status: "paused", Limit: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// archive hides closed rounds from the default listing
	_, err = f.rounds.Archive(ctx, round.ID, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.cycles.CancelCycle(ctx, started.Cycle.ID, "", actor)
	require.NoError(t, err)
	_, err = f.cycles.CompleteRound(ctx, round.ID, actor)
	require.NoError(t, err)

	archived, err := f.rounds.Archive(ctx, round.ID, actor)
	require.NoError(t, err)
	require.NotNil(t, archived.ArchivedAt)

	_, total, err = f.rounds.List(ctx, ListRoundsInput{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	_, total, err = f.rounds.List(ctx, ListRoundsInput{IncludeArchived: true, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = f.rounds.Update(ctx, round.ID, UpdateRoundInput{Name: &name}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "closed rounds are read only")
}

func TestRoundService_Delete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	planned := f.readyRound(t)
	require.NoError(t, f.rounds.Delete(ctx, planned.ID, actor))
	_, err := f.rounds.Get(ctx, planned.ID)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	var leftovers int64
	require.NoError(t, f.db.Model(&models.CashRoundMember{}).Where("round_id = ?", planned.ID).Count(&leftovers).Error)
	assert.Zero(t, leftovers)

	active := f.readyRound(t)
	started, err := f.cycles.StartRound(ctx, active.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	err = f.rounds.Delete(ctx, active.ID, actor)
	assert.ErrorIs(t, err, domain.ErrDeleteBlocked)

	_, err = f.cycles.CancelCycle(ctx, started.Cycle.ID, "", actor)
	require.NoError(t, err)
	_, err = f.cycles.CancelRound(ctx, active.ID, actor)
	require.NoError(t, err)
	err = f.rounds.Delete(ctx, active.ID, actor)
	assert.ErrorIs(t, err, domain.ErrDeleteBlocked, "rounds with cycles are archived, not deleted")

	assert.ErrorIs(t, f.rounds.Delete(ctx, 9999, actor), domain.ErrRoundNotFound)
}

func TestRoundService_Membership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	_, err := f.rounds.AddMember(ctx, round.ID, MemberInput{MembNo: memberA}, actor)
	assert.ErrorIs(t, err, domain.ErrMemberAlreadyActive)
	_, err = f.rounds.AddMember(ctx, round.ID, MemberInput{MembNo: "999999"}, actor)
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	added, err := f.rounds.AddMember(ctx, round.ID, MemberInput{MembNo: memberD, PositionHint: 2}, actor)
	require.NoError(t, err)
	assert.True(t, added.IsActive)

	sched, err := f.schedules.Get(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{memberB, memberA, memberC, memberD}, sched.RotationOrder)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)
	assert.Len(t, started.Deductions, 4)

	// the open cycle's recipient cannot leave
	err = f.rounds.RemoveMember(ctx, round.ID, memberB, actor)
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)

	require.NoError(t, f.rounds.RemoveMember(ctx, round.ID, memberA, actor))
	err = f.rounds.RemoveMember(ctx, round.ID, memberA, actor)
	assert.ErrorIs(t, err, domain.ErrMemberNotInRound)

	sched, err = f.schedules.Get(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{memberB, memberC, memberD}, sched.RotationOrder)

	members, err := f.rounds.ListMembers(ctx, round.ID, false)
	require.NoError(t, err)
	assert.Len(t, members, 4)
	active, err := f.rounds.ListMembers(ctx, round.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	// a member who left can rejoin at the end of the rotation
	_, err = f.rounds.AddMember(ctx, round.ID, MemberInput{MembNo: memberA}, actor)
	require.NoError(t, err)
	sched, err = f.schedules.Get(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{memberB, memberC, memberD, memberA}, sched.RotationOrder)

	// the preview of the open cycle follows current membership
	current, err := f.cycles.CurrentCycle(ctx, round.ID)
	require.NoError(t, err)
	assert.Len(t, current.Deductions, 4)
}
