package repositories

import (
	"context"
	"testing"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRound(t *testing.T, r *Repos) *models.CashRound {
	t.Helper()
	round := &models.CashRound{
		RoundNo:      "CR-TEST-0001",
		Name:         "วงแชร์ทดสอบ",
		WeeklyAmount: decimal.NewFromInt(1000),
		StartDate:    time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusPlanned,
	}
	require.NoError(t, r.Rounds.Create(context.Background(), round))
	return round
}

func TestScheduleRepository_RotationOrderRoundTrip(t *testing.T) {
	r := NewStore(testutil.NewDB(t)).Repos()
	ctx := context.Background()
	round := newTestRound(t, r)

	sched := &models.RotationSchedule{
		RoundID:       round.ID,
		RotationOrder: models.MembNoList{"000102", "000101", "000103"},
		IsActive:      true,
		StartDate:     round.StartDate,
	}
	require.NoError(t, r.Schedules.Create(ctx, sched))

	got, err := r.Schedules.GetByRoundID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembNoList{"000102", "000101", "000103"}, got.RotationOrder)

	rotation := got.ToDomain()
	require.NoError(t, rotation.AdvancePast("000102"))
	got.Apply(rotation)
	require.NoError(t, r.Schedules.Update(ctx, got))

	again, err := r.Schedules.GetByRoundID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentPosition)
}

func TestDeductionRuleRepository_TargetMembersRoundTrip(t *testing.T) {
	r := NewStore(testutil.NewDB(t)).Repos()
	ctx := context.Background()
	round := newTestRound(t, r)

	specific := &models.DeductionRule{
		RoundID:       round.ID,
		SectionID:     1,
		AppliesTo:     "specific",
		TargetMembers: models.MembNoList{"000101", "000103"},
		Amount:        decimal.NewFromInt(50),
		IsActive:      true,
		EffectiveFrom: round.StartDate,
	}
	recipient := &models.DeductionRule{
		RoundID:       round.ID,
		SectionID:     2,
		AppliesTo:     "recipient",
		Amount:        decimal.NewFromInt(20),
		IsActive:      true,
		EffectiveFrom: round.StartDate,
	}
	require.NoError(t, r.Rules.Create(ctx, specific))
	require.NoError(t, r.Rules.Create(ctx, recipient))

	got, err := r.Rules.GetByID(ctx, specific.ID)
	require.NoError(t, err)
	rule, err := got.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, []string{"000101", "000103"}, rule.Target.Members)

	got, err = r.Rules.GetByID(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TargetMembers)
	_, err = got.ToDomain()
	require.NoError(t, err)
}
