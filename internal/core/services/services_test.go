package services

import (
	"context"
	"testing"
	"time"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/core/domain"
	"spsc-cashround/internal/pkg/roundlock"
	"spsc-cashround/internal/pkg/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	memberA = "000101"
	memberB = "000102"
	memberC = "000103"
	memberD = "000104"
)

var (
	monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	actor  = domain.Actor{UserID: 7, MembNo: "900001", IPAddress: "127.0.0.1"}
)

type fixture struct {
	db         *gorm.DB
	store      *repositories.Store
	rounds     *RoundService
	schedules  *ScheduleService
	deductions *DeductionService
	cycles     *CycleOrchestrator
	feeID      uint
	savingID   uint
}

func newFixture(t *testing.T, recorder CollectionRecorder) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedMembers(t, db, memberA, memberB, memberC, memberD)

	store := repositories.NewStore(db)
	locker := roundlock.NewLocalLocker()
	f := &fixture{
		db:         db,
		store:      store,
		rounds:     NewRoundService(store, locker, repositories.NewMemberRepository(db)),
		schedules:  NewScheduleService(store, locker),
		deductions: NewDeductionService(store, locker, repositories.NewSectionRepository(db)),
		cycles:     NewCycleOrchestrator(store, locker, recorder),
		feeID:      testutil.SeedSection(t, db, "FEE", "50"),
		savingID:   testutil.SeedSection(t, db, "SAVING", "100"),
	}

	clock := func() time.Time { return monday.Add(9 * time.Hour) }
	f.rounds.SetClock(clock)
	f.schedules.SetClock(clock)
	f.deductions.SetClock(clock)
	f.cycles.SetClock(clock)
	return f
}

// newRound creates a planned round with members A, B and C
func (f *fixture) newRound(t *testing.T) *models.CashRound {
	t.Helper()
	round, err := f.rounds.Create(context.Background(), CreateRoundInput{
		Name:         "วงแชร์ฝ่ายบัญชี",
		WeeklyAmount: decimal.NewFromInt(1000),
		StartDate:    monday,
		Members: []MemberInput{
			{MembNo: memberA},
			{MembNo: memberB},
			{MembNo: memberC},
		},
	}, actor)
	require.NoError(t, err)
	return round
}

// readyRound creates a round with schedule B, A, C and two rules:
// FEE 50 on the recipient and SAVING 100 on every member.
func (f *fixture) readyRound(t *testing.T) *models.CashRound {
	t.Helper()
	ctx := context.Background()
	round := f.newRound(t)

	_, err := f.schedules.Create(ctx, round.ID, ScheduleInput{Order: []string{memberB, memberA, memberC}}, actor)
	require.NoError(t, err)

	_, err = f.deductions.CreateRule(ctx, round.ID, CreateRuleInput{SectionID: f.feeID, AppliesTo: "recipient"}, actor)
	require.NoError(t, err)
	_, err = f.deductions.CreateRule(ctx, round.ID, CreateRuleInput{SectionID: f.savingID, AppliesTo: "all_members"}, actor)
	require.NoError(t, err)
	return round
}

func (f *fixture) cursor(t *testing.T, roundID uint) int {
	t.Helper()
	sched, err := f.schedules.Get(context.Background(), roundID)
	require.NoError(t, err)
	return sched.CurrentPosition
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func ruleErr(t *testing.T, err error) *domain.RuleError {
	t.Helper()
	var re *domain.RuleError
	require.ErrorAs(t, err, &re)
	return re
}

type failingRecorder struct {
	err error
}

func (r failingRecorder) RecordDeductions(context.Context, *domain.CollectionBatch) error {
	return r.err
}

type capturingRecorder struct {
	batches []*domain.CollectionBatch
}

func (r *capturingRecorder) RecordDeductions(_ context.Context, batch *domain.CollectionBatch) error {
	r.batches = append(r.batches, batch)
	return nil
}
