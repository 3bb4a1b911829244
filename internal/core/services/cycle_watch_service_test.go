package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleWatchService_CheckOverdue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	round := f.readyRound(t)

	started, err := f.cycles.StartRound(ctx, round.ID, OpenCycleInput{}, actor)
	require.NoError(t, err)

	watch := NewCycleWatchService(f.store, "@daily", 7)

	watch.SetClock(func() time.Time { return monday.AddDate(0, 0, 5) })
	overdue, err := watch.CheckOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	watch.SetClock(func() time.Time { return monday.AddDate(0, 0, 10) })
	overdue, err = watch.CheckOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, started.Cycle.ID, overdue[0].ID)

	_, err = f.cycles.FinalizeCycle(ctx, started.Cycle.ID, actor)
	require.NoError(t, err)
	overdue, err = watch.CheckOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestCycleWatchService_StartRejectsBadSpec(t *testing.T) {
	f := newFixture(t, nil)

	assert.Error(t, NewCycleWatchService(f.store, "not a cron line", 7).Start())

	watch := NewCycleWatchService(f.store, "@every 1h", 7)
	require.NoError(t, watch.Start())
	watch.Stop()
}
