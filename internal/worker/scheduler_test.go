package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSweeper struct {
	calls atomic.Int32
	err   error
}

func (m *mockSweeper) SweepExpired(ctx context.Context) (int, error) {
	m.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("job context has no deadline")
	}
	return 2, m.err
}

type mockSyncer struct {
	calls atomic.Int32
}

func (m *mockSyncer) SyncCatalog(ctx context.Context) (int, error) {
	m.calls.Add(1)
	return 1, nil
}

func TestScheduler_RunsJobs(t *testing.T) {
	sweeper := &mockSweeper{}
	syncer := &mockSyncer{}
	s := NewScheduler(sweeper, syncer, ScheduleConfig{Sweep: "@every 1s", CatalogSync: "@every 1s"})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() > 0 && syncer.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&mockSweeper{}, &mockSyncer{}, ScheduleConfig{Sweep: "not a schedule", CatalogSync: "@every 1m"})

	err := s.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule sweep job")
}

func TestScheduler_JobErrorsAreContained(t *testing.T) {
	sweeper := &mockSweeper{err: errors.New("redis down")}
	s := NewScheduler(sweeper, &mockSyncer{}, ScheduleConfig{})

	assert.NotPanics(t, s.SweepExpired)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestScheduler_StopWaitsForJobs(t *testing.T) {
	s := NewScheduler(&mockSweeper{}, &mockSyncer{}, ScheduleConfig{Sweep: "@every 1m", CatalogSync: "@every 1m"})
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
