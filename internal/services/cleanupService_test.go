package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"driveline/dealer-crm-worker/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMonitorStore is an in-memory MonitorStore for cleanup tests
type fakeMonitorStore struct {
	stuckRuns    []dto.AutomationRun
	stuckErr     error
	failedRuns   []string
	failErr      error
	lockedCount  int
	counts       map[dto.RunStatus]int
	countErr     error
	deleteErr    error
	failMessages map[string]string
}

func newFakeMonitorStore() *fakeMonitorStore {
	return &fakeMonitorStore{
		counts:       make(map[dto.RunStatus]int),
		failMessages: make(map[string]string),
	}
}

func (f *fakeMonitorStore) GetStuckRuns(olderThan time.Time) ([]dto.AutomationRun, error) {
	if f.stuckErr != nil {
		return nil, f.stuckErr
	}
	var stuck []dto.AutomationRun
	for _, run := range f.stuckRuns {
		if run.StartedAt.Before(olderThan) {
			stuck = append(stuck, run)
		}
	}
	return stuck, nil
}

func (f *fakeMonitorStore) FailRun(runID string, errorMessage string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.failedRuns = append(f.failedRuns, runID)
	f.failMessages[runID] = errorMessage
	return nil
}

func (f *fakeMonitorStore) DeleteExpiredLocks(now time.Time) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.lockedCount, nil
}

func (f *fakeMonitorStore) CountRuns(status dto.RunStatus, since *time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[status], nil
}

func TestReclaimStuckRuns(t *testing.T) {
	t.Run("run past the timeout is failed with the cleanup message", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.stuckRuns = []dto.AutomationRun{
			{ID: "run-old", Status: dto.RunStatusRunning, StartedAt: time.Now().Add(-45 * time.Minute)},
		}

		svc := NewCleanupService(store)
		reclaimed, err := svc.ReclaimStuckRuns(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		require.Len(t, store.failedRuns, 1)
		assert.Equal(t, "run-old", store.failedRuns[0])
		assert.Equal(t, StuckRunErrorMessage, store.failMessages["run-old"])
	})

	t.Run("recent running run is left alone", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.stuckRuns = []dto.AutomationRun{
			{ID: "run-fresh", Status: dto.RunStatusRunning, StartedAt: time.Now().Add(-5 * time.Minute)},
		}

		svc := NewCleanupService(store)
		reclaimed, err := svc.ReclaimStuckRuns(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, reclaimed)
		assert.Empty(t, store.failedRuns)
	})

	t.Run("one failing reclaim does not stop the rest", func(t *testing.T) {
		store := newFakeMonitorStore()
		old := time.Now().Add(-2 * time.Hour)
		store.stuckRuns = []dto.AutomationRun{
			{ID: "run-a", Status: dto.RunStatusRunning, StartedAt: old},
			{ID: "run-b", Status: dto.RunStatusRunning, StartedAt: old},
		}

		svc := NewCleanupService(store)
		reclaimed, err := svc.ReclaimStuckRuns(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, reclaimed)
	})

	t.Run("store error propagates", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.stuckErr = fmt.Errorf("connection refused")

		svc := NewCleanupService(store)
		_, err := svc.ReclaimStuckRuns(context.Background())
		assert.Error(t, err)
	})
}

func TestComputeHealthScore(t *testing.T) {
	tests := []struct {
		name           string
		stuckRuns      int
		failedLastHour int
		runningCount   int
		expected       int
	}{
		{"all clear", 0, 0, 0, 100},
		{"any stuck run caps at 40", 1, 0, 0, 40},
		{"many failures cap at 50", 0, 6, 0, 50},
		{"some failures cap at 70", 0, 4, 0, 70},
		{"three failures do not cap", 0, 3, 0, 100},
		{"run pileup caps at 80", 0, 0, 6, 80},
		{"five running do not cap", 0, 0, 5, 100},
		{"lowest cap wins", 1, 6, 6, 40},
		{"failures and pileup", 0, 4, 6, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, computeHealthScore(tt.stuckRuns, tt.failedLastHour, tt.runningCount))
		})
	}
}

func TestHealthSnapshot(t *testing.T) {
	t.Run("healthy system", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.counts[dto.RunStatusCompleted] = 10

		svc := NewCleanupService(store)
		report, err := svc.HealthSnapshot(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 100, report.HealthScore)
		assert.False(t, report.NeedsAttention)
		assert.Equal(t, 1.0, report.SuccessRate24h)
		require.Len(t, report.Recommendations, 1)
		assert.Equal(t, "Automation is healthy", report.Recommendations[0])
	})

	t.Run("stuck run needs attention", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.stuckRuns = []dto.AutomationRun{
			{ID: "run-stuck", Status: dto.RunStatusRunning, StartedAt: time.Now().Add(-time.Hour)},
		}
		store.counts[dto.RunStatusCompleted] = 8
		store.counts[dto.RunStatusFailed] = 2

		svc := NewCleanupService(store)
		report, err := svc.HealthSnapshot(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 40, report.HealthScore)
		assert.True(t, report.NeedsAttention)
		assert.Equal(t, 1, report.StuckRuns)
		assert.InDelta(t, 0.8, report.SuccessRate24h, 0.001)
		assert.NotEmpty(t, report.Recommendations)
	})

	t.Run("no runs in window defaults success rate to 1", func(t *testing.T) {
		store := newFakeMonitorStore()

		svc := NewCleanupService(store)
		report, err := svc.HealthSnapshot(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1.0, report.SuccessRate24h)
	})

	t.Run("score just below the threshold flags attention", func(t *testing.T) {
		store := newFakeMonitorStore()
		store.counts[dto.RunStatusRunning] = 6

		svc := NewCleanupService(store)
		report, err := svc.HealthSnapshot(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 80, report.HealthScore)
		assert.False(t, report.NeedsAttention, "80 is the healthy boundary")
	})
}

func TestRunCleanup(t *testing.T) {
	store := newFakeMonitorStore()
	store.stuckRuns = []dto.AutomationRun{
		{ID: "run-stuck", Status: dto.RunStatusRunning, StartedAt: time.Now().Add(-time.Hour)},
	}
	store.lockedCount = 2

	svc := NewCleanupService(store)
	svc.RunCleanup(context.Background())

	assert.Equal(t, []string{"run-stuck"}, store.failedRuns)
}
