package services

import (
	"context"
	"fmt"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
)

const (
	// StuckRunTimeout is how long a run may stay `running` before the
	// monitor forces it to failed. In-flight work is not signalled to
	// stop; only the record is relabelled.
	StuckRunTimeout = 30 * time.Minute

	// StuckRunErrorMessage is written on reclaimed runs
	StuckRunErrorMessage = "Auto-cleanup: process timeout"
)

var cleanupLog = &AutomationLogger{prefix: "CleanupService"}

// MonitorStore is the persistence surface the cleanup/health monitor needs.
// Implemented by handlers.SupabaseHandler.
type MonitorStore interface {
	GetStuckRuns(olderThan time.Time) ([]dto.AutomationRun, error)
	FailRun(runID string, errorMessage string) error
	DeleteExpiredLocks(now time.Time) (int, error)
	CountRuns(status dto.RunStatus, since *time.Time) (int, error)
}

// CleanupService reclaims stuck runs and expired locks, and computes the
// automation health score. It runs on its own timers, independent of the
// coordinator's lock.
type CleanupService struct {
	store MonitorStore
}

// NewCleanupService creates a new CleanupService instance
func NewCleanupService(store MonitorStore) *CleanupService {
	return &CleanupService{store: store}
}

// RunCleanup performs one reclamation sweep: stuck runs then expired locks
func (s *CleanupService) RunCleanup(ctx context.Context) {
	reclaimed, err := s.ReclaimStuckRuns(ctx)
	if err != nil {
		cleanupLog.Error("Stuck-run reclamation failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else if reclaimed > 0 {
		cleanupLog.Warn("Reclaimed stuck runs", map[string]interface{}{
			"count": reclaimed,
		})
	}

	locks, err := s.ReclaimExpiredLocks(ctx)
	if err != nil {
		cleanupLog.Error("Expired-lock reclamation failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else if locks > 0 {
		cleanupLog.Warn("Deleted expired locks", map[string]interface{}{
			"count": locks,
		})
	}
}

// ReclaimStuckRuns forces any run still `running` past the timeout into
// `failed`. This is the engine's only crash-recovery mechanism: side effects
// the stuck run already committed are not rolled back.
func (s *CleanupService) ReclaimStuckRuns(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-StuckRunTimeout)

	stuck, err := s.store.GetStuckRuns(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query stuck runs: %w", err)
	}

	reclaimed := 0
	for _, run := range stuck {
		if err := s.store.FailRun(run.ID, StuckRunErrorMessage); err != nil {
			cleanupLog.Error("Failed to reclaim stuck run", map[string]interface{}{
				"run_id":     run.ID,
				"started_at": run.StartedAt.Format(time.RFC3339),
				"error":      err.Error(),
			})
			continue
		}
		reclaimed++
		cleanupLog.Warn("Stuck run marked failed", map[string]interface{}{
			"run_id":     run.ID,
			"started_at": run.StartedAt.Format(time.RFC3339),
		})
	}

	return reclaimed, nil
}

// ReclaimExpiredLocks deletes automation locks whose lease has lapsed
func (s *CleanupService) ReclaimExpiredLocks(ctx context.Context) (int, error) {
	deleted, err := s.store.DeleteExpiredLocks(time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}
	return deleted, nil
}

// HealthSnapshot computes the current automation health read model. The
// score is observational only: it never gates the coordinator.
func (s *CleanupService) HealthSnapshot(ctx context.Context) (*dto.HealthReport, error) {
	now := time.Now()

	stuck, err := s.store.GetStuckRuns(now.Add(-StuckRunTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck runs: %w", err)
	}

	hourAgo := now.Add(-time.Hour)
	failedLastHour, err := s.store.CountRuns(dto.RunStatusFailed, &hourAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent failures: %w", err)
	}

	running, err := s.store.CountRuns(dto.RunStatusRunning, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count running runs: %w", err)
	}

	dayAgo := now.Add(-24 * time.Hour)
	completed24h, err := s.store.CountRuns(dto.RunStatusCompleted, &dayAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed runs: %w", err)
	}
	failed24h, err := s.store.CountRuns(dto.RunStatusFailed, &dayAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed runs: %w", err)
	}

	successRate := 1.0
	if completed24h+failed24h > 0 {
		successRate = float64(completed24h) / float64(completed24h+failed24h)
	}

	score := computeHealthScore(len(stuck), failedLastHour, running)

	report := &dto.HealthReport{
		HealthScore:     score,
		StuckRuns:       len(stuck),
		FailedLastHour:  failedLastHour,
		RunningCount:    running,
		SuccessRate24h:  successRate,
		NeedsAttention:  score < 80,
		Recommendations: healthRecommendations(len(stuck), failedLastHour, running),
		CheckedAt:       now,
	}

	cleanupLog.Info("Health snapshot", map[string]interface{}{
		"score":            report.HealthScore,
		"stuck_runs":       report.StuckRuns,
		"failed_last_hour": report.FailedLastHour,
		"running":          report.RunningCount,
		"success_rate_24h": report.SuccessRate24h,
	})

	return report, nil
}

// computeHealthScore derives the 0-100 health score from run-table
// symptoms. Each symptom caps the score; caps combine by taking the lowest.
func computeHealthScore(stuckRuns, failedLastHour, runningCount int) int {
	score := 100

	if stuckRuns > 0 {
		score = minScore(score, 40)
	}

	if failedLastHour > 5 {
		score = minScore(score, 50)
	} else if failedLastHour > 3 {
		score = minScore(score, 70)
	}

	if runningCount > 5 {
		score = minScore(score, 80)
	}

	return score
}

func minScore(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// healthRecommendations builds operator-facing hints for the dashboard
func healthRecommendations(stuckRuns, failedLastHour, runningCount int) []string {
	var recs []string

	if stuckRuns > 0 {
		recs = append(recs, fmt.Sprintf("%d stuck run(s) detected - check for hung content-generator calls or database timeouts", stuckRuns))
	}
	if failedLastHour > 3 {
		recs = append(recs, fmt.Sprintf("%d failed run(s) in the last hour - inspect recent run error messages", failedLastHour))
	}
	if runningCount > 5 {
		recs = append(recs, fmt.Sprintf("%d run(s) currently marked running - possible lock contention or orphaned records", runningCount))
	}
	if len(recs) == 0 {
		recs = append(recs, "Automation is healthy")
	}

	return recs
}
