package services

import (
	"context"
	"fmt"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
)

const (
	// rescoreWindow bounds which leads the periodic rescore touches
	rescoreWindowDays = 30

	// rescoreBatchLimit caps one rescore pass
	rescoreBatchLimit = 500
)

var scoringLog = &AutomationLogger{prefix: "LeadScoring"}

// ScoringStore is the persistence surface of the temperature scorer.
// Implemented by handlers.SupabaseHandler.
type ScoringStore interface {
	GetActiveLeads(since time.Time, limit int) ([]dto.Lead, error)
	UpdateLeadScore(leadID string, temperature int, priority dto.LeadPriority) error
}

// LeadScoringService computes lead temperature (0-100) and priority buckets
// for the sales dashboard from engagement signals
type LeadScoringService struct {
	store ScoringStore
}

// NewLeadScoringService creates a new LeadScoringService instance
func NewLeadScoringService(store ScoringStore) *LeadScoringService {
	return &LeadScoringService{store: store}
}

// RescoreRecentLeads recomputes temperature and priority for leads active
// in the trailing window. Returns how many leads were updated.
func (s *LeadScoringService) RescoreRecentLeads(ctx context.Context) (int, error) {
	since := time.Now().AddDate(0, 0, -rescoreWindowDays)

	leads, err := s.store.GetActiveLeads(since, rescoreBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to load active leads: %w", err)
	}

	now := time.Now()
	updated := 0
	for i := range leads {
		lead := &leads[i]
		temperature, priority := ScoreLead(lead, now)
		if temperature == lead.Temperature && priority == lead.Priority {
			continue
		}
		if err := s.store.UpdateLeadScore(lead.ID, temperature, priority); err != nil {
			scoringLog.Warn("Failed to update lead score", map[string]interface{}{
				"lead_id": lead.ID,
				"error":   err.Error(),
			})
			continue
		}
		updated++
	}

	scoringLog.Info("Rescore pass complete", map[string]interface{}{
		"scanned": len(leads),
		"updated": updated,
	})

	return updated, nil
}

// ScoreLead derives a lead's temperature and priority bucket. Reply recency
// dominates; engagement and a concrete vehicle interest add heat; deep
// cadence stages with no reply cool the lead down.
func ScoreLead(lead *dto.Lead, now time.Time) (int, dto.LeadPriority) {
	if lead == nil {
		return 0, dto.PriorityCold
	}

	score := 30

	if lead.LastReplyAt != nil {
		sinceReply := now.Sub(*lead.LastReplyAt)
		switch {
		case sinceReply <= 24*time.Hour:
			score += 45
		case sinceReply <= 72*time.Hour:
			score += 35
		case sinceReply <= 7*24*time.Hour:
			score += 25
		case sinceReply <= 30*24*time.Hour:
			score += 10
		}

		// Multiple replies over the conversation show sustained interest
		if lead.MessagesTotal >= 3 {
			score += 5
		}
	} else {
		// Deep into the cadence with silence: each unanswered stage cools
		score -= 3 * stageIndex(lead.SequenceStage)
	}

	if !IsInvalidVehicleInterest(lead.VehicleInterest) {
		score += 10
	}

	if lead.FirstContactAt != nil && now.Sub(*lead.FirstContactAt) <= 48*time.Hour {
		// Fresh leads start warm regardless of engagement
		score += 10
	}

	if !lead.AIOptIn {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return score, priorityFor(score)
}

// priorityFor maps a temperature to its dashboard bucket
func priorityFor(temperature int) dto.LeadPriority {
	switch {
	case temperature >= 75:
		return dto.PriorityHot
	case temperature >= 50:
		return dto.PriorityWarm
	case temperature >= 25:
		return dto.PriorityCool
	default:
		return dto.PriorityCold
	}
}

// stageIndex returns the position of a stage in the cadence, 0 for unknown
func stageIndex(stage dto.SequenceStage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return 0
}
