package services

import (
	"context"
	"testing"
	"time"

	"driveline/dealer-crm-worker/internal/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScoringStore is an in-memory ScoringStore for rescore tests
type fakeScoringStore struct {
	leads   []dto.Lead
	updates map[string]dto.LeadPriority
}

func (f *fakeScoringStore) GetActiveLeads(since time.Time, limit int) ([]dto.Lead, error) {
	return f.leads, nil
}

func (f *fakeScoringStore) UpdateLeadScore(leadID string, temperature int, priority dto.LeadPriority) error {
	if f.updates == nil {
		f.updates = make(map[string]dto.LeadPriority)
	}
	f.updates[leadID] = priority
	return nil
}

func TestScoreLead(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	t.Run("fresh reply makes a hot lead", func(t *testing.T) {
		replied := now.Add(-2 * time.Hour)
		lead := &dto.Lead{
			AIOptIn:         true,
			VehicleInterest: "2022 Honda CR-V",
			LastReplyAt:     &replied,
		}
		// 30 base + 45 recent reply + 10 vehicle interest = 85
		score, priority := ScoreLead(lead, now)
		assert.Equal(t, 85, score)
		assert.Equal(t, dto.PriorityHot, priority)
	})

	t.Run("reply recency decays in steps", func(t *testing.T) {
		mk := func(age time.Duration) int {
			replied := now.Add(-age)
			score, _ := ScoreLead(&dto.Lead{AIOptIn: true, LastReplyAt: &replied}, now)
			return score
		}
		assert.Equal(t, 75, mk(12*time.Hour))
		assert.Equal(t, 65, mk(48*time.Hour))
		assert.Equal(t, 55, mk(5*24*time.Hour))
		assert.Equal(t, 40, mk(20*24*time.Hour))
		assert.Equal(t, 30, mk(60*24*time.Hour))
	})

	t.Run("sustained conversation adds heat", func(t *testing.T) {
		replied := now.Add(-time.Hour)
		lead := &dto.Lead{AIOptIn: true, LastReplyAt: &replied, MessagesTotal: 3}
		score, _ := ScoreLead(lead, now)
		assert.Equal(t, 80, score)
	})

	t.Run("silence deep in the cadence cools the lead", func(t *testing.T) {
		lead := &dto.Lead{AIOptIn: true, SequenceStage: dto.StageFollowUp5}
		// 30 base - 3*5 (follow_up_5 is the sixth step) = 15
		score, priority := ScoreLead(lead, now)
		assert.Equal(t, 15, score)
		assert.Equal(t, dto.PriorityCold, priority)
	})

	t.Run("fresh lead starts warm", func(t *testing.T) {
		contacted := now.Add(-12 * time.Hour)
		lead := &dto.Lead{AIOptIn: true, FirstContactAt: &contacted, VehicleInterest: "F-150"}
		// 30 base + 10 vehicle + 10 fresh = 50
		score, priority := ScoreLead(lead, now)
		assert.Equal(t, 50, score)
		assert.Equal(t, dto.PriorityWarm, priority)
	})

	t.Run("opt-out drains the score", func(t *testing.T) {
		lead := &dto.Lead{AIOptIn: false}
		score, priority := ScoreLead(lead, now)
		assert.Equal(t, 10, score)
		assert.Equal(t, dto.PriorityCold, priority)
	})

	t.Run("placeholder vehicle interest earns nothing", func(t *testing.T) {
		lead := &dto.Lead{AIOptIn: true, VehicleInterest: "unknown"}
		score, _ := ScoreLead(lead, now)
		assert.Equal(t, 30, score)
	})

	t.Run("score is clamped to 0-100", func(t *testing.T) {
		lead := &dto.Lead{AIOptIn: false, SequenceStage: dto.StageFollowUp9}
		score, _ := ScoreLead(lead, now)
		assert.GreaterOrEqual(t, score, 0)

		replied := now.Add(-time.Hour)
		contacted := now.Add(-time.Hour)
		hot := &dto.Lead{
			AIOptIn: true, LastReplyAt: &replied, FirstContactAt: &contacted,
			MessagesTotal: 5, VehicleInterest: "Camry",
		}
		score, _ = ScoreLead(hot, now)
		assert.Equal(t, 100, score)
	})

	t.Run("nil lead is cold", func(t *testing.T) {
		score, priority := ScoreLead(nil, now)
		assert.Equal(t, 0, score)
		assert.Equal(t, dto.PriorityCold, priority)
	})
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, dto.PriorityHot, priorityFor(75))
	assert.Equal(t, dto.PriorityWarm, priorityFor(74))
	assert.Equal(t, dto.PriorityWarm, priorityFor(50))
	assert.Equal(t, dto.PriorityCool, priorityFor(49))
	assert.Equal(t, dto.PriorityCool, priorityFor(25))
	assert.Equal(t, dto.PriorityCold, priorityFor(24))
}

func TestRescoreRecentLeads(t *testing.T) {
	t.Run("only changed scores are written", func(t *testing.T) {
		replied := time.Now().Add(-time.Hour)
		store := &fakeScoringStore{
			leads: []dto.Lead{
				// Stored score stale: will be rewritten
				{ID: "lead-stale", AIOptIn: true, LastReplyAt: &replied, Temperature: 10, Priority: dto.PriorityCold},
				// Stored score already correct: untouched
				{ID: "lead-current", AIOptIn: true, VehicleInterest: "unknown", Temperature: 30, Priority: dto.PriorityCool},
			},
		}

		svc := NewLeadScoringService(store)
		updated, err := svc.RescoreRecentLeads(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, updated)
		assert.Contains(t, store.updates, "lead-stale")
		assert.NotContains(t, store.updates, "lead-current")
	})
}
