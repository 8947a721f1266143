package services

import (
	"testing"
	"time"

	"driveline/dealer-crm-worker/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestStageDayOffset(t *testing.T) {
	t.Run("known stages follow the cadence table", func(t *testing.T) {
		assert.Equal(t, 0, StageDayOffset(dto.StageInitial))
		assert.Equal(t, 1, StageDayOffset(dto.StageFollowUp1))
		assert.Equal(t, 3, StageDayOffset(dto.StageFollowUp2))
		assert.Equal(t, 5, StageDayOffset(dto.StageFollowUp3))
		assert.Equal(t, 7, StageDayOffset(dto.StageFollowUp4))
		assert.Equal(t, 10, StageDayOffset(dto.StageFollowUp5))
		assert.Equal(t, 14, StageDayOffset(dto.StageFollowUp6))
		assert.Equal(t, 21, StageDayOffset(dto.StageFollowUp7))
		assert.Equal(t, 30, StageDayOffset(dto.StageFollowUp8))
		assert.Equal(t, 45, StageDayOffset(dto.StageFollowUp9))
	})

	t.Run("unknown stage falls back to zero", func(t *testing.T) {
		assert.Equal(t, 0, StageDayOffset(dto.SequenceStage("bogus")))
	})
}

func TestNextStage(t *testing.T) {
	t.Run("walks the full cadence in order", func(t *testing.T) {
		stage := dto.StageInitial
		var visited []dto.SequenceStage
		for {
			visited = append(visited, stage)
			next, ok := NextStage(stage)
			if !ok {
				break
			}
			stage = next
		}
		assert.Equal(t, stageOrder, visited)
	})

	t.Run("last stage ends the cadence", func(t *testing.T) {
		next, ok := NextStage(dto.StageFollowUp9)
		assert.False(t, ok)
		assert.Equal(t, dto.SequenceStage(""), next)
	})

	t.Run("unknown stage restarts at the first follow-up", func(t *testing.T) {
		next, ok := NextStage(dto.SequenceStage("legacy_stage"))
		assert.True(t, ok)
		assert.Equal(t, dto.StageFollowUp1, next)
	})
}

func TestComputeNextSendAt(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	t.Run("uses the gap between stage offsets", func(t *testing.T) {
		// follow_up_2 (day 3) to follow_up_3 (day 5): 2 days
		next := ComputeNextSendAt(now, dto.StageFollowUp2, dto.StageFollowUp3, nil)
		assert.Equal(t, now.AddDate(0, 0, 2), next)
	})

	t.Run("gap is never below one day", func(t *testing.T) {
		// initial (day 0) to follow_up_1 (day 1): 1 day
		next := ComputeNextSendAt(now, dto.StageInitial, dto.StageFollowUp1, nil)
		assert.Equal(t, now.AddDate(0, 0, 1), next)

		// Same-offset degenerate input still advances a full day
		next = ComputeNextSendAt(now, dto.StageFollowUp3, dto.StageFollowUp3, nil)
		assert.Equal(t, now.AddDate(0, 0, 1), next)
	})

	t.Run("confident recommendation adjusts the hour", func(t *testing.T) {
		rec := &dto.OptimalTiming{RecommendedHour: 9, ConfidenceScore: 0.8}
		next := ComputeNextSendAt(now, dto.StageInitial, dto.StageFollowUp1, rec)
		assert.Equal(t, 9, next.Hour())
		assert.Equal(t, 0, next.Minute())
		assert.True(t, next.After(now))
	})

	t.Run("low-confidence recommendation is ignored", func(t *testing.T) {
		rec := &dto.OptimalTiming{RecommendedHour: 9, ConfidenceScore: 0.3}
		next := ComputeNextSendAt(now, dto.StageInitial, dto.StageFollowUp1, rec)
		assert.Equal(t, now.AddDate(0, 0, 1), next)
	})

	t.Run("result is always strictly after now", func(t *testing.T) {
		// Walk every adjacent stage pair at every recommended hour; the
		// schedule must move forward regardless
		for i := 0; i < len(stageOrder)-1; i++ {
			for hour := 0; hour < 24; hour++ {
				rec := &dto.OptimalTiming{RecommendedHour: hour, ConfidenceScore: 1.0}
				next := ComputeNextSendAt(now, stageOrder[i], stageOrder[i+1], rec)
				assert.True(t, next.After(now),
					"stage %s -> %s at hour %d produced %s, not after %s",
					stageOrder[i], stageOrder[i+1], hour, next, now)
			}
		}
	})
}

func TestIsInvalidVehicleInterest(t *testing.T) {
	t.Run("placeholders are invalid", func(t *testing.T) {
		for _, v := range []string{"", "unknown", "N/A", "na", "None", "null", "not specified", "Not Sure", "TBD", "test", "testing", "  unknown  "} {
			assert.True(t, IsInvalidVehicleInterest(v), "expected %q to be invalid", v)
		}
	})

	t.Run("letterless values are invalid", func(t *testing.T) {
		for _, v := range []string{"  ---  ", "???", "12345", "...", "- -"} {
			assert.True(t, IsInvalidVehicleInterest(v), "expected %q to be invalid", v)
		}
	})

	t.Run("real vehicle interests are valid", func(t *testing.T) {
		for _, v := range []string{"2022 Honda CR-V", "F-150", "used SUV under 25k", "Camry"} {
			assert.False(t, IsInvalidVehicleInterest(v), "expected %q to be valid", v)
		}
	})
}

func TestSanitizeVehicleInterest(t *testing.T) {
	t.Run("placeholder becomes the generic fallback", func(t *testing.T) {
		assert.Equal(t, FallbackVehicleInterest, SanitizeVehicleInterest("unknown"))
		assert.Equal(t, FallbackVehicleInterest, SanitizeVehicleInterest("  ---  "))
		assert.Equal(t, FallbackVehicleInterest, SanitizeVehicleInterest(""))
	})

	t.Run("usable value passes through trimmed", func(t *testing.T) {
		assert.Equal(t, "2022 Honda CR-V", SanitizeVehicleInterest("  2022 Honda CR-V  "))
	})
}

func TestLeadEligible(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("due opted-in lead is eligible", func(t *testing.T) {
		assert.True(t, leadEligible(&dto.Lead{AIOptIn: true, NextSendAt: &past}, now))
	})

	t.Run("never-scheduled lead is eligible immediately", func(t *testing.T) {
		assert.True(t, leadEligible(&dto.Lead{AIOptIn: true}, now))
	})

	t.Run("paused lead is not eligible", func(t *testing.T) {
		assert.False(t, leadEligible(&dto.Lead{AIOptIn: true, SequencePaused: true, NextSendAt: &past}, now))
	})

	t.Run("opted-out lead is not eligible", func(t *testing.T) {
		assert.False(t, leadEligible(&dto.Lead{AIOptIn: false, NextSendAt: &past}, now))
	})

	t.Run("future send time is not eligible", func(t *testing.T) {
		assert.False(t, leadEligible(&dto.Lead{AIOptIn: true, NextSendAt: &future}, now))
	})

	t.Run("nil lead is not eligible", func(t *testing.T) {
		assert.False(t, leadEligible(nil, now))
	})
}
