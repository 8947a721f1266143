package services

import (
	"strings"
	"time"
	"unicode"

	"driveline/dealer-crm-worker/internal/dto"
)

const (
	// MinRecommendationConfidence gates how sure the learner must be before
	// its recommended hour overrides the static cadence table
	MinRecommendationConfidence = 0.5

	// FallbackVehicleInterest replaces placeholder garbage in the lead's
	// vehicle-interest field before it reaches the content generator
	FallbackVehicleInterest = "finding the right vehicle for you"
)

// stageOrder is the fixed outbound cadence, first step to last
var stageOrder = []dto.SequenceStage{
	dto.StageInitial,
	dto.StageFollowUp1,
	dto.StageFollowUp2,
	dto.StageFollowUp3,
	dto.StageFollowUp4,
	dto.StageFollowUp5,
	dto.StageFollowUp6,
	dto.StageFollowUp7,
	dto.StageFollowUp8,
	dto.StageFollowUp9,
}

// stageDayOffsets maps each stage to its day offset from first contact
var stageDayOffsets = map[dto.SequenceStage]int{
	dto.StageInitial:   0,
	dto.StageFollowUp1: 1,
	dto.StageFollowUp2: 3,
	dto.StageFollowUp3: 5,
	dto.StageFollowUp4: 7,
	dto.StageFollowUp5: 10,
	dto.StageFollowUp6: 14,
	dto.StageFollowUp7: 21,
	dto.StageFollowUp8: 30,
	dto.StageFollowUp9: 45,
}

// StageDayOffset returns the stage's day offset from first contact.
// Unknown stages fall back to the initial offset.
func StageDayOffset(stage dto.SequenceStage) int {
	if d, ok := stageDayOffsets[stage]; ok {
		return d
	}
	return 0
}

// NextStage returns the stage following the given one. ok=false means the
// cadence is exhausted and the sequence should complete.
func NextStage(stage dto.SequenceStage) (dto.SequenceStage, bool) {
	for i, s := range stageOrder {
		if s == stage {
			if i+1 < len(stageOrder) {
				return stageOrder[i+1], true
			}
			return "", false
		}
	}
	// Unknown stage: restart at the first follow-up rather than dropping
	// the lead out of the cadence
	return dto.StageFollowUp1, true
}

// ComputeNextSendAt computes when the next message for a lead is due. The
// gap comes from the static day-offset table; the hour is adjusted to the
// learned recommendation when one exists with enough confidence. The result
// is always strictly after now (schedule monotonicity).
func ComputeNextSendAt(now time.Time, current, next dto.SequenceStage, rec *dto.OptimalTiming) time.Time {
	days := StageDayOffset(next) - StageDayOffset(current)
	if days < 1 {
		days = 1
	}

	nextSend := now.AddDate(0, 0, days)

	if rec != nil && rec.ConfidenceScore >= MinRecommendationConfidence {
		nextSend = time.Date(nextSend.Year(), nextSend.Month(), nextSend.Day(),
			rec.RecommendedHour, 0, 0, 0, nextSend.Location())
		// Hour adjustment must not pull the send into the past
		if !nextSend.After(now) {
			nextSend = nextSend.AddDate(0, 0, 1)
		}
	}

	return nextSend
}

// invalidVehicleInterests are placeholder values that must never be echoed
// into a generated message
var invalidVehicleInterests = map[string]struct{}{
	"":              {},
	"unknown":       {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"not specified": {},
	"not sure":      {},
	"tbd":           {},
	"test":          {},
	"testing":       {},
}

// IsInvalidVehicleInterest reports whether the raw vehicle-interest value is
// a known placeholder or otherwise unusable in message copy
func IsInvalidVehicleInterest(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, bad := invalidVehicleInterests[v]; bad {
		return true
	}

	// Values with no letters (pure punctuation, digits, whitespace) carry
	// no usable vehicle information
	for _, r := range v {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// SanitizeVehicleInterest returns copy-safe vehicle-interest text: the
// trimmed original when usable, the generic fallback otherwise
func SanitizeVehicleInterest(raw string) string {
	if IsInvalidVehicleInterest(raw) {
		return FallbackVehicleInterest
	}
	return strings.TrimSpace(raw)
}

// leadEligible re-checks that a lead may receive a send right now: opted in,
// not paused, and due. State may have changed between selection and dispatch.
func leadEligible(lead *dto.Lead, now time.Time) bool {
	if lead == nil || !lead.AIOptIn || lead.SequencePaused {
		return false
	}
	if lead.NextSendAt == nil {
		return true
	}
	return !lead.NextSendAt.After(now)
}
