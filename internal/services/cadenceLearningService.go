package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
)

const (
	// MinBucketSends is the minimum sends a single bucket needs before it
	// can be considered a best-window candidate
	MinBucketSends = 5

	// MinLearningSampleSize is the minimum per-stage sample size before a
	// recommendation may be written. Stages below it stay on the static
	// cadence table.
	MinLearningSampleSize = 20

	// confidenceSaturation is the sample size at which confidence reaches 1.0
	confidenceSaturation = 50

	// responsePairingWindow bounds how long after a send an inbound reply
	// still counts as a response to it
	responsePairingWindow = 48 * time.Hour
)

var learningLog = &AutomationLogger{prefix: "CadenceLearning"}

// TimingStore is the persistence surface of the learning analyzer.
// Implemented by handlers.SupabaseHandler.
type TimingStore interface {
	GetTimingBuckets() ([]dto.TimingBucket, error)
	UpsertOptimalTiming(rec *dto.OptimalTiming) error
	GetMessagesSince(since time.Time) ([]dto.Message, error)
	ReplaceTimingBuckets(buckets []dto.TimingBucket) error
}

// CadenceLearningService recomputes optimal send windows from the timing
// analytics and can rebuild the analytics from the raw message log
type CadenceLearningService struct {
	store TimingStore
}

// NewCadenceLearningService creates a new CadenceLearningService instance
func NewCadenceLearningService(store TimingStore) *CadenceLearningService {
	return &CadenceLearningService{store: store}
}

// AnalyzeOptimalTiming runs one learning pass over the full analytics
// dataset and upserts a recommendation for every stage whose sample size
// clears the threshold. Below-threshold stages are never touched, so an
// existing recommendation is never regressed by thin data.
func (s *CadenceLearningService) AnalyzeOptimalTiming(ctx context.Context) ([]dto.TimingInsight, error) {
	buckets, err := s.store.GetTimingBuckets()
	if err != nil {
		return nil, fmt.Errorf("failed to load timing buckets: %w", err)
	}

	insights := computeTimingInsights(buckets)

	recommended := 0
	for i := range insights {
		insight := &insights[i]
		if insight.SampleSize < MinLearningSampleSize {
			continue
		}

		rec := &dto.OptimalTiming{
			TemplateStage:           insight.TemplateStage,
			RecommendedHour:         insight.BestHour,
			RecommendedDayOffsetHrs: StageDayOffset(insight.TemplateStage) * 24,
			ConfidenceScore:         insight.Confidence,
			SampleSize:              insight.SampleSize,
		}
		if err := s.store.UpsertOptimalTiming(rec); err != nil {
			learningLog.Error("Failed to upsert timing recommendation", map[string]interface{}{
				"stage": insight.TemplateStage,
				"error": err.Error(),
			})
			continue
		}
		insight.Recommended = true
		recommended++

		learningLog.Info("Timing recommendation updated", map[string]interface{}{
			"stage":         insight.TemplateStage,
			"best_hour":     insight.BestHour,
			"best_day":      insight.BestDayOfWeek,
			"response_rate": insight.ResponseRate,
			"sample_size":   insight.SampleSize,
			"confidence":    insight.Confidence,
		})
	}

	learningLog.Info("Learning pass complete", map[string]interface{}{
		"stages_analyzed":     len(insights),
		"recommendations_set": recommended,
	})

	return insights, nil
}

// computeTimingInsights aggregates buckets per stage: the best candidate
// bucket (highest response rate among those with enough sends), the stage's
// aggregate response rate, and a sample-size-proportional confidence
func computeTimingInsights(buckets []dto.TimingBucket) []dto.TimingInsight {
	type stageAgg struct {
		totalSent      int
		totalResponses int
		best           *dto.TimingBucket
	}

	byStage := make(map[dto.SequenceStage]*stageAgg)
	for i := range buckets {
		b := &buckets[i]
		agg := byStage[b.TemplateStage]
		if agg == nil {
			agg = &stageAgg{}
			byStage[b.TemplateStage] = agg
		}

		agg.totalSent += b.TotalSent
		agg.totalResponses += b.TotalResponses

		if b.TotalSent >= MinBucketSends {
			if agg.best == nil || b.Rate() > agg.best.Rate() {
				agg.best = b
			}
		}
	}

	insights := make([]dto.TimingInsight, 0, len(byStage))
	for stage, agg := range byStage {
		if agg.best == nil {
			// No bucket has enough sends to name a window yet
			continue
		}

		rate := 0.0
		if agg.totalSent > 0 {
			rate = float64(agg.totalResponses) / float64(agg.totalSent)
		}

		confidence := float64(agg.totalSent) / float64(confidenceSaturation)
		if confidence > 1.0 {
			confidence = 1.0
		}

		insights = append(insights, dto.TimingInsight{
			TemplateStage: stage,
			BestHour:      agg.best.HourOfDay,
			BestDayOfWeek: agg.best.DayOfWeek,
			ResponseRate:  rate,
			SampleSize:    agg.totalSent,
			Confidence:    confidence,
		})
	}

	sort.Slice(insights, func(i, j int) bool {
		return StageDayOffset(insights[i].TemplateStage) < StageDayOffset(insights[j].TemplateStage)
	})

	return insights
}

// BackfillAnalytics rebuilds the timing buckets from the raw message log
// over the trailing window. Used to seed the analytics table on rollout and
// to repair drift after partial writes.
func (s *CadenceLearningService) BackfillAnalytics(ctx context.Context, days int) error {
	if days <= 0 {
		days = 90
	}
	since := time.Now().AddDate(0, 0, -days)

	messages, err := s.store.GetMessagesSince(since)
	if err != nil {
		return fmt.Errorf("failed to load message history: %w", err)
	}

	buckets := buildBucketsFromMessages(messages, responsePairingWindow)

	if err := s.store.ReplaceTimingBuckets(buckets); err != nil {
		return fmt.Errorf("failed to replace timing buckets: %w", err)
	}

	learningLog.Info("Analytics backfill complete", map[string]interface{}{
		"days":     days,
		"messages": len(messages),
		"buckets":  len(buckets),
	})

	return nil
}

// buildBucketsFromMessages pairs each outbound AI message with the first
// inbound reply from the same lead inside the pairing window and aggregates
// the result into timing buckets keyed by the send's stage/hour/weekday
func buildBucketsFromMessages(messages []dto.Message, window time.Duration) []dto.TimingBucket {
	byLead := make(map[string][]dto.Message)
	for _, m := range messages {
		byLead[m.LeadID] = append(byLead[m.LeadID], m)
	}

	type bucketKey struct {
		stage dto.SequenceStage
		hour  int
		day   int
	}
	agg := make(map[bucketKey]*dto.TimingBucket)

	for _, thread := range byLead {
		sort.Slice(thread, func(i, j int) bool {
			return thread[i].SentAt.Before(thread[j].SentAt)
		})

		for i, m := range thread {
			if m.Direction != dto.DirectionOut || !m.AIGenerated {
				continue
			}

			key := bucketKey{stage: m.Stage, hour: m.SentAt.Hour(), day: int(m.SentAt.Weekday())}
			b := agg[key]
			if b == nil {
				b = &dto.TimingBucket{
					TemplateStage: m.Stage,
					HourOfDay:     key.hour,
					DayOfWeek:     key.day,
				}
				agg[key] = b
			}
			b.TotalSent++

			// First inbound reply within the window counts as the
			// response; a newer outbound send supersedes this one
			for j := i + 1; j < len(thread); j++ {
				reply := thread[j]
				if reply.Direction == dto.DirectionOut && reply.AIGenerated {
					break
				}
				if reply.Direction != dto.DirectionIn {
					continue
				}
				elapsed := reply.SentAt.Sub(m.SentAt)
				if elapsed < 0 || elapsed > window {
					break
				}
				responseHours := elapsed.Hours()
				b.AvgResponseTimeHours = (b.AvgResponseTimeHours*float64(b.TotalResponses) + responseHours) / float64(b.TotalResponses+1)
				b.TotalResponses++
				break
			}
		}
	}

	buckets := make([]dto.TimingBucket, 0, len(agg))
	for _, b := range agg {
		b.ResponseRate = b.Rate()
		buckets = append(buckets, *b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].TemplateStage != buckets[j].TemplateStage {
			return StageDayOffset(buckets[i].TemplateStage) < StageDayOffset(buckets[j].TemplateStage)
		}
		if buckets[i].DayOfWeek != buckets[j].DayOfWeek {
			return buckets[i].DayOfWeek < buckets[j].DayOfWeek
		}
		return buckets[i].HourOfDay < buckets[j].HourOfDay
	})

	return buckets
}
