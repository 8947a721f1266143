package dto

import "time"

// TimingBucket aggregates send/response counters for one
// (template stage, hour of day, day of week) cell.
// Invariant: TotalResponses never exceeds TotalSent and ResponseRate is
// always recomputed from the counters, never mutated independently.
type TimingBucket struct {
	ID                   string        `json:"id,omitempty"`
	TemplateStage        SequenceStage `json:"template_stage"`
	HourOfDay            int           `json:"hour_of_day"`  // 0-23
	DayOfWeek            int           `json:"day_of_week"`  // 0=Sunday .. 6=Saturday
	TotalSent            int           `json:"total_sent"`
	TotalResponses       int           `json:"total_responses"`
	ResponseRate         float64       `json:"response_rate"`
	AvgResponseTimeHours float64       `json:"avg_response_time_hours"`
	UpdatedAt            time.Time     `json:"updated_at,omitempty"`
}

// Rate recomputes the response rate from the counters
func (b *TimingBucket) Rate() float64 {
	if b.TotalSent == 0 {
		return 0
	}
	return float64(b.TotalResponses) / float64(b.TotalSent)
}

// OptimalTiming is the learned send-window recommendation for a stage,
// written only when the stage's sample size clears the learning threshold
type OptimalTiming struct {
	TemplateStage           SequenceStage `json:"template_stage"`
	RecommendedHour         int           `json:"recommended_hour"`
	RecommendedDayOffsetHrs int           `json:"recommended_day_offset_hours"`
	ConfidenceScore         float64       `json:"confidence_score"` // 0-1, proportional to sample size
	SampleSize              int           `json:"sample_size"`
	UpdatedAt               time.Time     `json:"updated_at,omitempty"`
}

// TimingInsight is one stage's analysis result from a learning pass
type TimingInsight struct {
	TemplateStage SequenceStage `json:"template_stage"`
	BestHour      int           `json:"best_hour"`
	BestDayOfWeek int           `json:"best_day_of_week"`
	ResponseRate  float64       `json:"response_rate"` // stage aggregate
	SampleSize    int           `json:"sample_size"`
	Confidence    float64       `json:"confidence"`
	Recommended   bool          `json:"recommended"` // true when an OptimalTiming row was written
}
