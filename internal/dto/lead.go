package dto

import "time"

// SequenceStage identifies which step of the outbound cadence a lead is on
type SequenceStage string

const (
	StageInitial   SequenceStage = "initial"
	StageFollowUp1 SequenceStage = "follow_up_1"
	StageFollowUp2 SequenceStage = "follow_up_2"
	StageFollowUp3 SequenceStage = "follow_up_3"
	StageFollowUp4 SequenceStage = "follow_up_4"
	StageFollowUp5 SequenceStage = "follow_up_5"
	StageFollowUp6 SequenceStage = "follow_up_6"
	StageFollowUp7 SequenceStage = "follow_up_7"
	StageFollowUp8 SequenceStage = "follow_up_8"
	StageFollowUp9 SequenceStage = "follow_up_9"
)

// PauseReason explains why a lead's sequence is suspended
type PauseReason string

const (
	PauseReasonDailyLimit       PauseReason = "daily_limit_reached"
	PauseReasonManual           PauseReason = "manual"
	PauseReasonStaleTimeout     PauseReason = "stale_timeout"
	PauseReasonOptOut           PauseReason = "opt_out"
	PauseReasonSequenceComplete PauseReason = "sequence_complete"
)

// LeadPriority buckets leads by temperature score for the sales dashboard
type LeadPriority string

const (
	PriorityHot  LeadPriority = "hot"
	PriorityWarm LeadPriority = "warm"
	PriorityCool LeadPriority = "cool"
	PriorityCold LeadPriority = "cold"
)

// Lead represents a CRM lead row with its AI automation schedule state
// @Description Lead with per-lead follow-up automation state
type Lead struct {
	ID              string  `json:"id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Phone           string  `json:"phone,omitempty"`
	VehicleInterest string  `json:"vehicle_interest,omitempty"`
	Source          string  `json:"source,omitempty"`
	SalespersonID   *string `json:"salesperson_id,omitempty"`

	// Automation schedule state
	AIOptIn          bool          `json:"ai_opt_in"`
	SequencePaused   bool          `json:"ai_sequence_paused"`
	PauseReason      *PauseReason  `json:"ai_pause_reason,omitempty"`
	PausedAt         *time.Time    `json:"ai_paused_at,omitempty"`
	NextSendAt       *time.Time    `json:"next_ai_send_at,omitempty"`
	SequenceStage    SequenceStage `json:"ai_sequence_stage,omitempty"`
	MessagesToday    int           `json:"ai_messages_sent_today"`
	MessagesTotal    int           `json:"ai_messages_sent_total"`
	CounterDate      string        `json:"ai_counter_date,omitempty"` // YYYY-MM-DD of the daily counter
	LastReplyAt      *time.Time    `json:"last_reply_at,omitempty"`
	FirstContactAt   *time.Time    `json:"first_contact_at,omitempty"`
	Temperature      int           `json:"ai_temperature,omitempty"`
	Priority         LeadPriority  `json:"ai_priority,omitempty"`
	CreatedAt        time.Time     `json:"created_at,omitempty"`
}

// FullName returns the lead's display name for message personalization
func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// ScheduleUpdate carries the fields written back to a lead after a send
type ScheduleUpdate struct {
	NextSendAt    *time.Time
	SequenceStage SequenceStage
	MessagesToday int
	MessagesTotal int
	CounterDate   string
}
