package dto

import "time"

// MessageDirection distinguishes outbound sends from inbound replies
type MessageDirection string

const (
	DirectionOut MessageDirection = "out"
	DirectionIn  MessageDirection = "in"
)

// Message is one row in the append-only conversation log
type Message struct {
	ID          string           `json:"id,omitempty"`
	LeadID      string           `json:"lead_id"`
	Body        string           `json:"body"`
	Direction   MessageDirection `json:"direction"`
	AIGenerated bool             `json:"ai_generated"`
	Stage       SequenceStage    `json:"template_stage,omitempty"` // stage the message was sent under
	SentAt      time.Time        `json:"sent_at"`
}

// MessageContext is the lead context handed to the content generator
type MessageContext struct {
	LeadName            string        `json:"lead_name"`
	VehicleInterest     string        `json:"vehicle_interest"`
	Stage               SequenceStage `json:"stage"`
	ConversationHistory []Message     `json:"conversation_history,omitempty"`
}

// InboundReply is the webhook payload for an inbound lead message
type InboundReply struct {
	LeadID     string    `json:"lead_id"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}
