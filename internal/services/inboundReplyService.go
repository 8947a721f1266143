package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
)

var replyLog = &AutomationLogger{prefix: "InboundReply"}

// optOutKeywords pause the sequence and clear the opt-in flag when found in
// an inbound message
var optOutKeywords = []string{
	"stop",
	"stopall",
	"unsubscribe",
	"cancel",
	"quit",
	"opt out",
	"opt-out",
	"remove me",
	"do not text",
	"don't text",
	"no more messages",
}

// ReplyStore is the persistence surface of inbound reply ingestion.
// Implemented by handlers.SupabaseHandler.
type ReplyStore interface {
	GetLeadByID(id string) (*dto.Lead, error)
	InsertMessage(msg *dto.Message) (string, error)
	MarkLeadReplied(leadID string, at time.Time) error
	PauseLead(leadID string, reason dto.PauseReason, clearOptIn bool) error
	GetLastOutboundMessage(leadID string) (*dto.Message, error)
	RecordResponse(stage dto.SequenceStage, hour, weekday int, responseHours float64) error
	UpdateLeadScore(leadID string, temperature int, priority dto.LeadPriority) error
}

// InboundReplyService ingests inbound lead messages: it records the reply,
// pauses the cadence for human handoff (or opt-out), feeds the timing
// analytics, and reheats the lead's temperature score
type InboundReplyService struct {
	store ReplyStore
}

// NewInboundReplyService creates a new InboundReplyService instance
func NewInboundReplyService(store ReplyStore) *InboundReplyService {
	return &InboundReplyService{store: store}
}

// ProcessReply handles one inbound message for a lead
func (s *InboundReplyService) ProcessReply(ctx context.Context, reply *dto.InboundReply) error {
	receivedAt := reply.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	lead, err := s.store.GetLeadByID(reply.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}

	if _, err := s.store.InsertMessage(&dto.Message{
		LeadID:      reply.LeadID,
		Body:        reply.Body,
		Direction:   dto.DirectionIn,
		AIGenerated: false,
		SentAt:      receivedAt,
	}); err != nil {
		return fmt.Errorf("failed to persist inbound message: %w", err)
	}

	if err := s.store.MarkLeadReplied(reply.LeadID, receivedAt); err != nil {
		return fmt.Errorf("failed to mark lead replied: %w", err)
	}

	optedOut := ContainsOptOutKeyword(reply.Body)
	if optedOut {
		if err := s.store.PauseLead(reply.LeadID, dto.PauseReasonOptOut, true); err != nil {
			return fmt.Errorf("failed to opt lead out: %w", err)
		}
		replyLog.Warn("Lead opted out", map[string]interface{}{
			"lead_id": reply.LeadID,
		})
	} else if lead.AIOptIn && !lead.SequencePaused {
		// A live reply hands the conversation to a human; the cadence
		// stays paused until someone resumes it
		if err := s.store.PauseLead(reply.LeadID, dto.PauseReasonManual, false); err != nil {
			return fmt.Errorf("failed to pause lead for handoff: %w", err)
		}
	}

	s.recordResponseTiming(reply.LeadID, receivedAt)

	// Reheat the lead's score with the fresh reply
	rescored := *lead
	rescored.LastReplyAt = &receivedAt
	if optedOut {
		rescored.AIOptIn = false
	}
	temperature, priority := ScoreLead(&rescored, receivedAt)
	if err := s.store.UpdateLeadScore(reply.LeadID, temperature, priority); err != nil {
		replyLog.Warn("Failed to update lead score after reply", map[string]interface{}{
			"lead_id": reply.LeadID,
			"error":   err.Error(),
		})
	}

	replyLog.Info("Inbound reply processed", map[string]interface{}{
		"lead_id":     reply.LeadID,
		"opted_out":   optedOut,
		"temperature": temperature,
		"priority":    priority,
	})

	return nil
}

// recordResponseTiming attributes the reply to the last outbound AI send's
// timing bucket. Best effort: analytics gaps are logged, never fatal.
func (s *InboundReplyService) recordResponseTiming(leadID string, receivedAt time.Time) {
	last, err := s.store.GetLastOutboundMessage(leadID)
	if err != nil || last == nil || !last.AIGenerated {
		return
	}

	elapsed := receivedAt.Sub(last.SentAt)
	if elapsed <= 0 || elapsed > responsePairingWindow {
		return
	}

	if err := s.store.RecordResponse(last.Stage, last.SentAt.Hour(), int(last.SentAt.Weekday()), elapsed.Hours()); err != nil {
		replyLog.Warn("Failed to record response timing", map[string]interface{}{
			"lead_id": leadID,
			"stage":   last.Stage,
			"error":   err.Error(),
		})
	}
}

// ContainsOptOutKeyword reports whether an inbound message asks to stop
// receiving texts
func ContainsOptOutKeyword(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if normalized == "" {
		return false
	}

	// Single-word commands must match the whole message ("stop"), not a
	// substring ("non-stop shopping")
	for _, kw := range optOutKeywords {
		if strings.Contains(kw, " ") || strings.Contains(kw, "-") {
			if strings.Contains(normalized, kw) {
				return true
			}
			continue
		}
		for _, word := range strings.Fields(normalized) {
			if strings.Trim(word, ".,!?") == kw {
				return true
			}
		}
	}
	return false
}
