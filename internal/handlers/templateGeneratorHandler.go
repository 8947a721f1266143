package handlers

import (
	"context"
	"fmt"
	"strings"

	"driveline/dealer-crm-worker/internal/dto"
)

// stageTemplates are the deterministic fallback texts used when no AI
// backend is configured. %s slots: first name, then vehicle interest where
// the template has two slots.
var stageTemplates = map[dto.SequenceStage]string{
	dto.StageInitial:   "Hi %s! Thanks for your interest in %s. I'd love to help you find the right fit - any questions I can answer?",
	dto.StageFollowUp1: "Hi %s, just checking in about %s. Happy to set up a time to take a look whenever works for you.",
	dto.StageFollowUp2: "Hey %s, wanted to follow up on %s. Is there anything holding you back that I can help with?",
	dto.StageFollowUp3: "Hi %s, still thinking about %s? I can send over some options if that's easier.",
	dto.StageFollowUp4: "Hey %s, no rush at all - just keeping %s on your radar. Let me know if you'd like an update.",
	dto.StageFollowUp5: "Hi %s, checking in one more time about %s. Happy to answer anything when you're ready.",
	dto.StageFollowUp6: "Hey %s, hope all is well. If %s is still on your mind, I'm here to help.",
	dto.StageFollowUp7: "Hi %s, it's been a little while. Want me to keep an eye out on %s for you?",
	dto.StageFollowUp8: "Hey %s, just a quick note - if your plans around %s have changed, no problem at all. Here if you need me.",
	dto.StageFollowUp9: "Hi %s, last check-in from me. If %s ever comes back on your list, you know where to find me!",
}

// TemplateMessageGenerator produces follow-up texts from static per-stage
// templates. Used as the content backend when no Gemini credentials are set,
// and by tests.
type TemplateMessageGenerator struct{}

// NewTemplateMessageGenerator creates a new TemplateMessageGenerator instance
func NewTemplateMessageGenerator() *TemplateMessageGenerator {
	return &TemplateMessageGenerator{}
}

// Generate renders the template for the lead's stage
func (g *TemplateMessageGenerator) Generate(_ context.Context, mc dto.MessageContext) (string, error) {
	tmpl, ok := stageTemplates[mc.Stage]
	if !ok {
		return "", fmt.Errorf("no template for stage %q", mc.Stage)
	}

	firstName := mc.LeadName
	if idx := strings.Index(firstName, " "); idx > 0 {
		firstName = firstName[:idx]
	}
	if firstName == "" {
		firstName = "there"
	}

	return fmt.Sprintf(tmpl, firstName, mc.VehicleInterest), nil
}
