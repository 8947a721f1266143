package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"driveline/dealer-crm-worker/internal/dto"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const (
	// DefaultGenerationTimeout is the timeout for generating a single follow-up
	DefaultGenerationTimeout = 30 * time.Second
	// DefaultGeneratorModel is the default Gemini model for message generation
	DefaultGeneratorModel = "gemini-2.5-flash"
	// maxMessageLength caps generated follow-ups at a two-segment SMS
	maxMessageLength = 320
)

// MessageGeneratorConfig holds configuration for the MessageGeneratorHandler
type MessageGeneratorConfig struct {
	// APIKey is the Google API key for Gemini (used with Google AI Studio backend)
	APIKey string
	// Model is the Gemini model to use (default: gemini-2.5-flash for speed)
	Model string
	// Timeout for generating each message
	Timeout time.Duration
	// UseVertexAI enables Vertex AI backend instead of Google AI Studio
	UseVertexAI bool
	// GCPProject is the Google Cloud project ID (for Vertex AI backend)
	GCPProject string
	// GCPLocation is the Google Cloud location/region (for Vertex AI backend)
	GCPLocation string
}

// MessageGeneratorHandler produces personalized follow-up texts using AI
type MessageGeneratorHandler struct {
	config         MessageGeneratorConfig
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
}

// NewMessageGeneratorHandler creates a new MessageGeneratorHandler instance
func NewMessageGeneratorHandler(config MessageGeneratorConfig) (*MessageGeneratorHandler, error) {
	// Check for Vertex AI configuration from env vars
	if os.Getenv("GOOGLE_GENAI_USE_VERTEXAI") == "true" {
		config.UseVertexAI = true
	}
	if config.GCPProject == "" {
		config.GCPProject = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if config.GCPLocation == "" {
		config.GCPLocation = os.Getenv("GOOGLE_CLOUD_LOCATION")
	}

	if config.UseVertexAI {
		if config.GCPProject == "" {
			return nil, fmt.Errorf("GCP Project is required for Vertex AI (set GOOGLE_CLOUD_PROJECT env var)")
		}
		if config.GCPLocation == "" {
			return nil, fmt.Errorf("GCP Location is required for Vertex AI (set GOOGLE_CLOUD_LOCATION env var)")
		}
	} else {
		if config.APIKey == "" {
			config.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if config.APIKey == "" {
			return nil, fmt.Errorf("Google API key is required (set GOOGLE_API_KEY env var)")
		}
	}

	if config.Model == "" {
		config.Model = DefaultGeneratorModel
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultGenerationTimeout
	}

	ctx := context.Background()

	var clientConfig *genai.ClientConfig
	if config.UseVertexAI {
		log.Printf("[MessageGeneratorHandler] Initializing with Vertex AI backend (project: %s, location: %s, model: %s)",
			config.GCPProject, config.GCPLocation, config.Model)
		clientConfig = &genai.ClientConfig{
			Project:  config.GCPProject,
			Location: config.GCPLocation,
			Backend:  genai.BackendVertexAI,
		}
	} else {
		log.Printf("[MessageGeneratorHandler] Initializing with Google AI Studio backend (model: %s)", config.Model)
		clientConfig = &genai.ClientConfig{
			APIKey:  config.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}

	model, err := gemini.NewModel(ctx, config.Model, clientConfig)
	if err != nil {
		log.Printf("[MessageGeneratorHandler] Failed to create Gemini model: %v", err)
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}

	followUpAgent, err := llmagent.New(llmagent.Config{
		Name:        "follow_up_agent",
		Model:       model,
		Description: "An AI agent that writes short personalized follow-up texts for dealership leads.",
		Instruction: buildGeneratorInstruction(),
	})
	if err != nil {
		log.Printf("[MessageGeneratorHandler] Failed to create agent: %v", err)
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "follow_up_generator",
		Agent:          followUpAgent,
		SessionService: sessionService,
	})
	if err != nil {
		log.Printf("[MessageGeneratorHandler] Failed to create runner: %v", err)
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	log.Printf("[MessageGeneratorHandler] Successfully initialized with model: %s", config.Model)

	return &MessageGeneratorHandler{
		config:         config,
		agent:          followUpAgent,
		runner:         r,
		sessionService: sessionService,
	}, nil
}

// buildGeneratorInstruction creates the system instruction for the follow-up agent
func buildGeneratorInstruction() string {
	return `You are a friendly, professional automotive sales assistant writing SMS follow-ups to dealership leads.

RULES:
- Write ONE short text message (1-3 sentences, under 320 characters)
- Use the lead's first name naturally, never in every sentence
- Reference their vehicle interest when one is given; if none is given, talk about finding the right fit
- Match the tone to the follow-up stage: early messages are warm and direct, later messages are low-pressure check-ins
- Never pressure, never use ALL CAPS, never use more than one exclamation mark
- Never invent inventory, prices, offers, or appointment times
- Never mention that you are an AI or an automated system
- If conversation history is provided, do not repeat earlier messages

OUTPUT FORMAT:
Respond with ONLY the message text. No quotes, no markdown, no explanations.`
}

// Generate produces one follow-up message for a lead. An empty or unusable
// model response surfaces as an error so the pipeline leaves the lead due.
func (h *MessageGeneratorHandler) Generate(ctx context.Context, mc dto.MessageContext) (string, error) {
	prompt := h.buildPrompt(mc)

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	userMessage := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}

	userID := "system"
	createResp, err := h.sessionService.Create(ctx, &session.CreateRequest{
		AppName: "follow_up_generator",
		UserID:  userID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	sessionID := createResp.Session.ID()
	defer func() {
		_ = h.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   "follow_up_generator",
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	var responseText string
	runConfig := agent.RunConfig{
		StreamingMode: agent.StreamingModeNone,
	}

	log.Printf("[MessageGeneratorHandler] Generating %s follow-up (session: %s)", mc.Stage, sessionID)

	for event, err := range h.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			log.Printf("[MessageGeneratorHandler] Generation error: %v", err)
			return "", fmt.Errorf("generation failed: %w", err)
		}

		if event.Content != nil {
			for _, part := range event.Content.Parts {
				if part.Text != "" {
					responseText += part.Text
				}
			}
		}
	}

	text := cleanGeneratedMessage(responseText)
	if text == "" {
		return "", fmt.Errorf("model returned an empty message")
	}

	return text, nil
}

// buildPrompt creates the generation prompt for one lead
func (h *MessageGeneratorHandler) buildPrompt(mc dto.MessageContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write the next follow-up text for this lead.\n\n")
	fmt.Fprintf(&b, "Lead name: %s\n", mc.LeadName)
	fmt.Fprintf(&b, "Vehicle interest: %s\n", mc.VehicleInterest)
	fmt.Fprintf(&b, "Follow-up stage: %s\n", mc.Stage)

	if len(mc.ConversationHistory) > 0 {
		b.WriteString("\nConversation so far (oldest first):\n")
		for _, m := range mc.ConversationHistory {
			who := "Lead"
			if m.Direction == dto.DirectionOut {
				who = "You"
			}
			fmt.Fprintf(&b, "- %s: %s\n", who, m.Body)
		}
	} else {
		b.WriteString("\nNo prior conversation.\n")
	}

	b.WriteString("\nRespond with ONLY the message text.")
	return b.String()
}

// cleanGeneratedMessage strips the wrapping the model sometimes adds and
// enforces the length cap
func cleanGeneratedMessage(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Models occasionally quote the whole message
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	if len(text) > maxMessageLength {
		// Cut at the last sentence boundary that fits, never mid-rune
		end := maxMessageLength
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		cut := text[:end]
		if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 {
			cut = cut[:idx+1]
		}
		text = strings.TrimSpace(cut)
	}

	return text
}
