package main

import (
	"context"
	"log"

	"driveline/dealer-crm-worker/internal/api"
	"driveline/dealer-crm-worker/internal/config"
	"driveline/dealer-crm-worker/internal/dto"
	"driveline/dealer-crm-worker/internal/handlers"
	"driveline/dealer-crm-worker/internal/services"

	"github.com/robfig/cron/v3"

	_ "driveline/dealer-crm-worker/docs" // Swagger generated docs
)

// @title Dealer CRM Worker API
// @version 1.0
// @description Follow-up automation worker for dealership CRM leads: scheduled cadence cycles, inbound reply handling, and automation health.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	// Load configuration from environment variables
	cfg := config.Load()

	// Validate required configuration
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		log.Fatal("SUPABASE_URL and SUPABASE_SECRET_KEY environment variables are required")
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("WEBHOOK_SECRET environment variable is required")
	}

	// Initialize SupabaseHandler
	supabaseHandler, err := handlers.NewSupabaseHandler(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		log.Fatalf("Failed to initialize SupabaseHandler: %v", err)
	}

	// Initialize the content generator: Gemini when configured, otherwise
	// the static per-stage templates
	var generator services.MessageGenerator
	if cfg.GoogleAPIKey != "" || cfg.UseVertexAI {
		llmGenerator, err := handlers.NewMessageGeneratorHandler(handlers.MessageGeneratorConfig{
			APIKey:      cfg.GoogleAPIKey,
			Model:       cfg.GeminiModel, // Uses GEMINI_MODEL env var, falls back to DefaultGeneratorModel in handler
			UseVertexAI: cfg.UseVertexAI,
			GCPProject:  cfg.GCPProject,
			GCPLocation: cfg.GCPLocation,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize MessageGeneratorHandler: %v", err)
			log.Printf("Falling back to template-based message generation")
			generator = handlers.NewTemplateMessageGenerator()
		} else {
			backend := "Google AI Studio"
			if cfg.UseVertexAI {
				backend = "Vertex AI"
			}
			model := cfg.GeminiModel
			if model == "" {
				model = handlers.DefaultGeneratorModel
			}
			log.Printf("MessageGeneratorHandler initialized - AI message generation enabled (backend: %s, model: %s)",
				backend, model)
			generator = llmGenerator
		}
	} else {
		log.Printf("GOOGLE_API_KEY or Vertex AI not configured - using template-based message generation")
		generator = handlers.NewTemplateMessageGenerator()
	}

	// Initialize services
	automationProcessor := services.NewAutomationProcessor(supabaseHandler, generator)
	cleanupService := services.NewCleanupService(supabaseHandler)
	learningService := services.NewCadenceLearningService(supabaseHandler)
	scoringService := services.NewLeadScoringService(supabaseHandler)
	replyService := services.NewInboundReplyService(supabaseHandler)

	// One-shot analytics rebuild on rollout or after drift
	if cfg.BackfillDays > 0 {
		go func() {
			log.Printf("Running analytics backfill over the last %d days", cfg.BackfillDays)
			if err := learningService.BackfillAnalytics(context.Background(), cfg.BackfillDays); err != nil {
				log.Printf("Analytics backfill failed: %v", err)
			}
		}()
	}

	// Schedule the background timers
	if cfg.SchedulerEnabled {
		scheduler := cron.New()

		mustSchedule(scheduler, "automation cycle", cfg.CycleCron, func() {
			if _, err := automationProcessor.RunCycle(context.Background(), dto.RunSourceScheduled); err != nil {
				log.Printf("Scheduled automation cycle failed: %v", err)
			}
		})
		mustSchedule(scheduler, "cleanup sweep", cfg.CleanupCron, func() {
			cleanupService.RunCleanup(context.Background())
		})
		mustSchedule(scheduler, "health check", cfg.HealthCron, func() {
			if _, err := cleanupService.HealthSnapshot(context.Background()); err != nil {
				log.Printf("Scheduled health check failed: %v", err)
			}
		})
		mustSchedule(scheduler, "cadence learning", cfg.LearningCron, func() {
			if _, err := learningService.AnalyzeOptimalTiming(context.Background()); err != nil {
				log.Printf("Scheduled learning pass failed: %v", err)
			}
		})
		mustSchedule(scheduler, "lead rescore", cfg.RescoreCron, func() {
			if _, err := scoringService.RescoreRecentLeads(context.Background()); err != nil {
				log.Printf("Scheduled rescore pass failed: %v", err)
			}
		})

		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("Scheduler started (cycle=%q cleanup=%q health=%q learning=%q rescore=%q)",
			cfg.CycleCron, cfg.CleanupCron, cfg.HealthCron, cfg.LearningCron, cfg.RescoreCron)
	} else {
		log.Printf("AUTOMATION_SCHEDULER_DISABLED=true - background timers disabled, manual triggers only")
	}

	// Setup router
	router := api.NewRouter(cfg.WebhookSecret, automationProcessor, cleanupService, replyService)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func mustSchedule(scheduler *cron.Cron, name, spec string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatalf("Invalid cron spec for %s (%q): %v", name, spec, err)
	}
}
