package api

import (
	"net/http"

	"driveline/dealer-crm-worker/internal/api/controllers"
	"driveline/dealer-crm-worker/internal/services"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter creates and configures a new Gin router
func NewRouter(
	webhookSecret string,
	processor *services.AutomationProcessor,
	cleanup *services.CleanupService,
	replies *services.InboundReplyService,
) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery middleware

	// Initialize controllers
	automationController := controllers.NewAutomationController(webhookSecret, processor)
	healthController := controllers.NewHealthController(cleanup)
	webhookController := controllers.NewWebhookController(webhookSecret, replies)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Messaging provider webhooks
	router.POST("/webhooks/lead-reply", webhookController.HandleLeadReply)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/automation/run", automationController.HandleRunTrigger)
		v1.GET("/automation/health", healthController.HandleAutomationHealth)
	}

	return router
}
