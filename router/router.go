package router

import (
	"log"
	"net/http"

	"benemax/config"
	"benemax/controllers"
	"benemax/middleware"

	"github.com/gin-gonic/gin"
)

// Initialize wires all routes and middlewares: public health check + the
// authenticated instance/message/webhook surface.
func Initialize(r *gin.Engine, cfg config.Configuration, provider controllers.AuthProvider) {
	_ = cfg

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")

	// Authenticated routes (tenant-scoped principal required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired(provider))

	// Instances
	auth.POST("/instances", Logger(), controllers.CreateInstance)
	auth.GET("/instances", Logger(), controllers.ListInstances)
	auth.GET("/instances/:id", Logger(), controllers.GetInstance)
	auth.GET("/instances/:id/status", controllers.GetInstanceStatus) // sem Logger: polling
	auth.DELETE("/instances/:id", Logger(), controllers.DeleteInstance)

	// Pairing lifecycle
	auth.POST("/instances/:id/pairing", Logger(), controllers.RequestPairing)
	auth.POST("/instances/:id/handshake", Logger(), controllers.PeerHandshake)
	auth.POST("/instances/:id/drop", Logger(), controllers.PeerDrop)

	// Messages
	auth.POST("/instances/:id/messages", Logger(), controllers.SendMessage)
	auth.GET("/messages/:id", Logger(), controllers.GetMessage)

	// Webhook subscriptions
	auth.POST("/webhooks", Logger(), controllers.CreateWebhook)
	auth.GET("/webhooks", Logger(), controllers.ListWebhooks)
	auth.GET("/webhooks/:id", Logger(), controllers.GetWebhook)
	auth.PUT("/webhooks/:id", Logger(), controllers.UpdateWebhook)
	auth.DELETE("/webhooks/:id", Logger(), controllers.DeleteWebhook)

	log.Printf("Routes initialized")
}
