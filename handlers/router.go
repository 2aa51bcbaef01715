package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/config"
	"screenlens/middleware"
	"screenlens/services"
)

// Router wires every API route onto a gin engine.
func Router(cfg *config.Config, db *gorm.DB, provider services.ModelProvider) *gin.Engine {
	describeService := services.NewDescribeService(db, provider, cfg.DefaultModel)

	accountHandler := NewAccountHandler(provider)
	settingsHandler := NewSettingsHandler(db, provider, cfg.DefaultModel)
	conversationsHandler := NewConversationsHandler(db)
	chatHandler := NewChatHandler(db, provider, cfg.DefaultModel)
	projectsHandler := NewProjectsHandler(db)
	screensHandler := NewScreensHandler(db, describeService)

	r := gin.Default()
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.BodyLimit(cfg.BodyLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/account", accountHandler.Get)

		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Update)
		api.GET("/settings/models", settingsHandler.Models)

		api.GET("/conversations", conversationsHandler.List)
		api.POST("/conversations", conversationsHandler.Create)
		api.GET("/conversations/:id", conversationsHandler.Get)
		api.DELETE("/conversations/:id", conversationsHandler.Delete)

		api.POST("/chat", chatHandler.Handle)

		api.GET("/projects", projectsHandler.List)
		api.POST("/projects", projectsHandler.Create)
		api.PATCH("/projects/:id", projectsHandler.Update)
		api.DELETE("/projects/:id", projectsHandler.Delete)

		api.GET("/screens", screensHandler.List)
		api.POST("/screens", screensHandler.Create)
		api.PATCH("/screens/:id", screensHandler.Update)
		api.DELETE("/screens/:id", screensHandler.Delete)
		api.POST("/screens/describe", screensHandler.Describe)
	}

	return r
}
