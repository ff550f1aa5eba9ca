package router

import (
	"github.com/cuongbtq/video-gen-service/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	videoHandler := handler.NewVideoHandler(deps)

	r.GET("/health", videoHandler.Health)

	api := r.Group("/api")
	{
		api.GET("/health", videoHandler.Health)

		// POST /api/generate - Queue a video generation job
		api.POST("/generate", videoHandler.Generate)

		// GET /api/status/:video_id - Current job snapshot
		api.GET("/status/:video_id", videoHandler.GetStatus)

		// GET /api/videos - Recent jobs, newest first
		api.GET("/videos", videoHandler.ListVideos)

		// POST /api/cleanup - Apply the retention cap now
		api.POST("/cleanup", videoHandler.Cleanup)
	}

	return r
}
