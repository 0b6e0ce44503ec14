package api

import (
	"github.com/gin-gonic/gin"
	"github.com/picvault/picvault/internal/api/handler"
	"github.com/picvault/picvault/internal/api/middleware"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/repository"
	"github.com/picvault/picvault/internal/service"
)

// SetupRouter configures the Gin router with all metadata and gallery
// routes.
func SetupRouter(
	imageRepo *repository.ImageRepository,
	tagRepo *repository.TagRepository,
	cfg *config.Config,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger("api"))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	imageHandler := handler.NewImageHandler(imageRepo)
	tagHandler := handler.NewTagHandler(tagRepo, service.NewTagService(tagRepo))

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Capture pipeline
		v1.POST("/images/metadata", imageHandler.SaveMetadata)
		v1.GET("/images/collected", imageHandler.ListCollected)
		v1.POST("/images/delete", imageHandler.DeleteByHash)

		// Gallery
		v1.GET("/images", imageHandler.Query)
		v1.PATCH("/images/:id", imageHandler.Update)
		v1.PUT("/images/:id/tags", tagHandler.SetImageTags)

		// Tags
		v1.GET("/tags", tagHandler.List)
		v1.POST("/tags", tagHandler.Create)

		// Websites
		v1.GET("/websites", imageHandler.Websites)
	}

	return r
}
