package relay

import (
	"github.com/gin-gonic/gin"
	"github.com/picvault/picvault/internal/api/middleware"
)

// SetupRouter configures the relay's Gin router. The relay serves a single
// resource at the root path, as the capture agent expects.
func SetupRouter(service *Service, apiKey string, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger("relay"))
	r.Use(middleware.CORS(middleware.CORSConfig{AllowAllOrigins: true}))
	r.Use(middleware.APIKeyAuth(apiKey))

	h := NewHandler(service)

	r.POST("/", h.Upload)
	r.DELETE("/", h.Delete)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
