package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mira/outfitadvisor/internal/api/handler"
	"github.com/mira/outfitadvisor/internal/api/middleware"
	"github.com/mira/outfitadvisor/internal/logger"
	"github.com/mira/outfitadvisor/internal/repository"
	"github.com/mira/outfitadvisor/internal/service"
)

// RouterConfig holds the router's runtime settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	recommendService *service.RecommendService,
	productRepo *repository.ProductRepository,
	log *logger.Logger,
	cfg *RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	recommendHandler := handler.NewRecommendHandler(recommendService)
	productHandler := handler.NewProductHandler(productRepo)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/recommendations", recommendHandler.Recommend)

		v1.GET("/products", productHandler.ListProducts)
		v1.GET("/products/:id", productHandler.GetProduct)
	}

	return r
}
