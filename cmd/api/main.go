package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mira/outfitadvisor/internal/api"
	"github.com/mira/outfitadvisor/internal/api/middleware"
	"github.com/mira/outfitadvisor/internal/config"
	"github.com/mira/outfitadvisor/internal/imagestore"
	"github.com/mira/outfitadvisor/internal/logger"
	"github.com/mira/outfitadvisor/internal/repository"
	"github.com/mira/outfitadvisor/internal/service"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH overrides the default config search path in deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Configuration is incomplete")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	productRepo := repository.NewProductRepository(db)
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Qdrant.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize vector index client")
	}
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure index collection")
	}

	images := imagestore.New(cfg.Pipeline.UploadDir, appLogger)

	completionService := service.NewCompletionService(&service.CompletionConfig{
		Model:   cfg.Completion.Model,
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
	})
	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
	})

	recommendService := service.NewRecommendService(
		completionService,
		embeddingService,
		qdrantRepo,
		images,
		appLogger,
		&service.RecommendConfig{
			TopK:             cfg.Pipeline.TopK,
			CallTimeout:      cfg.Pipeline.CallTimeout,
			ReadinessTimeout: cfg.Pipeline.ReadinessTimeout,
		},
	)

	router := api.SetupRouter(recommendService, productRepo, appLogger, &api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
