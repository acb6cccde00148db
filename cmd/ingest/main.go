package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mira/outfitadvisor/internal/config"
	"github.com/mira/outfitadvisor/internal/logger"
	"github.com/mira/outfitadvisor/internal/repository"
	"github.com/mira/outfitadvisor/internal/service"
	"github.com/mira/outfitadvisor/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "outfitadvisor-ingest",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	catalogPath := flag.String("catalog", "", "Path to the catalog JSON file (overrides config)")
	imageDir := flag.String("images", "", "Directory holding product images (overrides config)")
	limit := flag.Int("limit", 0, "Maximum number of products to ingest, 0 means all")
	force := flag.Bool("force", false, "Re-process products that are already stored")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Configuration is incomplete")
	}

	catalog := cfg.Ingest.CatalogPath
	if *catalogPath != "" {
		catalog = *catalogPath
	}
	images := cfg.Ingest.ImageDir
	if *imageDir != "" {
		images = *imageDir
	}
	if catalog == "" || images == "" {
		appLogger.Fatal("A catalog file and an image directory are required")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure index collection")
	}

	objectStorage, err := storage.New(&storage.S3Config{
		Type:      storage.BackendType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if s3, ok := objectStorage.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
	})

	ingestService := service.NewIngestService(
		productRepo,
		qdrantRepo,
		objectStorage,
		embeddingService,
		appLogger,
		&service.IngestServiceConfig{
			Workers:   cfg.Ingest.Workers,
			BatchSize: cfg.Ingest.BatchSize,
		},
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	stats, err := ingestService.IngestCatalog(ctx, catalog, images, &service.IngestOptions{
		Force: *force,
		Limit: *limit,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to ingest catalog")
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": stats.ProcessedItems,
		"skipped":   stats.SkippedItems,
		"failed":    stats.FailedItems,
	}).Info("Ingestion completed")
}
