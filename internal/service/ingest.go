package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mira/outfitadvisor/internal/domain"
	"github.com/mira/outfitadvisor/internal/logger"
	"github.com/mira/outfitadvisor/internal/repository"
	"github.com/mira/outfitadvisor/internal/storage"
)

// CatalogEntry is one product row of the catalog file.
type CatalogEntry struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"productDisplayName"`
	Category    string   `json:"masterCategory"`
	SubCategory string   `json:"subCategory"`
	Gender      string   `json:"gender"`
	BaseColour  string   `json:"baseColour"`
	Usage       string   `json:"usage"`
	Tags        []string `json:"tags"`
}

// IngestService loads catalog products into the system: it embeds each
// product's description, uploads its image to object storage, and writes the
// vector, payload, and database record.
type IngestService struct {
	productRepo *repository.ProductRepository
	qdrantRepo  *repository.QdrantRepository
	storage     storage.ObjectStorage
	embedding   *EmbeddingService
	logger      *logger.Logger
	workers     int
	batchSize   int
}

// IngestServiceConfig holds tuning for the ingest pipeline.
type IngestServiceConfig struct {
	Workers   int
	BatchSize int
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	productRepo *repository.ProductRepository,
	qdrantRepo *repository.QdrantRepository,
	objectStorage storage.ObjectStorage,
	embedding *EmbeddingService,
	log *logger.Logger,
	cfg *IngestServiceConfig,
) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		productRepo: productRepo,
		qdrantRepo:  qdrantRepo,
		storage:     objectStorage,
		embedding:   embedding,
		logger:      log,
		workers:     workers,
		batchSize:   batchSize,
	}
}

// log returns a logger from context if available, otherwise the service logger.
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestStats holds statistics for an ingestion run.
type IngestStats struct {
	TotalItems     int64
	ProcessedItems int64
	SkippedItems   int64
	FailedItems    int64
	StartTime      time.Time
	EndTime        time.Time
}

// IngestOptions holds options for ingestion.
type IngestOptions struct {
	Force bool // re-process products that are already stored
	Limit int  // stop after this many entries; 0 means all
}

// IngestCatalog reads the catalog file and processes its entries through a
// worker pool. Each batch of products is embedded in a single API call;
// uploads and upserts then run per product.
func (s *IngestService) IngestCatalog(ctx context.Context, catalogPath, imageDir string, opts *IngestOptions) (*IngestStats, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	entries, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	stats := &IngestStats{StartTime: time.Now()}
	stats.TotalItems = int64(len(entries))

	jobID := uuid.New().String()
	ctx = logger.WithField(ctx, logger.FieldJobID, jobID)

	s.log(ctx).WithFields(logger.Fields{
		"catalog": catalogPath,
		"entries": len(entries),
		"workers": s.workers,
		"force":   opts.Force,
	}).Info("Starting catalog ingestion")

	batches := make(chan []CatalogEntry, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				s.processBatch(ctx, batch, imageDir, opts, stats)
			}
		}()
	}

	for start := 0; start < len(entries); start += s.batchSize {
		end := start + s.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		select {
		case batches <- entries[start:end]:
		case <-ctx.Done():
			start = len(entries)
		}
	}
	close(batches)
	wg.Wait()

	stats.EndTime = time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"processed": atomic.LoadInt64(&stats.ProcessedItems),
		"skipped":   atomic.LoadInt64(&stats.SkippedItems),
		"failed":    atomic.LoadInt64(&stats.FailedItems),
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Catalog ingestion completed")

	return stats, nil
}

// processBatch embeds a batch of products in one call, then uploads and
// upserts each product individually.
func (s *IngestService) processBatch(ctx context.Context, batch []CatalogEntry, imageDir string, opts *IngestOptions, stats *IngestStats) {
	pending := batch
	if !opts.Force {
		pending = make([]CatalogEntry, 0, len(batch))
		for _, entry := range batch {
			exists, err := s.productRepo.ExistsByID(ctx, entry.ID)
			if err != nil {
				atomic.AddInt64(&stats.FailedItems, 1)
				s.log(ctx).WithField("product_id", entry.ID).WithError(err).Error("Failed to check product existence")
				continue
			}
			if exists {
				atomic.AddInt64(&stats.SkippedItems, 1)
				continue
			}
			pending = append(pending, entry)
		}
	}
	if len(pending) == 0 {
		return
	}

	texts := make([]string, len(pending))
	for i, entry := range pending {
		texts[i] = EmbeddingText(&entry)
	}

	vectors, err := s.embedding.EmbedBatch(ctx, texts, TaskRetrievalDocument)
	if err != nil {
		atomic.AddInt64(&stats.FailedItems, int64(len(pending)))
		s.log(ctx).WithError(err).Error("Failed to embed product batch")
		return
	}

	for i, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.processEntry(ctx, &entry, vectors[i], imageDir); err != nil {
			atomic.AddInt64(&stats.FailedItems, 1)
			s.log(ctx).WithField("product_id", entry.ID).WithError(err).Error("Failed to process product")
			continue
		}
		atomic.AddInt64(&stats.ProcessedItems, 1)
	}
}

func (s *IngestService) processEntry(ctx context.Context, entry *CatalogEntry, vector []float32, imageDir string) error {
	imagePath := filepath.Join(imageDir, entry.ID+".jpg")
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read product image: %w", err)
	}

	storageKey := fmt.Sprintf("products/%s.jpg", entry.ID)
	exists, err := s.storage.Exists(ctx, storageKey)
	if err != nil {
		return fmt.Errorf("failed to check storage existence: %w", err)
	}

	uploaded := false
	if !exists {
		if err := s.storage.Upload(ctx, storageKey, bytes.NewReader(imageData), int64(len(imageData)), "image/jpeg"); err != nil {
			return fmt.Errorf("failed to upload product image: %w", err)
		}
		uploaded = true
	}

	imageURL := s.storage.GetURL(storageKey)
	pointID := ProductPointID(entry.ID)

	payload := &repository.ProductPayload{
		ProductID:   entry.ID,
		ImageURL:    imageURL,
		DisplayName: entry.DisplayName,
		Category:    entry.Category,
	}
	if err := s.qdrantRepo.Upsert(ctx, pointID, vector, payload); err != nil {
		if uploaded {
			if delErr := s.storage.Delete(ctx, storageKey); delErr != nil {
				s.log(ctx).WithField("storage_key", storageKey).WithError(delErr).Error("Failed to roll back image upload")
			}
		}
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	now := time.Now()
	product := &domain.Product{
		ID:             entry.ID,
		DisplayName:    entry.DisplayName,
		ImageURL:       imageURL,
		Category:       entry.Category,
		SubCategory:    entry.SubCategory,
		Gender:         entry.Gender,
		BaseColour:     entry.BaseColour,
		Tags:           entry.Tags,
		PointID:        pointID,
		EmbeddingModel: s.embedding.GetModel(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.productRepo.Upsert(ctx, product); err != nil {
		if delErr := s.qdrantRepo.Delete(ctx, pointID); delErr != nil {
			s.log(ctx).WithField("product_id", entry.ID).WithError(delErr).Error("Failed to roll back vector upsert")
		}
		if uploaded {
			if delErr := s.storage.Delete(ctx, storageKey); delErr != nil {
				s.log(ctx).WithField("storage_key", storageKey).WithError(delErr).Error("Failed to roll back image upload")
			}
		}
		return fmt.Errorf("failed to save product record: %w", err)
	}

	return nil
}

// loadCatalog reads a JSON array of catalog entries from disk.
func loadCatalog(path string) ([]CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid catalog file: %w", err)
	}

	for i := range entries {
		if entries[i].ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
	}
	return entries, nil
}

// EmbeddingText builds the text embedded for a product. Attribute order is
// fixed so re-ingesting produces identical vectors for unchanged products.
func EmbeddingText(entry *CatalogEntry) string {
	parts := []string{entry.DisplayName}
	for _, attr := range []string{entry.Gender, entry.BaseColour, entry.Category, entry.SubCategory, entry.Usage} {
		if attr != "" {
			parts = append(parts, attr)
		}
	}
	if len(entry.Tags) > 0 {
		parts = append(parts, strings.Join(entry.Tags, " "))
	}
	return strings.Join(parts, ", ")
}

// ProductPointID derives a stable vector point ID from a product ID, so
// re-ingesting a product overwrites its point instead of duplicating it.
func ProductPointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("product/"+productID)).String()
}
