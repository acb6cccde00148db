package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mira/outfitadvisor/internal/domain"
	"github.com/mira/outfitadvisor/internal/logger"
)

// OptionGenerator produces the three clothing options for an image+question.
type OptionGenerator interface {
	GetOptions(ctx context.Context, imageData []byte, question string) (*domain.RecommendationOptions, error)
}

// Embedder turns a text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text, taskType string) ([]float32, error)
}

// VectorSearcher retrieves ranked catalog matches for a query vector.
type VectorSearcher interface {
	WaitReady(ctx context.Context, deadline time.Duration) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.CatalogMatch, error)
}

// ImageStore persists an uploaded image for the request and releases it.
type ImageStore interface {
	Save(data []byte, filename string) (string, error)
	Delete(path string)
}

// RecommendConfig holds pipeline tuning knobs.
type RecommendConfig struct {
	TopK             int           // matches per option
	CallTimeout      time.Duration // per outbound call
	ReadinessTimeout time.Duration // index readiness wait bound
}

// RecommendService runs the recommendation pipeline: save image, obtain
// three options from the completion model, embed and search each option,
// assemble the result. The three option branches run concurrently; the
// final result preserves Option_1..Option_3 order.
type RecommendService struct {
	completions OptionGenerator
	embedding   Embedder
	searcher    VectorSearcher
	images      ImageStore
	logger      *logger.Logger

	topK             int
	callTimeout      time.Duration
	readinessTimeout time.Duration
}

// NewRecommendService creates a new recommendation pipeline.
func NewRecommendService(
	completions OptionGenerator,
	embedding Embedder,
	searcher VectorSearcher,
	images ImageStore,
	log *logger.Logger,
	cfg *RecommendConfig,
) *RecommendService {
	topK := 3
	callTimeout := 60 * time.Second
	readinessTimeout := 30 * time.Second
	if cfg != nil {
		if cfg.TopK > 0 {
			topK = cfg.TopK
		}
		if cfg.CallTimeout > 0 {
			callTimeout = cfg.CallTimeout
		}
		if cfg.ReadinessTimeout > 0 {
			readinessTimeout = cfg.ReadinessTimeout
		}
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RecommendService{
		completions:      completions,
		embedding:        embedding,
		searcher:         searcher,
		images:           images,
		logger:           log,
		topK:             topK,
		callTimeout:      callTimeout,
		readinessTimeout: readinessTimeout,
	}
}

// Recommend executes the pipeline for one request. The saved image is
// deleted on every exit path once it has been written.
func (s *RecommendService) Recommend(ctx context.Context, req *domain.RecommendationRequest) (*domain.RecommendationResult, error) {
	if req == nil || len(req.Image.Data) == 0 {
		return nil, fmt.Errorf("image is required")
	}
	if req.Question == "" || utf8.RuneCountInString(req.Question) > domain.MaxQuestionLength {
		return nil, fmt.Errorf("question must be non-empty and at most %d characters", domain.MaxQuestionLength)
	}

	imagePath, err := s.images.Save(req.Image.Data, req.Image.Filename)
	if err != nil {
		return nil, err
	}
	defer s.images.Delete(imagePath)

	options, err := s.getOptions(ctx, req)
	if err != nil {
		return nil, err
	}
	if !options.Complete() {
		return nil, fmt.Errorf("%w: reply lacks one or more of Option_1/Option_2/Option_3", domain.ErrMissingOptions)
	}

	logger.CtxInfo(ctx, "Options obtained: %q / %q / %q", options.Option1, options.Option2, options.Option3)

	if err := s.searcher.WaitReady(ctx, s.readinessTimeout); err != nil {
		return nil, err
	}

	results, err := s.retrieveAll(ctx, options)
	if err != nil {
		return nil, err
	}

	return &domain.RecommendationResult{Options: results}, nil
}

func (s *RecommendService) getOptions(ctx context.Context, req *domain.RecommendationRequest) (*domain.RecommendationOptions, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.completions.GetOptions(callCtx, req.Image.Data, req.Question)
}

// retrieveAll fans out over the three options concurrently and fans in
// preserving label order. Any branch failure fails the whole request; the
// shared context cancels the surviving branches.
func (s *RecommendService) retrieveAll(ctx context.Context, options *domain.RecommendationOptions) ([]domain.OptionResult, error) {
	texts := options.Texts()

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]domain.OptionResult, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(slot int, optionText string) {
			defer wg.Done()

			matches, err := s.retrieveOption(branchCtx, domain.OptionLabels[slot], optionText)
			if err != nil {
				errs[slot] = fmt.Errorf("%s: %w", domain.OptionLabels[slot], err)
				cancel()
				return
			}
			results[slot] = domain.OptionResult{
				Label:       domain.OptionLabels[slot],
				Description: optionText,
				Matches:     matches,
			}
		}(i, text)
	}
	wg.Wait()

	// A failed branch cancels its siblings, so lower-indexed slots may hold
	// only the cancellation. Report the causal error, not the artifact.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// retrieveOption embeds one option text and queries the index for it.
func (s *RecommendService) retrieveOption(ctx context.Context, label, text string) ([]domain.CatalogMatch, error) {
	embedCtx, cancelEmbed := context.WithTimeout(ctx, s.callTimeout)
	defer cancelEmbed()

	vector, err := s.embedding.Embed(embedCtx, text, TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}

	searchCtx, cancelSearch := context.WithTimeout(ctx, s.callTimeout)
	defer cancelSearch()

	matches, err := s.searcher.Search(searchCtx, vector, s.topK)
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldOption: label,
		logger.FieldCount:  len(matches),
	}).Debug(ctx, "Retrieved matches for %q", text)
	return matches, nil
}
