package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mira/outfitadvisor/internal/domain"
)

type stubOptionGenerator struct {
	options *domain.RecommendationOptions
	err     error
	calls   int
}

func (s *stubOptionGenerator) GetOptions(_ context.Context, _ []byte, _ string) (*domain.RecommendationOptions, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.options, nil
}

type stubEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubSearcher struct {
	mu          sync.Mutex
	searchCalls int
	matchesFor  func(topK int) []domain.CatalogMatch
	searchErr   error
	readyErr    error
}

func (s *stubSearcher) WaitReady(_ context.Context, _ time.Duration) error {
	return s.readyErr
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, topK int) ([]domain.CatalogMatch, error) {
	s.mu.Lock()
	s.searchCalls++
	s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.matchesFor != nil {
		return s.matchesFor(topK), nil
	}
	return nil, nil
}

func (s *stubSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

type stubImageStore struct {
	savePath string
	saveErr  error
	saved    int
	deleted  []string
}

func (s *stubImageStore) Save(_ []byte, _ string) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved++
	return s.savePath, nil
}

func (s *stubImageStore) Delete(path string) {
	s.deleted = append(s.deleted, path)
}

func completeOptions() *domain.RecommendationOptions {
	return &domain.RecommendationOptions{
		Option1: "navy slim-fit blazer",
		Option2: "white linen shirt",
		Option3: "brown leather loafers",
	}
}

func validRequest() *domain.RecommendationRequest {
	return &domain.RecommendationRequest{
		Image:    domain.UploadedImage{Data: []byte{0xFF, 0xD8, 0xFF}, Filename: "outfit.jpg"},
		Question: "What should I wear to a summer wedding?",
	}
}

func newTestService(gen *stubOptionGenerator, emb Embedder, search *stubSearcher, images *stubImageStore) *RecommendService {
	return NewRecommendService(gen, emb, search, images, nil, &RecommendConfig{
		TopK:             3,
		CallTimeout:      time.Second,
		ReadinessTimeout: time.Second,
	})
}

func TestRecommendSuccess(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	emb := &stubEmbedder{}
	search := &stubSearcher{
		matchesFor: func(topK int) []domain.CatalogMatch {
			matches := make([]domain.CatalogMatch, topK)
			for i := range matches {
				matches[i] = domain.CatalogMatch{
					ID:          "1597",
					ImageURL:    "https://cdn.example.com/1597.jpg",
					ProductName: "Turtle Check Men Navy Blue Shirt",
				}
			}
			return matches
		},
	}
	images := &stubImageStore{savePath: "/tmp/uploads/req-1/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	result, err := svc.Recommend(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	if len(result.Options) != 3 {
		t.Fatalf("expected 3 option results, got %d", len(result.Options))
	}
	wantLabels := []string{domain.OptionLabel1, domain.OptionLabel2, domain.OptionLabel3}
	wantTexts := []string{"navy slim-fit blazer", "white linen shirt", "brown leather loafers"}
	for i, opt := range result.Options {
		if opt.Label != wantLabels[i] {
			t.Errorf("option %d: label = %q, want %q", i, opt.Label, wantLabels[i])
		}
		if opt.Description != wantTexts[i] {
			t.Errorf("option %d: description = %q, want %q", i, opt.Description, wantTexts[i])
		}
		if len(opt.Matches) != 3 {
			t.Errorf("option %d: expected 3 matches, got %d", i, len(opt.Matches))
		}
	}

	if emb.callCount() != 3 {
		t.Errorf("expected 3 embed calls, got %d", emb.callCount())
	}
	if search.callCount() != 3 {
		t.Errorf("expected 3 search calls, got %d", search.callCount())
	}
	if len(images.deleted) != 1 || images.deleted[0] != images.savePath {
		t.Errorf("saved image was not cleaned up: deleted=%v", images.deleted)
	}
}

func TestRecommendMissingOptionKeys(t *testing.T) {
	gen := &stubOptionGenerator{options: &domain.RecommendationOptions{
		Option1: "navy slim-fit blazer",
		Option2: "white linen shirt",
		// Option3 absent from the model reply
	}}
	emb := &stubEmbedder{}
	search := &stubSearcher{}
	images := &stubImageStore{savePath: "/tmp/uploads/req-2/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	_, err := svc.Recommend(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrMissingOptions) {
		t.Fatalf("expected ErrMissingOptions, got %v", err)
	}

	if emb.callCount() != 0 {
		t.Errorf("embedding must not be called after incomplete options, got %d calls", emb.callCount())
	}
	if search.callCount() != 0 {
		t.Errorf("search must not be called after incomplete options, got %d calls", search.callCount())
	}
	if len(images.deleted) != 1 {
		t.Errorf("saved image was not cleaned up on failure: deleted=%v", images.deleted)
	}
}

func TestRecommendSearchFailureCleansUp(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	emb := &stubEmbedder{}
	search := &stubSearcher{searchErr: domain.ErrUpstream}
	images := &stubImageStore{savePath: "/tmp/uploads/req-3/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	_, err := svc.Recommend(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(images.deleted) != 1 {
		t.Errorf("saved image was not cleaned up on failure: deleted=%v", images.deleted)
	}
}

// failingEmbedder fails for one option text and blocks the others until the
// shared branch context is canceled.
type failingEmbedder struct {
	failText string
	failErr  error
}

func (s *failingEmbedder) Embed(ctx context.Context, text, _ string) ([]float32, error) {
	if text == s.failText {
		return nil, s.failErr
	}
	<-ctx.Done()
	return nil, fmt.Errorf("embedding aborted: %w", ctx.Err())
}

func TestRecommendReportsCausalBranchError(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	emb := &failingEmbedder{
		failText: "brown leather loafers", // Option_3
		failErr:  fmt.Errorf("%w: embedding API error", domain.ErrUpstream),
	}
	search := &stubSearcher{}
	images := &stubImageStore{savePath: "/tmp/uploads/req-7/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	_, err := svc.Recommend(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected the causal ErrUpstream, got %v", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("sibling cancellation must not mask the causal error, got %v", err)
	}
	if !strings.Contains(err.Error(), domain.OptionLabel3) {
		t.Errorf("error should name the failing option, got %v", err)
	}
	if len(images.deleted) != 1 {
		t.Errorf("saved image was not cleaned up on failure: deleted=%v", images.deleted)
	}
}

func TestRecommendQuestionLimitCountsRunes(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	emb := &stubEmbedder{}
	search := &stubSearcher{}
	images := &stubImageStore{savePath: "/tmp/uploads/req-8/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)

	// 400 two-byte runes: within the 500-character bound despite 800 bytes.
	req := validRequest()
	req.Question = strings.Repeat("é", 400)
	if _, err := svc.Recommend(context.Background(), req); err != nil {
		t.Fatalf("multibyte question within the limit was rejected: %v", err)
	}

	req = validRequest()
	req.Question = strings.Repeat("é", domain.MaxQuestionLength+1)
	if _, err := svc.Recommend(context.Background(), req); err == nil {
		t.Error("expected validation error for a question over the character limit")
	}
}

func TestRecommendCompletionFailureSkipsRetrieval(t *testing.T) {
	gen := &stubOptionGenerator{err: domain.ErrUpstream}
	emb := &stubEmbedder{}
	search := &stubSearcher{}
	images := &stubImageStore{savePath: "/tmp/uploads/req-4/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	_, err := svc.Recommend(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if emb.callCount() != 0 || search.callCount() != 0 {
		t.Errorf("retrieval ran after completion failure: embed=%d search=%d", emb.callCount(), search.callCount())
	}
	if len(images.deleted) != 1 {
		t.Errorf("saved image was not cleaned up on failure: deleted=%v", images.deleted)
	}
}

func TestRecommendIndexNotReady(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	emb := &stubEmbedder{}
	search := &stubSearcher{readyErr: domain.ErrIndexNotReady}
	images := &stubImageStore{savePath: "/tmp/uploads/req-5/outfit.jpg"}

	svc := newTestService(gen, emb, search, images)
	_, err := svc.Recommend(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
	if emb.callCount() != 0 {
		t.Errorf("embedding must not run before the index is ready, got %d calls", emb.callCount())
	}
	if len(images.deleted) != 1 {
		t.Errorf("saved image was not cleaned up on failure: deleted=%v", images.deleted)
	}
}

func TestRecommendValidation(t *testing.T) {
	gen := &stubOptionGenerator{options: completeOptions()}
	images := &stubImageStore{savePath: "/tmp/uploads/req-6/outfit.jpg"}
	svc := newTestService(gen, &stubEmbedder{}, &stubSearcher{}, images)

	testCases := []struct {
		name string
		req  *domain.RecommendationRequest
	}{
		{name: "nil request", req: nil},
		{
			name: "empty image",
			req: &domain.RecommendationRequest{
				Image:    domain.UploadedImage{Filename: "outfit.jpg"},
				Question: "What should I wear?",
			},
		},
		{
			name: "empty question",
			req: &domain.RecommendationRequest{
				Image: domain.UploadedImage{Data: []byte{0xFF}, Filename: "outfit.jpg"},
			},
		},
		{
			name: "oversized question",
			req: &domain.RecommendationRequest{
				Image:    domain.UploadedImage{Data: []byte{0xFF}, Filename: "outfit.jpg"},
				Question: strings.Repeat("x", domain.MaxQuestionLength+1),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Recommend(context.Background(), tc.req); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	if images.saved != 0 {
		t.Errorf("no image should be saved for invalid requests, saved=%d", images.saved)
	}
	if gen.calls != 0 {
		t.Errorf("completion must not be called for invalid requests, calls=%d", gen.calls)
	}
}
