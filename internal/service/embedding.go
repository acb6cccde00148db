package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mira/outfitadvisor/internal/domain"
)

// Embedding task type hints accepted by the Gemini API.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingService turns short texts into fixed-dimension vectors using the
// Gemini embedding API. Calls are synchronous with no retry and no fallback
// vector; repeated calls for the same text are not cached.
type EmbeddingService struct {
	client  *resty.Client
	model   string
	apiKey  string
	baseURL string
}

// EmbeddingConfig holds configuration for the embedding service.
type EmbeddingConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(30 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	return &EmbeddingService{
		client:  client,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
	}
}

// GetModel returns the model name being used.
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Gemini embedContent API request/response structures
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiEmbedding struct {
	Values []float32 `json:"values"`
}

type geminiError struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiEmbedResponse struct {
	Embedding geminiEmbedding `json:"embedding"`
	Error     *geminiError    `json:"error,omitempty"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []geminiEmbedding `json:"embeddings"`
	Error      *geminiError      `json:"error,omitempty"`
}

// Embed generates an embedding for a single text with the given task type
// hint. Transport and API failures fail with domain.ErrUpstream.
func (s *EmbeddingService) Embed(ctx context.Context, text, taskType string) ([]float32, error) {
	req := geminiEmbedRequest{
		Model:    "models/" + s.model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: taskType,
	}

	var resp geminiEmbedResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetBody(req).
		SetResult(&resp).
		Post(fmt.Sprintf("%s/models/%s:embedContent", s.baseURL, s.model))

	if err != nil {
		return nil, fmt.Errorf("%w: embedding API call failed: %v", domain.ErrUpstream, err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: embedding API error: %s", domain.ErrUpstream, resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: embedding API error: status %d", domain.ErrUpstream, httpResp.StatusCode())
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrUpstream)
	}

	return resp.Embedding.Values, nil
}

// EmbedBatch generates embeddings for multiple texts in one call. Used by
// the catalog ingest path with TaskRetrievalDocument.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batch := geminiBatchRequest{Requests: make([]geminiEmbedRequest, len(texts))}
	for i, text := range texts {
		batch.Requests[i] = geminiEmbedRequest{
			Model:    "models/" + s.model,
			Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType: taskType,
		}
	}

	var resp geminiBatchResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetBody(batch).
		SetResult(&resp).
		Post(fmt.Sprintf("%s/models/%s:batchEmbedContents", s.baseURL, s.model))

	if err != nil {
		return nil, fmt.Errorf("%w: embedding API call failed: %v", domain.ErrUpstream, err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: embedding API error: %s", domain.ErrUpstream, resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: embedding API error: status %d", domain.ErrUpstream, httpResp.StatusCode())
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: unexpected number of embeddings: got %d, expected %d", domain.ErrUpstream, len(resp.Embeddings), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		embeddings[i] = e.Values
	}
	return embeddings, nil
}
