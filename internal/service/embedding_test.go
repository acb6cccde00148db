package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mira/outfitadvisor/internal/domain"
)

func TestEmbedSendsTaskType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":embedContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("unexpected api key %q", key)
		}

		var req geminiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.TaskType != TaskRetrievalQuery {
			t.Errorf("taskType = %q, want %q", req.TaskType, TaskRetrievalQuery)
		}
		if req.Model != "models/text-embedding-004" {
			t.Errorf("model = %q, want models/text-embedding-004", req.Model)
		}
		if len(req.Content.Parts) != 1 || req.Content.Parts[0].Text != "navy slim-fit blazer" {
			t.Errorf("unexpected content parts: %+v", req.Content.Parts)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiEmbedResponse{
			Embedding: geminiEmbedding{Values: []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{
		Model:   "text-embedding-004",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	vector, err := svc.Embed(context.Background(), "navy slim-fit blazer", TaskRetrievalQuery)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vector) != 3 {
		t.Errorf("expected 3 values, got %d", len(vector))
	}
}

func TestEmbedEmptyEmbeddingFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiEmbedResponse{})
	}))
	defer server.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{
		Model:   "text-embedding-004",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	_, err := svc.Embed(context.Background(), "wool coat", TaskRetrievalQuery)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestEmbedAPIErrorSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(geminiEmbedResponse{
			Error: &geminiError{Message: "API key not valid", Status: "INVALID_ARGUMENT"},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{
		Model:   "text-embedding-004",
		APIKey:  "bad-key",
		BaseURL: server.URL,
	})

	_, err := svc.Embed(context.Background(), "wool coat", TaskRetrievalQuery)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry the API message, got %v", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchEmbedContents") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var batch geminiBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		for _, req := range batch.Requests {
			if req.TaskType != TaskRetrievalDocument {
				t.Errorf("taskType = %q, want %q", req.TaskType, TaskRetrievalDocument)
			}
		}

		resp := geminiBatchResponse{Embeddings: make([]geminiEmbedding, len(batch.Requests))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = geminiEmbedding{Values: []float32{float32(i), float32(i) + 0.5}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{
		Model:   "text-embedding-004",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"shirt", "jeans", "loafers"}, TaskRetrievalDocument)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	if vectors[1][0] != 1 {
		t.Errorf("vectors out of order: %v", vectors)
	}
}

func TestEmbedBatchCountMismatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiBatchResponse{
			Embeddings: []geminiEmbedding{{Values: []float32{0.1}}},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(&EmbeddingConfig{
		Model:   "text-embedding-004",
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"shirt", "jeans"}, TaskRetrievalDocument)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := NewEmbeddingService(&EmbeddingConfig{Model: "text-embedding-004", APIKey: "test-key"})
	vectors, err := svc.EmbedBatch(context.Background(), nil, TaskRetrievalDocument)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(vectors))
	}
}
