package embeddings_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fabfab/heraklion-chatbot/config"
	"github.com/fabfab/heraklion-chatbot/embeddings"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingDatum struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

func newEmbeddingServer(t *testing.T, handler func(req embeddingRequest) []embeddingDatum) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   handler(req),
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbedderMissingKey(t *testing.T) {
	cfg := config.Default()

	if _, err := embeddings.NewEmbedder(cfg); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("expected embedder, got error: %v", err)
	}
	if embedder == nil {
		t.Fatal("expected non-nil embedder")
	}
}

func TestOpenAIEmbedderRestoresInputOrder(t *testing.T) {
	var got embeddingRequest
	srv := newEmbeddingServer(t, func(req embeddingRequest) []embeddingDatum {
		got = req
		return []embeddingDatum{
			{Object: "embedding", Embedding: []float32{0, 1}, Index: 1},
			{Object: "embedding", Embedding: []float32{1, 0}, Index: 0},
		}
	})

	embedder := embeddings.NewOpenAIEmbedder(embeddings.Options{
		Model:         "text-embedding-ada-002",
		Dimension:     2,
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: srv.URL + "/v1",
	})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Model != "text-embedding-ada-002" || len(got.Input) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not returned in input order: %v", vectors)
	}
}

func TestOpenAIEmbedderDimensionMismatch(t *testing.T) {
	srv := newEmbeddingServer(t, func(req embeddingRequest) []embeddingDatum {
		return []embeddingDatum{{Object: "embedding", Embedding: []float32{1, 2, 3}, Index: 0}}
	})

	embedder := embeddings.NewOpenAIEmbedder(embeddings.Options{
		Model:         "text-embedding-ada-002",
		Dimension:     2,
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: srv.URL + "/v1",
	})

	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	embedder := embeddings.NewOpenAIEmbedder(embeddings.Options{
		Model:         "text-embedding-ada-002",
		OpenAIAPIKey:  "sk-bad",
		OpenAIBaseURL: srv.URL + "/v1",
	})

	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected provider error")
	}
}
