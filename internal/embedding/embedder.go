package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	archerrors "archie/internal/errors"
	"archie/internal/config"
)

// Embedder generates text embeddings. Calls may fail or time out; callers
// treat both as fallible and fall back to keyword-only retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// openaiEmbedder implements Embedder against an OpenAI-compatible endpoint,
// with an LRU cache so repeated queries skip the network.
type openaiEmbedder struct {
	config     config.EmbeddingConfig
	httpClient *http.Client
	cache      *lru.Cache[string, []float32]
}

// New creates an embedder from config.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &openaiEmbedder{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}, nil
}

// Embed generates the embedding for a single text, serving cached vectors
// when available.
func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	vector, err := e.callAPI(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, archerrors.NewBackendTimeout("embedding", err)
		}
		return nil, archerrors.NewBackend("embedding", err)
	}

	e.cache.Add(text, vector)
	return vector, nil
}

// Dimensions returns the embedding dimension (1536 for text-embedding-3-small).
func (e *openaiEmbedder) Dimensions() int {
	return 1536
}

func (e *openaiEmbedder) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"model": e.config.Model,
		"input": text,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return apiResp.Data[0].Embedding, nil
}
