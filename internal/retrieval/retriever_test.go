package retrieval

import (
	"context"
	"fmt"
	"testing"
	"time"

	"archie/internal/config"
	archerrors "archie/internal/errors"
	"archie/internal/index"
)

type fakeBackend struct {
	requests []index.SearchRequest
	response index.SearchResponse
	// hybridErr fails only hybrid requests so the keyword-only retry succeeds.
	hybridErr error
}

func (f *fakeBackend) Search(_ context.Context, req index.SearchRequest) (index.SearchResponse, error) {
	f.requests = append(f.requests, req)
	if f.hybridErr != nil && !req.KeywordOnly {
		return index.SearchResponse{}, f.hybridErr
	}
	resp := f.response
	resp.KeywordOnly = req.KeywordOnly
	return resp, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func goodResponse() index.SearchResponse {
	return index.SearchResponse{
		Hits: []index.SearchHit{{
			Identity: index.DocumentIdentity{Type: index.TypeADR, Number: 25},
			Score:    0.9,
			Excerpt:  "we adopted event sourcing",
		}},
		TotalMatching: 1,
	}
}

func TestSearchHybridPath(t *testing.T) {
	backend := &fakeBackend{response: goodResponse()}
	embed := &fakeEmbedder{}
	r := New(config.Default().Retrieval, backend, embed, nil)

	out, err := r.Search(context.Background(), "event sourcing", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if out.KeywordFallback || out.BreakerOpen {
		t.Fatalf("healthy path must not fall back: %+v", out)
	}
	if embed.calls != 1 {
		t.Fatalf("embedding probed %d times, want 1", embed.calls)
	}
	if backend.requests[0].KeywordOnly {
		t.Fatal("healthy path must stay hybrid")
	}
	if out.Verdict.Abstain {
		t.Fatalf("good hit must pass the gate: %+v", out.Verdict)
	}
}

func TestSearchNilEmbedderIsKeywordOnly(t *testing.T) {
	backend := &fakeBackend{response: goodResponse()}
	r := New(config.Default().Retrieval, backend, nil, nil)

	out, err := r.Search(context.Background(), "event sourcing", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !out.KeywordFallback {
		t.Fatal("nil embedder must force keyword-only")
	}
	if !backend.requests[0].KeywordOnly {
		t.Fatal("request must carry KeywordOnly, never a zero vector")
	}
}

func TestSearchEmbeddingFailureFallsBack(t *testing.T) {
	backend := &fakeBackend{response: goodResponse()}
	embed := &fakeEmbedder{err: archerrors.NewBackend("embedding", fmt.Errorf("boom"))}
	r := New(config.Default().Retrieval, backend, embed, nil)

	out, err := r.Search(context.Background(), "event sourcing", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !out.KeywordFallback {
		t.Fatal("embedding failure must switch to keyword-only")
	}
	if out.BreakerOpen {
		t.Fatal("plain failure is not an open breaker")
	}
	if !backend.requests[0].KeywordOnly {
		t.Fatal("backend must see a keyword-only request")
	}
}

func TestSearchOpenBreakerShortCircuitsEmbedding(t *testing.T) {
	breaker := archerrors.NewCircuitBreaker("embedding", archerrors.CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Cooldown:         time.Hour,
	})
	backend := &fakeBackend{response: goodResponse()}
	embed := &fakeEmbedder{err: archerrors.NewBackend("embedding", fmt.Errorf("down"))}
	r := New(config.Default().Retrieval, backend, embed, breaker)

	// Two failing requests trip the breaker.
	for i := 0; i < 2; i++ {
		if _, err := r.Search(context.Background(), "event sourcing", ""); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if breaker.State() != archerrors.StateOpen {
		t.Fatalf("breaker should be open, got %s", breaker.State())
	}

	callsBefore := embed.calls
	out, err := r.Search(context.Background(), "event sourcing", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !out.KeywordFallback || !out.BreakerOpen {
		t.Fatalf("open breaker must flag keyword fallback: %+v", out)
	}
	if embed.calls != callsBefore {
		t.Fatal("open breaker must not reach the embedder")
	}
}

func TestSearchHybridBackendFailureRetriesKeywordOnly(t *testing.T) {
	backend := &fakeBackend{
		response:  goodResponse(),
		hybridErr: archerrors.NewBackend("index", fmt.Errorf("vector scoring failed")),
	}
	r := New(config.Default().Retrieval, backend, &fakeEmbedder{}, nil)

	out, err := r.Search(context.Background(), "event sourcing", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !out.KeywordFallback {
		t.Fatal("backend hybrid failure must retry keyword-only")
	}
	if len(backend.requests) != 2 || !backend.requests[1].KeywordOnly {
		t.Fatalf("expected hybrid then keyword-only, got %+v", backend.requests)
	}
}
