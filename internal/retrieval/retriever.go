// Package retrieval runs the semantic route: embedding through the circuit
// breaker, hybrid search against the index backend, and the abstention gate
// that refuses to answer rather than fabricate.
package retrieval

import (
	"context"
	"errors"

	"archie/internal/config"
	"archie/internal/embedding"
	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/logging"
)

// Outcome is the result of one semantic retrieval, including which fallback
// paths were active.
type Outcome struct {
	Response        index.SearchResponse
	KeywordFallback bool
	BreakerOpen     bool
	Verdict         Verdict
}

// Retriever executes confidence-gated semantic retrieval.
type Retriever struct {
	cfg     config.RetrievalConfig
	backend index.Backend
	embed   embedding.Embedder
	breaker *archerrors.CircuitBreaker
	logger  logging.Logger
}

// New creates a Retriever. breaker guards the embedding call path; embed may
// be nil, in which case every request is keyword-only.
func New(cfg config.RetrievalConfig, backend index.Backend, embed embedding.Embedder, breaker *archerrors.CircuitBreaker) *Retriever {
	return &Retriever{
		cfg:     cfg,
		backend: backend,
		embed:   embed,
		breaker: breaker,
		logger:  logging.NewComponentLogger("retriever"),
	}
}

// Search runs a semantic query. When embedding fails or the breaker is open
// the whole request switches to keyword-only retrieval: a zero vector is not
// neutral in hybrid scoring, so it is never substituted.
func (r *Retriever) Search(ctx context.Context, query string, typeFilter index.DocType) (Outcome, error) {
	var outcome Outcome

	req := index.SearchRequest{
		Query:      query,
		TypeFilter: typeFilter,
		Limit:      r.cfg.TopK,
	}

	if r.embed == nil {
		req.KeywordOnly = true
		outcome.KeywordFallback = true
	} else if err := r.probeEmbedding(ctx, query); err != nil {
		req.KeywordOnly = true
		outcome.KeywordFallback = true
		outcome.BreakerOpen = errors.Is(err, archerrors.ErrCircuitOpen)
		r.logger.Warn("embedding unavailable, keyword-only fallback: %v", err)
	}

	resp, err := r.backend.Search(ctx, req)
	if err != nil && !req.KeywordOnly {
		// The hybrid path can still fail inside the backend; retry the whole
		// request keyword-only before giving up.
		r.logger.Warn("hybrid search failed, retrying keyword-only: %v", err)
		req.KeywordOnly = true
		outcome.KeywordFallback = true
		resp, err = r.backend.Search(ctx, req)
	}
	if err != nil {
		return outcome, err
	}

	outcome.Response = resp
	outcome.KeywordFallback = outcome.KeywordFallback || resp.KeywordOnly
	outcome.Verdict = Evaluate(query, resp, r.cfg)
	return outcome, nil
}

// probeEmbedding runs the embedding call under the breaker. A successful
// probe leaves the vector in the embedder's cache, so the backend's own
// embedding call for the same text is served locally.
func (r *Retriever) probeEmbedding(ctx context.Context, query string) error {
	if r.breaker == nil {
		_, err := r.embed.Embed(ctx, query)
		return err
	}
	return r.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := r.embed.Embed(ctx, query)
		return err
	})
}
