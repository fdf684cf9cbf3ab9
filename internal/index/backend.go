package index

import (
	"context"
	"time"
)

// SearchRequest is the query contract of the index backend.
type SearchRequest struct {
	// Query is the raw keyword text. Always set.
	Query string
	// TypeFilter restricts hits to one document type when non-empty.
	TypeFilter DocType
	// Limit caps the number of hits returned.
	Limit int
	// KeywordOnly skips vector scoring entirely. Set by the resilience layer
	// when embedding is unavailable; a zero vector must never reach hybrid
	// scoring instead.
	KeywordOnly bool
}

// SearchHit is one ranked result.
type SearchHit struct {
	Identity DocumentIdentity
	// Score is a relevance score in [0,1]; higher is better. Distance as used
	// by the abstention gate is 1 - Score.
	Score   float64
	Excerpt string
}

// SearchResponse is the ordered result list plus aggregate metadata.
type SearchResponse struct {
	Hits []SearchHit
	// TotalMatching is the number of documents matching before Limit applied.
	TotalMatching int
	// KeywordOnly reports whether vector scoring was skipped.
	KeywordOnly bool
	Elapsed     time.Duration
}

// Backend is the retrieval service boundary. It must support both hybrid
// (vector + keyword) and keyword-only queries.
type Backend interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}
