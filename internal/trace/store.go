package trace

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"archie/internal/logging"
)

// QueryTrace is the request-scoped record of the path a query took. One
// structured line per query goes to the observability sink; the record itself
// lives in a bounded TTL store and is never persisted beyond the window.
type QueryTrace struct {
	RequestID      string             `json:"request_id"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Query          string             `json:"query"`
	Route          string             `json:"route"`
	DecisionKind   string             `json:"decision_kind"`
	Scores         map[string]float64 `json:"scores"`
	Signals        map[string]float64 `json:"signals"`
	ThresholdMet   bool               `json:"threshold_met"`
	KeywordOnly    bool               `json:"keyword_only,omitempty"`
	BreakerOpen    bool               `json:"breaker_open,omitempty"`
	Abstained      bool               `json:"abstained,omitempty"`
	AbstainReason  string             `json:"abstain_reason,omitempty"`
	AgenticUsed    bool               `json:"agentic_used,omitempty"`
	Repaired       bool               `json:"repaired,omitempty"`
	Retried        bool               `json:"retried,omitempty"`
	Degraded       bool               `json:"degraded,omitempty"`
	ElapsedMS      int64              `json:"elapsed_ms"`
	CreatedAt      time.Time          `json:"created_at"`
}

type entry struct {
	trace    QueryTrace
	storedAt time.Time
}

// Store keeps traces in a bounded LRU with TTL eviction on read.
type Store struct {
	cache  *lru.Cache[string, entry]
	ttl    time.Duration
	logger logging.Logger
}

// NewStore creates a trace store holding at most capacity traces for ttl.
func NewStore(capacity int, ttl time.Duration) (*Store, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cache, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Store{
		cache:  cache,
		ttl:    ttl,
		logger: logging.NewComponentLogger("query-trace"),
	}, nil
}

// Put stores a trace without emitting anything. Intermediate stages update
// the record under the same request id as the query progresses.
func (s *Store) Put(t QueryTrace) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.cache.Add(t.RequestID, entry{trace: t, storedAt: time.Now()})
}

// Finish stores the completed trace and emits the single structured log line
// for the query.
func (s *Store) Finish(t QueryTrace) {
	s.Put(t)
	if line, err := json.Marshal(t); err == nil {
		s.logger.Info("%s", line)
	}
}

// Get returns the trace for a request id if it is still within the TTL.
func (s *Store) Get(requestID string) (QueryTrace, bool) {
	e, ok := s.cache.Get(requestID)
	if !ok {
		return QueryTrace{}, false
	}
	if time.Since(e.storedAt) > s.ttl {
		s.cache.Remove(requestID)
		return QueryTrace{}, false
	}
	return e.trace, true
}

// Len returns the number of stored traces, counting entries past their TTL
// that have not been touched since expiry.
func (s *Store) Len() int {
	return s.cache.Len()
}
