package config

import (
	"fmt"
	"time"
)

// Config carries every tunable in the pipeline. The weight tables and
// thresholds were discovered empirically; they ship as configuration with the
// defaults below so they can be re-validated against the golden query set
// before any change.
type Config struct {
	Router       RouterConfig       `mapstructure:"router"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	Terminology  TerminologyConfig  `mapstructure:"terminology"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Agentic      AgenticConfig      `mapstructure:"agentic"`
	Trace        TraceConfig        `mapstructure:"trace"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Index        IndexConfig        `mapstructure:"index"`
	Embedding    EmbeddingConfig    `mapstructure:"embedding"`
	Server       ServerConfig       `mapstructure:"server"`
}

// RouterConfig holds the scoring gate tunables.
type RouterConfig struct {
	// ScoreThreshold is the minimum winning score for a confident decision.
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	// MinMargin is the minimum gap over the runner-up for a confident decision.
	MinMargin float64 `mapstructure:"min_margin"`
	// Weights maps intent name -> signal name -> weight. Missing entries
	// contribute zero.
	Weights map[string]map[string]float64 `mapstructure:"weights"`
}

// RetrievalConfig holds semantic retrieval and abstention tunables.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
	// MaxDistance is the abstention cutoff: top results farther than this
	// (distance = 1 - similarity) are discarded.
	MaxDistance float64 `mapstructure:"max_distance"`
	// MinTermCoverage is the minimum fraction of query terms that must appear
	// in the top result's text.
	MinTermCoverage float64 `mapstructure:"min_term_coverage"`
	// ConfidenceDiscount multiplies result confidence when any fallback flag
	// is active.
	ConfidenceDiscount float64 `mapstructure:"confidence_discount"`
	// ListPageSize caps how many items a list response serializes.
	ListPageSize int `mapstructure:"list_page_size"`
}

// TerminologyConfig holds definition lookup tunables.
type TerminologyConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// BreakerConfig holds the embedding circuit breaker tunables.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// AgenticConfig bounds the external agentic fallback engine.
type AgenticConfig struct {
	// MaxConcurrent bounds simultaneous engine invocations; the engine is not
	// safe to share so each request gets a fresh instance under this limit.
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
	// RulesPath points at the behavior-rules document injected per request.
	RulesPath string        `mapstructure:"rules_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TraceConfig bounds the query trace store.
type TraceConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ConversationConfig bounds the per-conversation resolved-references store.
type ConversationConfig struct {
	MaxRefs          int `mapstructure:"max_refs"`
	MaxConversations int `mapstructure:"max_conversations"`
}

// IndexConfig locates the document index.
type IndexConfig struct {
	PersistPath string `mapstructure:"persist_path"`
	Collection  string `mapstructure:"collection"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	CacheSize int           `mapstructure:"cache_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Router: RouterConfig{
			ScoreThreshold: 0.60,
			MinMargin:      0.15,
			Weights:        DefaultWeights(),
		},
		Retrieval: RetrievalConfig{
			TopK:               5,
			MaxDistance:        0.45,
			MinTermCoverage:    0.30,
			ConfidenceDiscount: 0.8,
			ListPageSize:       50,
		},
		Terminology: TerminologyConfig{
			Timeout:   300 * time.Millisecond,
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
		},
		Agentic: AgenticConfig{
			MaxConcurrent: 4,
			Timeout:       60 * time.Second,
		},
		Trace: TraceConfig{
			Capacity: 1024,
			TTL:      15 * time.Minute,
		},
		Conversation: ConversationConfig{
			MaxRefs:          8,
			MaxConversations: 512,
		},
		Index: IndexConfig{
			Collection: "governance",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			BaseURL:   "https://api.openai.com/v1",
			CacheSize: 10000,
			Timeout:   20 * time.Second,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestTimeout:    30 * time.Second,
			HeartbeatInterval: 2 * time.Second,
		},
	}
}

// DefaultWeights returns the per-intent signal weight tables. Signal names
// match router.Signals field tags.
func DefaultWeights() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"lookup": {
			"canonical_ref":   0.95,
			"bare_number":     0.45,
			"followup_ref":    0.65,
			"approval_intent": -0.50,
		},
		"approval": {
			"approval_intent": 0.90,
			"canonical_ref":   0.10,
			"bare_number":     0.10,
		},
		"list": {
			"list_intent":     0.85,
			"topic_qualifier": -0.50,
			"count_intent":    -0.20,
		},
		"count": {
			"count_intent": 0.90,
			"list_intent":  -0.10,
		},
		"compare": {
			"compare_intent":  0.85,
			"topic_qualifier": -0.40,
		},
		"definitional": {
			"definitional_intent": 0.80,
			"canonical_ref":       -0.50,
			"list_intent":         -0.40,
		},
		"semantic": {
			"generic_semantic": 0.40,
			"topic_qualifier":  0.30,
			"base":             0.25,
		},
		"conversational": {
			"no_retrieval_verb": 0.65,
		},
	}
}

// Validate checks configuration ranges.
func (c Config) Validate() error {
	if c.Router.ScoreThreshold <= 0 || c.Router.ScoreThreshold > 1 {
		return fmt.Errorf("router.score_threshold must be in (0,1], got %v", c.Router.ScoreThreshold)
	}
	if c.Router.MinMargin < 0 || c.Router.MinMargin > 1 {
		return fmt.Errorf("router.min_margin must be in [0,1], got %v", c.Router.MinMargin)
	}
	if len(c.Router.Weights) == 0 {
		return fmt.Errorf("router.weights must not be empty")
	}
	if c.Retrieval.MaxDistance <= 0 || c.Retrieval.MaxDistance > 1 {
		return fmt.Errorf("retrieval.max_distance must be in (0,1], got %v", c.Retrieval.MaxDistance)
	}
	if c.Retrieval.MinTermCoverage < 0 || c.Retrieval.MinTermCoverage > 1 {
		return fmt.Errorf("retrieval.min_term_coverage must be in [0,1], got %v", c.Retrieval.MinTermCoverage)
	}
	if c.Retrieval.ConfidenceDiscount <= 0 || c.Retrieval.ConfidenceDiscount > 1 {
		return fmt.Errorf("retrieval.confidence_discount must be in (0,1], got %v", c.Retrieval.ConfidenceDiscount)
	}
	if c.Terminology.Timeout <= 0 {
		return fmt.Errorf("terminology.timeout must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Agentic.MaxConcurrent <= 0 {
		return fmt.Errorf("agentic.max_concurrent must be positive")
	}
	if c.Trace.Capacity <= 0 || c.Trace.TTL <= 0 {
		return fmt.Errorf("trace capacity and ttl must be positive")
	}
	if c.Conversation.MaxRefs <= 0 {
		return fmt.Errorf("conversation.max_refs must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Server.HeartbeatInterval <= 0 {
		return fmt.Errorf("server.heartbeat_interval must be positive")
	}
	return nil
}
