package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"archie/internal/agentic"
	"archie/internal/config"
	"archie/internal/conversation"
	"archie/internal/embedding"
	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/logging"
	"archie/internal/metrics"
	"archie/internal/retrieval"
	"archie/internal/router"
	"archie/internal/routes"
	"archie/internal/terminology"
	"archie/internal/trace"
)

// System is the fully wired pipeline plus the pieces callers need direct
// access to.
type System struct {
	Pipeline *Pipeline
	Catalog  *index.Catalog
	Store    *index.Store
	Breaker  *archerrors.CircuitBreaker
	Traces   *trace.Store
}

// Build wires the whole subsystem from config. docsDir may be empty; the
// catalog then starts empty and only conversational/compare routes have data.
// agenticFactory may be nil, disabling the agentic fallback.
func Build(cfg config.Config, docsDir string, agenticFactory agentic.Factory) (*System, error) {
	logger := logging.NewComponentLogger("bootstrap")

	m, err := metrics.New("archie", nil)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	catalog := index.NewCatalog()
	glossary := terminology.NewGlossary()
	if docsDir != "" {
		if err := LoadDocuments(catalog, docsDir); err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		logger.Info("catalog loaded: %d documents", len(catalog.All()))
	}
	terminology.LoadFromDocuments(glossary, catalog.All())

	var embedder embedding.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder, err = embedding.New(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	} else {
		logger.Warn("no embedding API key configured, running keyword-only")
	}

	breaker := archerrors.NewCircuitBreaker("embedding", archerrors.CircuitBreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		OnStateChange: func(_, to archerrors.CircuitState, _ string) {
			if to == archerrors.StateOpen {
				m.ObserveBreakerTrip()
			}
		},
	})

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		if embedder == nil {
			return nil, archerrors.NewBackend("embedding", fmt.Errorf("no embedder configured"))
		}
		return embedder.Embed(ctx, text)
	}
	store, err := index.NewStore(index.StoreConfig{
		PersistPath: cfg.Index.PersistPath,
		Collection:  cfg.Index.Collection,
	}, catalog, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	traces, err := trace.NewStore(cfg.Trace.Capacity, cfg.Trace.TTL)
	if err != nil {
		return nil, fmt.Errorf("init trace store: %w", err)
	}
	refs, err := conversation.NewRefStore(cfg.Conversation.MaxConversations, cfg.Conversation.MaxRefs)
	if err != nil {
		return nil, fmt.Errorf("init ref store: %w", err)
	}
	terms, err := terminology.NewService(cfg.Terminology, glossary)
	if err != nil {
		return nil, fmt.Errorf("init terminology: %w", err)
	}

	var delegator *agentic.Delegator
	if agenticFactory != nil {
		delegator = agentic.NewDelegator(cfg.Agentic, agenticFactory)
	}

	pipeline := NewPipeline(cfg, Deps{
		Router:    router.New(cfg.Router, catalog, traces),
		Handlers:  routes.New(catalog, cfg.Retrieval.ListPageSize),
		Retriever: retrieval.New(cfg.Retrieval, store, embedder, breaker),
		Terms:     terms,
		Refs:      refs,
		Traces:    traces,
		Delegator: delegator,
		Metrics:   m,
	})

	return &System{
		Pipeline: pipeline,
		Catalog:  catalog,
		Store:    store,
		Breaker:  breaker,
		Traces:   traces,
	}, nil
}

// LoadDocuments walks docsDir and registers every markdown file that
// classifies to a typed identity. Files without one are skipped with a log
// line rather than failing the whole load.
func LoadDocuments(catalog *index.Catalog, docsDir string) error {
	logger := logging.NewComponentLogger("doc-loader")
	return filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := index.LoadDocument(path, string(raw))
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		catalog.Put(doc)
		return nil
	})
}

// IndexAll pushes every catalog document into the vector store. Called by the
// index subcommand; requires a working embedder.
func (s *System) IndexAll(ctx context.Context) error {
	for _, doc := range s.Catalog.All() {
		if err := s.Store.Add(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
