// Package terminology implements local-first definition lookup with a bounded
// fallback budget: definitions come from the local glossary or not at all.
package terminology

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"archie/internal/config"
	archerrors "archie/internal/errors"
	"archie/internal/logging"
)

// Definition is one glossary entry with its citation.
type Definition struct {
	Term   string
	Text   string
	Source string
}

// Index is the local definition store boundary.
type Index interface {
	Lookup(ctx context.Context, term string) (Definition, error)
}

// Glossary is the in-memory local index, populated at index-build time.
type Glossary struct {
	mu      sync.RWMutex
	entries map[string]Definition
}

// NewGlossary creates an empty glossary.
func NewGlossary() *Glossary {
	return &Glossary{entries: make(map[string]Definition)}
}

// Add registers a definition under its normalized term.
func (g *Glossary) Add(def Definition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[normalize(def.Term)] = def
}

// Lookup finds a term, trying the singular form when the plural misses.
func (g *Glossary) Lookup(_ context.Context, term string) (Definition, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	key := normalize(term)
	if def, ok := g.entries[key]; ok {
		return def, nil
	}
	if singular := strings.TrimSuffix(key, "s"); singular != key {
		if def, ok := g.entries[singular]; ok {
			return def, nil
		}
	}
	return Definition{}, archerrors.NewNotFound(term)
}

// Len returns the number of glossary entries.
func (g *Glossary) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

type cacheEntry struct {
	def      Definition
	storedAt time.Time
}

// Service performs definition lookups with a fixed time budget and a bounded
// LRU+TTL cache. Every failure mode abstains with a reason; no definition is
// ever invented.
type Service struct {
	cfg    config.TerminologyConfig
	local  Index
	cache  *lru.Cache[string, cacheEntry]
	logger logging.Logger
}

// NewService creates the terminology service over the local index.
func NewService(cfg config.TerminologyConfig, local Index) (*Service, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Millisecond
	}
	cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:    cfg,
		local:  local,
		cache:  cache,
		logger: logging.NewComponentLogger("terminology"),
	}, nil
}

// Define resolves a term. Outcomes follow the fixed policy table:
// found -> definition with source; not found -> abstain not_found;
// budget exceeded -> abstain timeout; backend error -> abstain error.
func (s *Service) Define(ctx context.Context, term string) (Definition, error) {
	key := normalize(term)
	if entry, ok := s.cache.Get(key); ok {
		if time.Since(entry.storedAt) <= s.cfg.CacheTTL {
			return entry.def, nil
		}
		s.cache.Remove(key)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type lookupResult struct {
		def Definition
		err error
	}
	resultCh := make(chan lookupResult, 1)
	go func() {
		def, err := s.local.Lookup(ctx, term)
		resultCh <- lookupResult{def, err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("definition lookup for %q exceeded %v budget", term, s.cfg.Timeout)
		return Definition{}, &archerrors.NotFoundError{Identifier: term, Reason: archerrors.ReasonTimeout}
	case result := <-resultCh:
		if result.err != nil {
			if archerrors.IsNotFound(result.err) {
				return Definition{}, result.err
			}
			s.logger.Warn("definition lookup for %q failed: %v", term, result.err)
			return Definition{}, &archerrors.NotFoundError{Identifier: term, Reason: archerrors.ReasonError}
		}
		s.cache.Add(key, cacheEntry{def: result.def, storedAt: time.Now()})
		return result.def, nil
	}
}
