package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	archerrors "archie/internal/errors"
	"archie/internal/logging"
)

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	PersistPath string // path to persist data, empty for in-memory
	Collection  string // collection name
}

// EmbeddingFunc generates the embedding for one text. The resilience layer
// wraps this with the circuit breaker before it is handed to the store.
type EmbeddingFunc func(ctx context.Context, text string) ([]float32, error)

// Store is the chromem-backed index backend: vector search over per-section
// chunks blended with keyword rescoring, with a keyword-only mode that never
// touches the embedder.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	catalog    *Catalog
	logger     logging.Logger
}

// hybrid blend between vector similarity and keyword coverage.
const (
	vectorWeight  = 0.75
	keywordWeight = 0.25
)

// NewStore creates the chromem-backed store over an existing catalog.
func NewStore(config StoreConfig, catalog *Catalog, embed EmbeddingFunc) (*Store, error) {
	if config.Collection == "" {
		config.Collection = "governance"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, chromem.EmbeddingFunc(embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Store{
		db:         db,
		collection: collection,
		catalog:    catalog,
		logger:     logging.NewComponentLogger("index-store"),
	}, nil
}

// Add indexes a document: one chunk per top-level section so lookup excerpts
// stay section-scoped. Content chunking internals beyond this boundary belong
// to the ingestion pipeline.
func (s *Store) Add(ctx context.Context, doc *Document) error {
	sections := doc.Sections
	if len(sections) == 0 {
		sections = []Section{{Heading: doc.Title, Level: 1, Body: doc.Raw}}
	}
	for i, section := range sections {
		content := section.Text()
		if content == "" {
			continue
		}
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:      fmt.Sprintf("%s#%d", doc.Identity.Key(), i),
			Content: content,
			Metadata: map[string]string{
				"type":    string(doc.Identity.Type),
				"number":  strconv.Itoa(doc.Identity.Number),
				"title":   doc.Title,
				"section": section.Heading,
			},
		})
		if err != nil {
			return fmt.Errorf("add chunk %s#%d: %w", doc.Identity.Canonical(), i, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Search implements Backend. Hybrid mode queries the vector collection and
// rescores with keyword coverage; keyword-only mode ranks catalog documents
// without generating any embedding.
func (s *Store) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = 5
	}

	if req.KeywordOnly {
		hits := keywordSearch(s.catalog, req)
		total := len(hits)
		if len(hits) > req.Limit {
			hits = hits[:req.Limit]
		}
		return SearchResponse{
			Hits:          hits,
			TotalMatching: total,
			KeywordOnly:   true,
			Elapsed:       time.Since(start),
		}, nil
	}

	var where map[string]string
	if req.TypeFilter != "" {
		where = map[string]string{"type": string(req.TypeFilter)}
	}

	topK := req.Limit * 3 // over-fetch so per-document dedupe can still fill the page
	if n := s.collection.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return SearchResponse{Elapsed: time.Since(start)}, nil
	}

	results, err := s.collection.Query(ctx, req.Query, topK, where, nil)
	if err != nil {
		if ctx.Err() != nil {
			return SearchResponse{}, archerrors.NewBackendTimeout("index", err)
		}
		return SearchResponse{}, archerrors.NewBackend("index", err)
	}

	terms := Tokenize(req.Query)
	best := make(map[string]SearchHit)
	for _, r := range results {
		number, _ := strconv.Atoi(r.Metadata["number"])
		identity := DocumentIdentity{Type: DocType(r.Metadata["type"]), Number: number}
		score := vectorWeight*float64(r.Similarity) + keywordWeight*keywordScore(terms, r.Content)
		if score > 1 {
			score = 1
		}
		if prev, ok := best[identity.Key()]; ok && prev.Score >= score {
			continue
		}
		best[identity.Key()] = SearchHit{
			Identity: identity,
			Score:    score,
			Excerpt:  excerptAround(terms, r.Content, 240),
		}
	}

	hits := make([]SearchHit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	total := len(hits)
	if len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}

	s.logger.Debug("hybrid search %q: %d hits in %v", req.Query, total, time.Since(start))
	return SearchResponse{
		Hits:          hits,
		TotalMatching: total,
		Elapsed:       time.Since(start),
	}, nil
}
