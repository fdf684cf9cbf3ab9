// Package routes implements the deterministic route handlers. Each handler is
// pure given its inputs and the index: no hidden state, no generation.
package routes

import (
	"fmt"
	"strings"

	"archie/internal/envelope"
	"archie/internal/index"
)

// Handlers executes the deterministic routes against the catalog.
type Handlers struct {
	catalog      *index.Catalog
	listPageSize int
}

// New creates the handler set. listPageSize caps list serialization; the true
// total is always reported.
func New(catalog *index.Catalog, listPageSize int) *Handlers {
	if listPageSize <= 0 {
		listPageSize = 50
	}
	return &Handlers{catalog: catalog, listPageSize: listPageSize}
}

// Result is a handler outcome: the envelope plus the document references it
// resolved, for the conversation's follow-up memory.
type Result struct {
	Envelope envelope.Envelope
	Resolved []index.DocumentIdentity
}

// exactEnvelope builds an envelope with an exact count.
func exactEnvelope(answer string, shown, total int, sources []string) envelope.Envelope {
	return envelope.Envelope{
		Answer:         answer,
		ItemsShown:     shown,
		ItemsTotal:     envelope.Total(total),
		CountQualifier: envelope.CountExact,
		Sources:        sources,
		SchemaVersion:  envelope.SchemaVersion,
		Confidence:     1,
	}
}

// typeLabel renders a human-readable plural label for a document type.
func typeLabel(t index.DocType) string {
	switch t {
	case index.TypeADR:
		return "ADRs"
	case index.TypeDAR:
		return "DARs"
	case index.TypePrinciple:
		return "principles"
	case index.TypePolicy:
		return "policies"
	default:
		return string(t) + "s"
	}
}

func joinCanonical(ids []index.DocumentIdentity) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.Canonical())
	}
	return strings.Join(parts, ", ")
}

// Clarification builds the ambiguous-decision response listing candidates.
func Clarification(query string, candidates []string) envelope.Envelope {
	return envelope.Envelope{
		Answer: fmt.Sprintf("Your question could mean more than one thing. Did you mean: %s?",
			strings.Join(candidates, ", ")),
		ItemsShown:     0,
		ItemsTotal:     envelope.Total(0),
		CountQualifier: envelope.CountExact,
		SchemaVersion:  envelope.SchemaVersion,
	}
}
