package routes

import (
	"fmt"
	"strings"

	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/router"
)

// sectionRequests maps query phrasing onto document section names for bounded
// extraction.
var sectionRequests = []string{
	"consequences", "context", "decision", "options", "status", "rationale",
}

// Lookup fetches the canonical content record for the referenced document.
// The approval variant is never substituted unless the query referenced it
// explicitly.
func (h *Handlers) Lookup(signals router.Signals, query string) (Result, error) {
	identity, err := h.resolveIdentity(signals, query)
	if err != nil {
		return Result{}, err
	}
	if identity.Ambiguous {
		matches := h.catalog.MatchNumber(identity.Number)
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Canonical())
		}
		return Result{}, &archerrors.AmbiguousIntentError{Query: query, Candidates: candidates}
	}

	doc, ok := h.catalog.Get(identity)
	if !ok {
		return Result{}, archerrors.NewNotFound(identity.Canonical())
	}

	answer := h.renderLookup(doc, query)
	return Result{
		Envelope: exactEnvelope(answer, 1, 1, []string{doc.Identity.Canonical()}),
		Resolved: []index.DocumentIdentity{doc.Identity},
	}, nil
}

func (h *Handlers) resolveIdentity(signals router.Signals, query string) (index.DocumentIdentity, error) {
	if signals.HasCanonicalRef || signals.HasFollowupRef {
		id := index.DocumentIdentity{Type: signals.RefType, Number: signals.RefNumber}
		if _, ok := h.catalog.Get(id); !ok {
			return index.DocumentIdentity{}, archerrors.NewNotFound(id.Canonical())
		}
		return id, nil
	}
	if signals.HasBareNumber {
		if signals.RefType != "" {
			// Already disambiguated by the scoring gate.
			return index.DocumentIdentity{Type: signals.RefType, Number: signals.RefNumber}, nil
		}
		return h.catalog.Resolve(query)
	}
	return index.DocumentIdentity{}, archerrors.NewNotFound(strings.TrimSpace(query))
}

// renderLookup returns the full content, or a single bounded section when the
// query names one. Section extraction keeps heading-level nesting intact so
// sub-sections survive.
func (h *Handlers) renderLookup(doc *index.Document, query string) string {
	lower := strings.ToLower(query)
	for _, name := range sectionRequests {
		if !strings.Contains(lower, name) {
			continue
		}
		if section, ok := doc.FindSection(name); ok {
			return fmt.Sprintf("%s — %s\n\n%s", doc.Identity.Canonical(), doc.Title, section.Text())
		}
	}
	return fmt.Sprintf("%s — %s\n\n%s", doc.Identity.Canonical(), doc.Title, doc.Content())
}
