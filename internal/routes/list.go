package routes

import (
	"fmt"
	"strings"

	"archie/internal/envelope"
	"archie/internal/index"
	"archie/internal/router"
)

// List enumerates documents matching the type filter, deduplicated by
// canonical identity and sorted by number ascending. When the page cap trims
// the output the response says so via count_qualifier instead of silently
// under-reporting.
func (h *Handlers) List(signals router.Signals) (Result, error) {
	types := signals.TypeyWords
	if len(types) == 0 {
		types = index.AllTypes()
	}

	var docs []*index.Document
	for _, t := range types {
		docs = append(docs, h.catalog.ListByType(t)...)
	}

	total := len(docs)
	shown := total
	qualifier := envelope.CountExact
	if shown > h.listPageSize {
		shown = h.listPageSize
		qualifier = envelope.CountAtLeast
		docs = docs[:shown]
	}

	var sb strings.Builder
	sources := make([]string, 0, shown)
	resolved := make([]index.DocumentIdentity, 0, shown)
	if len(types) == 1 {
		fmt.Fprintf(&sb, "Found %d %s:\n", total, typeLabel(types[0]))
	} else {
		fmt.Fprintf(&sb, "Found %d documents:\n", total)
	}
	for _, doc := range docs {
		fmt.Fprintf(&sb, "- %s: %s\n", doc.Identity.Canonical(), doc.Title)
		sources = append(sources, doc.Identity.Canonical())
		resolved = append(resolved, doc.Identity)
	}
	if qualifier == envelope.CountAtLeast {
		fmt.Fprintf(&sb, "(showing the first %d of %d)\n", shown, total)
	}

	env := envelope.Envelope{
		Answer:         strings.TrimRight(sb.String(), "\n"),
		ItemsShown:     shown,
		ItemsTotal:     envelope.Total(total),
		CountQualifier: qualifier,
		Sources:        sources,
		SchemaVersion:  envelope.SchemaVersion,
		Confidence:     1,
	}
	if total == 0 {
		env.Answer = "No matching documents were found."
		env.Abstained = true
		env.AbstainReason = "not_found"
	}
	return Result{Envelope: env, Resolved: resolved}, nil
}

// Count reports how many unique documents match the type filter without
// fetching any content.
func (h *Handlers) Count(signals router.Signals) (Result, error) {
	types := signals.TypeyWords
	if len(types) == 0 {
		types = index.AllTypes()
	}

	total := 0
	parts := make([]string, 0, len(types))
	for _, t := range types {
		n := h.catalog.CountByType(t)
		total += n
		parts = append(parts, fmt.Sprintf("%d %s", n, typeLabel(t)))
	}

	answer := fmt.Sprintf("There are %s.", strings.Join(parts, ", "))
	env := exactEnvelope(answer, 0, total, nil)
	return Result{Envelope: env}, nil
}
