package routes

import (
	"fmt"
	"strings"

	archerrors "archie/internal/errors"
	"archie/internal/index"
	"archie/internal/router"
)

// Compare returns the canonical type-level definitions for the document-type
// keywords named in the query. It deliberately never enumerates documents;
// the list route owns enumeration and this route only fires on an explicit
// comparison or definition cue.
func (h *Handlers) Compare(signals router.Signals, query string) (Result, error) {
	types := signals.TypeyWords
	if len(types) == 0 {
		types = index.ParseTypeKeywords(query)
	}
	if len(types) == 0 {
		return Result{}, archerrors.NewNotFound("document types to compare")
	}

	var sb strings.Builder
	sources := make([]string, 0, len(types))
	for _, t := range types {
		def, ok := index.TypeDefinitions[t]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", strings.ToUpper(string(t)), def)
		sources = append(sources, "glossary/"+string(t))
	}
	if sb.Len() == 0 {
		return Result{}, archerrors.NewNotFound("document types to compare")
	}

	answer := strings.TrimRight(sb.String(), "\n")
	return Result{
		Envelope: exactEnvelope(answer, len(sources), len(sources), sources),
	}, nil
}

// conversationalDeflection is the fixed response for queries with no
// retrieval verb at all; the index is never touched.
const conversationalDeflection = "I answer questions about this organization's " +
	"ADRs, DARs, principles and policies. Ask me to look one up " +
	"(\"What is ADR.0025?\"), list or count them, check who approved a " +
	"decision, or search them by topic."

// Conversational returns the fixed deflection.
func (h *Handlers) Conversational() (Result, error) {
	return Result{Envelope: exactEnvelope(conversationalDeflection, 0, 0, nil)}, nil
}
