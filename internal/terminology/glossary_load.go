package terminology

import (
	"regexp"
	"strings"

	"archie/internal/index"
)

// glossaryLine matches "- **Term**: definition" and "- Term: definition"
// bullets inside a glossary section.
var glossaryLine = regexp.MustCompile(`^[-*]\s+\*{0,2}([^:*]+)\*{0,2}\s*:\s+(.+)$`)

// LoadFromDocuments scans every document for a glossary section and registers
// its term bullets, then adds the canonical type-level definitions so "what
// is an ADR" resolves even on an empty corpus.
func LoadFromDocuments(g *Glossary, docs []*index.Document) {
	for t, def := range index.TypeDefinitions {
		g.Add(Definition{
			Term:   string(t),
			Text:   def,
			Source: "glossary/" + string(t),
		})
	}

	for _, doc := range docs {
		section, ok := doc.FindSection("glossary")
		if !ok {
			continue
		}
		for _, line := range strings.Split(section.Text(), "\n") {
			m := glossaryLine.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			g.Add(Definition{
				Term:   strings.TrimSpace(m[1]),
				Text:   strings.TrimSpace(m[2]),
				Source: doc.Identity.Canonical(),
			})
		}
	}
}
