package index

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	archerrors "archie/internal/errors"
)

// DocType is the canonical document type of a governance record.
type DocType string

const (
	TypeADR       DocType = "adr"       // architecture decision record
	TypeDAR       DocType = "dar"       // decision approval record
	TypePrinciple DocType = "principle" // engineering principle
	TypePolicy    DocType = "policy"    // binding policy
)

// AllTypes lists every known document type.
func AllTypes() []DocType {
	return []DocType{TypeADR, TypeDAR, TypePrinciple, TypePolicy}
}

// TypeDefinitions maps each document type to its canonical, type-level
// definition. Used by the compare/definitional route so those queries never
// dump a full enumeration.
var TypeDefinitions = map[DocType]string{
	TypeADR:       "An Architecture Decision Record (ADR) documents a single significant architectural decision, its context, the options considered, and the consequences of the chosen option.",
	TypeDAR:       "A Decision Approval Record (DAR) is the companion sign-off document of an ADR: it records who approved the decision, in which role, and with what verdict. It carries no architectural content of its own.",
	TypePrinciple: "A principle is a durable, technology-agnostic statement of engineering intent that constrains future decisions without prescribing a specific solution.",
	TypePolicy:    "A policy is a binding rule with defined scope and enforcement; unlike a principle it is mandatory and auditable.",
}

// DocumentIdentity is the stable typed reference to a document, independent of
// filename. Ambiguous marks a bare-number reference that matched more than one
// document type at resolution time.
type DocumentIdentity struct {
	Type      DocType
	Number    int
	Path      string
	Ambiguous bool
}

// Canonical renders the identity in canonical form, e.g. "ADR.0025".
func (id DocumentIdentity) Canonical() string {
	return fmt.Sprintf("%s.%04d", strings.ToUpper(string(id.Type)), id.Number)
}

// Key is a stable map key for the identity.
func (id DocumentIdentity) Key() string {
	return string(id.Type) + "/" + strconv.Itoa(id.Number)
}

// Section is one heading-delimited region of a document. Children preserve
// heading-level nesting so bounded extraction never truncates sub-sections.
type Section struct {
	Heading  string
	Level    int
	Body     string
	Children []Section
}

// Text renders the section and all nested children.
func (s Section) Text() string {
	var sb strings.Builder
	s.render(&sb)
	return strings.TrimRight(sb.String(), "\n")
}

func (s Section) render(sb *strings.Builder) {
	if s.Heading != "" {
		sb.WriteString(strings.Repeat("#", s.Level))
		sb.WriteString(" ")
		sb.WriteString(s.Heading)
		sb.WriteString("\n")
	}
	if body := strings.TrimSpace(s.Body); body != "" {
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	for _, child := range s.Children {
		child.render(sb)
	}
}

// Document is one indexed governance record with its section structure intact.
type Document struct {
	Identity DocumentIdentity
	Title    string
	Sections []Section
	Raw      string
}

// Content renders the full document body.
func (d *Document) Content() string {
	var sb strings.Builder
	for _, s := range d.Sections {
		s.render(&sb)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FindSection returns the first section whose heading contains name
// (case-insensitive), searching depth-first so nested sections are reachable.
func (d *Document) FindSection(name string) (Section, bool) {
	lower := strings.ToLower(name)
	var walk func(sections []Section) (Section, bool)
	walk = func(sections []Section) (Section, bool) {
		for _, s := range sections {
			if strings.Contains(strings.ToLower(s.Heading), lower) {
				return s, true
			}
			if found, ok := walk(s.Children); ok {
				return found, ok
			}
		}
		return Section{}, false
	}
	return walk(d.Sections)
}

// Catalog is the read-only registry of document identities, populated at
// index-build time by the classifier and consumed by the route handlers.
type Catalog struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{docs: make(map[string]*Document)}
}

// Put registers a document. Re-registering the same identity replaces it.
func (c *Catalog) Put(doc *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.Identity.Key()] = doc
}

// Get fetches a document by identity.
func (c *Catalog) Get(id DocumentIdentity) (*Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id.Key()]
	return doc, ok
}

// ListByType returns all documents of type t, deduplicated by canonical
// identity and sorted by number ascending.
func (c *Catalog) ListByType(t DocType) []*Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Document
	for _, doc := range c.docs {
		if doc.Identity.Type == t {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity.Number < out[j].Identity.Number
	})
	return out
}

// CountByType returns the number of unique documents of type t without
// touching content.
func (c *Catalog) CountByType(t DocType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, doc := range c.docs {
		if doc.Identity.Type == t {
			n++
		}
	}
	return n
}

// All returns every document, sorted by type then number.
func (c *Catalog) All() []*Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Document, 0, len(c.docs))
	for _, doc := range c.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identity.Type != out[j].Identity.Type {
			return out[i].Identity.Type < out[j].Identity.Type
		}
		return out[i].Identity.Number < out[j].Identity.Number
	})
	return out
}

// MatchNumber returns the identities of every document whose number is n,
// across all types, sorted by type for determinism.
func (c *Catalog) MatchNumber(n int) []DocumentIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []DocumentIdentity
	for _, doc := range c.docs {
		if doc.Identity.Number == n {
			out = append(out, doc.Identity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

var (
	refPattern  = regexp.MustCompile(`(?i)\b(adr|dar|principle|prin|policy|pol)[\s.\-#]*(\d{1,5})\b`)
	barePattern = regexp.MustCompile(`(?:^|\s)#?(\d{1,5})\b`)
)

// typeAliases maps reference keywords onto canonical document types.
var typeAliases = map[string]DocType{
	"adr":       TypeADR,
	"dar":       TypeDAR,
	"principle": TypePrinciple,
	"prin":      TypePrinciple,
	"policy":    TypePolicy,
	"pol":       TypePolicy,
}

// ParseRef extracts an explicit typed reference from text, e.g. "ADR.0025" or
// "policy 3". Returns false when no typed reference is present.
func ParseRef(text string) (DocType, int, bool) {
	m := refPattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0, false
	}
	t, ok := typeAliases[strings.ToLower(m[1])]
	if !ok {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return t, n, true
}

// ParseBareNumber extracts a numeric reference with no type qualifier.
// Typed references are masked first so "ADR.0025" does not also read as a
// bare 25.
func ParseBareNumber(text string) (int, bool) {
	masked := refPattern.ReplaceAllString(text, " ")
	m := barePattern.FindStringSubmatch(masked)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// typeKeywordPatterns match type mentions including plurals ("policies").
var typeKeywordPatterns = map[DocType]*regexp.Regexp{
	TypeADR:       regexp.MustCompile(`\badrs?\b`),
	TypeDAR:       regexp.MustCompile(`\bdars?\b`),
	TypePrinciple: regexp.MustCompile(`\b(?:principles?|prins?)\b`),
	TypePolicy:    regexp.MustCompile(`\b(?:polic(?:y|ies)|pols?)\b`),
}

// ParseTypeKeywords returns the document types named anywhere in text, in
// first-mention order with duplicates removed.
func ParseTypeKeywords(text string) []DocType {
	lower := strings.ToLower(text)
	var found []struct {
		pos int
		t   DocType
	}
	for t, re := range typeKeywordPatterns {
		if loc := re.FindStringIndex(lower); loc != nil {
			found = append(found, struct {
				pos int
				t   DocType
			}{loc[0], t})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]DocType, 0, len(found))
	for _, f := range found {
		out = append(out, f.t)
	}
	return out
}

// Resolve resolves a raw query to a single document identity.
//
// An explicit typed reference resolves directly. A bare number resolves only
// when exactly one document across all types carries it; multiple matches
// return an identity flagged Ambiguous, no matches return NotFound.
func (c *Catalog) Resolve(query string) (DocumentIdentity, error) {
	if t, n, ok := ParseRef(query); ok {
		id := DocumentIdentity{Type: t, Number: n}
		if _, exists := c.Get(id); !exists {
			return DocumentIdentity{}, archerrors.NewNotFound(id.Canonical())
		}
		return id, nil
	}

	if n, ok := ParseBareNumber(query); ok {
		matches := c.MatchNumber(n)
		switch len(matches) {
		case 0:
			return DocumentIdentity{}, archerrors.NewNotFound(fmt.Sprintf("document %d", n))
		case 1:
			return matches[0], nil
		default:
			id := matches[0]
			id.Ambiguous = true
			return id, nil
		}
	}

	return DocumentIdentity{}, archerrors.NewNotFound(strings.TrimSpace(query))
}
