package index

import (
	"sort"
	"strings"
)

// stopwords excluded from keyword scoring and term-coverage checks.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"of": true, "in": true, "on": true, "to": true, "for": true, "and": true,
	"or": true, "what": true, "which": true, "how": true, "do": true,
	"does": true, "about": true, "with": true, "that": true, "this": true,
	"it": true, "be": true, "we": true, "our": true, "all": true,
}

// Tokenize lowercases text and splits it into content terms, dropping
// stopwords and single-character fragments.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TermCoverage returns the fraction of unique query terms present in text.
// Returns 1 for a query with no content terms so coverage never blocks a
// degenerate query on its own.
func TermCoverage(query, text string) float64 {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return 1
	}
	unique := make(map[string]bool, len(terms))
	for _, t := range terms {
		unique[t] = true
	}
	lower := strings.ToLower(text)
	matched := 0
	for t := range unique {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(unique))
}

// keywordScore scores a document body against query terms: fraction of unique
// terms present, lightly boosted by repeated occurrences. Bounded to [0,1].
func keywordScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	unique := make(map[string]bool, len(terms))
	for _, t := range terms {
		unique[t] = true
	}
	lower := strings.ToLower(text)
	matched := 0
	occurrences := 0
	for t := range unique {
		n := strings.Count(lower, t)
		if n > 0 {
			matched++
			occurrences += n
		}
	}
	if matched == 0 {
		return 0
	}
	score := float64(matched) / float64(len(unique))
	// Repetition boost caps at +0.15 so coverage stays dominant.
	boost := float64(occurrences-matched) * 0.01
	if boost > 0.15 {
		boost = 0.15
	}
	if score+boost > 1 {
		return 1
	}
	return score + boost
}

// excerptAround returns a bounded window of text centered on the first query
// term occurrence.
func excerptAround(terms []string, text string, width int) string {
	lower := strings.ToLower(text)
	pos := -1
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}
	start := pos - width/2
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(text) {
		end = len(text)
	}
	excerpt := strings.TrimSpace(text[start:end])
	if start > 0 {
		excerpt = "…" + excerpt
	}
	if end < len(text) {
		excerpt += "…"
	}
	return excerpt
}

// keywordSearch ranks catalog documents by keyword score alone.
func keywordSearch(catalog *Catalog, req SearchRequest) []SearchHit {
	terms := Tokenize(req.Query)

	var hits []SearchHit
	for _, doc := range catalog.All() {
		if req.TypeFilter != "" && doc.Identity.Type != req.TypeFilter {
			continue
		}
		body := doc.Title + "\n" + doc.Content()
		score := keywordScore(terms, body)
		if score <= 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Identity: doc.Identity,
			Score:    score,
			Excerpt:  excerptAround(terms, body, 240),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}
