package index

import "testing"

func TestTokenizeDropsStopwords(t *testing.T) {
	got := Tokenize("What is the rationale for event sourcing?")
	want := []string{"rationale", "event", "sourcing"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTermCoverage(t *testing.T) {
	if c := TermCoverage("event sourcing", "we adopted event sourcing"); c != 1 {
		t.Fatalf("full coverage: %v", c)
	}
	if c := TermCoverage("event sourcing compaction", "we adopted event sourcing"); c < 0.6 || c > 0.7 {
		t.Fatalf("expected 2/3 coverage, got %v", c)
	}
	if c := TermCoverage("event sourcing", "unrelated"); c != 0 {
		t.Fatalf("zero coverage: %v", c)
	}
	// A query with no content terms never blocks on coverage alone.
	if c := TermCoverage("is it?", "anything"); c != 1 {
		t.Fatalf("degenerate query: %v", c)
	}
}

func TestKeywordScoreBounds(t *testing.T) {
	terms := Tokenize("event sourcing")
	full := keywordScore(terms, "event sourcing event sourcing event sourcing")
	if full > 1 {
		t.Fatalf("score above 1: %v", full)
	}
	partial := keywordScore(terms, "only event here")
	if partial <= 0 || partial >= full {
		t.Fatalf("partial %v should sit below full %v", partial, full)
	}
	if s := keywordScore(terms, "nothing relevant"); s != 0 {
		t.Fatalf("no match must score 0: %v", s)
	}
}

func TestKeywordSearchRanksAndFilters(t *testing.T) {
	c := NewCatalog()
	c.Put(&Document{
		Identity: DocumentIdentity{Type: TypeADR, Number: 25},
		Title:    "Adopt event sourcing",
		Sections: []Section{{Body: "Event sourcing keeps full write history."}},
	})
	c.Put(&Document{
		Identity: DocumentIdentity{Type: TypeADR, Number: 7},
		Title:    "Split the monolith",
		Sections: []Section{{Body: "Services own their data."}},
	})
	c.Put(&Document{
		Identity: DocumentIdentity{Type: TypePolicy, Number: 3},
		Title:    "Event retention policy",
		Sections: []Section{{Body: "Events are retained for 90 days."}},
	})

	hits := keywordSearch(c, SearchRequest{Query: "event sourcing history"})
	if len(hits) == 0 || hits[0].Identity.Number != 25 {
		t.Fatalf("best match wrong: %+v", hits)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("not sorted: %+v", hits)
		}
	}

	filtered := keywordSearch(c, SearchRequest{Query: "event", TypeFilter: TypePolicy})
	if len(filtered) != 1 || filtered[0].Identity.Type != TypePolicy {
		t.Fatalf("type filter broken: %+v", filtered)
	}
}
