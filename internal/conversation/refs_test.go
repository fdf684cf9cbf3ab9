package conversation

import (
	"testing"

	"archie/internal/index"
)

func id(t index.DocType, n int) index.DocumentIdentity {
	return index.DocumentIdentity{Type: t, Number: n}
}

func TestRecordAndRecent(t *testing.T) {
	s, err := NewRefStore(8, 4)
	if err != nil {
		t.Fatal(err)
	}

	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 25)})
	s.Record("c1", []index.DocumentIdentity{id(index.TypePolicy, 3)})

	recent := s.Recent("c1")
	if len(recent) != 2 {
		t.Fatalf("got %d refs", len(recent))
	}
	if recent[0] != id(index.TypePolicy, 3) || recent[1] != id(index.TypeADR, 25) {
		t.Fatalf("most recent first violated: %+v", recent)
	}
}

func TestRecordDeduplicates(t *testing.T) {
	s, err := NewRefStore(8, 4)
	if err != nil {
		t.Fatal(err)
	}

	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 25)})
	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 7)})
	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 25)})

	recent := s.Recent("c1")
	if len(recent) != 2 {
		t.Fatalf("duplicate not collapsed: %+v", recent)
	}
	if recent[0] != id(index.TypeADR, 25) {
		t.Fatalf("re-mention must move to the front: %+v", recent)
	}
}

func TestRecordTrimsToBound(t *testing.T) {
	s, err := NewRefStore(8, 2)
	if err != nil {
		t.Fatal(err)
	}

	for n := 1; n <= 5; n++ {
		s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, n)})
	}

	recent := s.Recent("c1")
	if len(recent) != 2 {
		t.Fatalf("bound not enforced: %+v", recent)
	}
	if recent[0] != id(index.TypeADR, 5) || recent[1] != id(index.TypeADR, 4) {
		t.Fatalf("wrong survivors: %+v", recent)
	}
}

func TestConversationsIsolated(t *testing.T) {
	s, err := NewRefStore(8, 4)
	if err != nil {
		t.Fatal(err)
	}

	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 25)})
	if got := s.Recent("c2"); got != nil {
		t.Fatalf("c2 should be empty, got %+v", got)
	}
	if got := s.Recent(""); got != nil {
		t.Fatalf("empty conversation id should return nil, got %+v", got)
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s, err := NewRefStore(8, 4)
	if err != nil {
		t.Fatal(err)
	}

	s.Record("c1", []index.DocumentIdentity{id(index.TypeADR, 25)})
	first := s.Recent("c1")
	first[0] = id(index.TypePolicy, 99)

	if got := s.Recent("c1"); got[0] != id(index.TypeADR, 25) {
		t.Fatalf("caller mutation leaked into the store: %+v", got)
	}
}
