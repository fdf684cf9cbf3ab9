package trace

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(string, ...any) {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}
func (r *recordingLogger) Info(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestPutAndGet(t *testing.T) {
	s, err := NewStore(16, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	s.Put(QueryTrace{
		RequestID:    "req-1",
		Query:        "What is ADR.0025?",
		Route:        "lookup",
		DecisionKind: "confident",
		ThresholdMet: true,
	})

	got, ok := s.Get("req-1")
	if !ok {
		t.Fatal("trace missing")
	}
	if got.Route != "lookup" || !got.ThresholdMet {
		t.Fatalf("wrong trace: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not stamped")
	}
}

func TestOnlyFinishEmitsTheLogLine(t *testing.T) {
	s, err := NewStore(16, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recordingLogger{}
	s.logger = rec

	// Intermediate stages update the record silently.
	s.Put(QueryTrace{RequestID: "req-1", Route: "lookup"})
	if len(rec.lines) != 0 {
		t.Fatalf("Put must not log, got %v", rec.lines)
	}

	s.Finish(QueryTrace{RequestID: "req-1", Route: "lookup", ThresholdMet: true, Abstained: false})
	if len(rec.lines) != 1 {
		t.Fatalf("expected exactly one line per query, got %d", len(rec.lines))
	}

	var got QueryTrace
	if err := json.Unmarshal([]byte(rec.lines[0]), &got); err != nil {
		t.Fatalf("emitted line is not a JSON trace: %v", err)
	}
	if got.RequestID != "req-1" || !got.ThresholdMet {
		t.Fatalf("wrong trace emitted: %+v", got)
	}

	if stored, ok := s.Get("req-1"); !ok || !stored.ThresholdMet {
		t.Fatalf("Finish must also store the final trace: %+v", stored)
	}
}

func TestGetMissing(t *testing.T) {
	s, err := NewStore(16, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("nope"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestTTLExpiry(t *testing.T) {
	s, err := NewStore(16, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	s.Put(QueryTrace{RequestID: "req-1", Route: "semantic"})
	time.Sleep(25 * time.Millisecond)

	if _, ok := s.Get("req-1"); ok {
		t.Fatal("expired trace still readable")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry not removed on read, len=%d", s.Len())
	}
}

func TestCapacityEviction(t *testing.T) {
	s, err := NewStore(4, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		s.Put(QueryTrace{RequestID: fmt.Sprintf("req-%d", i), Route: "lookup"})
	}
	if s.Len() != 4 {
		t.Fatalf("capacity not enforced, len=%d", s.Len())
	}
	if _, ok := s.Get("req-0"); ok {
		t.Fatal("oldest trace should have been evicted")
	}
	if _, ok := s.Get("req-9"); !ok {
		t.Fatal("newest trace missing")
	}
}
