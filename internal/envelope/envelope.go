package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	archerrors "archie/internal/errors"
)

// SchemaVersion is bumped on breaking envelope changes so older callers can
// detect incompatibility.
const SchemaVersion = 1

// Count qualifiers.
const (
	CountExact   = "exact"
	CountAtLeast = "at_least"
)

// Stream delimiters wrap the serialized envelope when it is embedded inline
// with other text.
const (
	StartDelimiter = "<<ENVELOPE>>"
	EndDelimiter   = "<<END_ENVELOPE>>"
)

// Envelope is the machine-checkable caller-facing contract.
type Envelope struct {
	Answer     string `json:"answer"`
	ItemsShown int    `json:"items_shown"`
	// ItemsTotal is nullable: nil means "at least ItemsShown".
	ItemsTotal     *int     `json:"items_total"`
	CountQualifier string   `json:"count_qualifier"`
	Sources        []string `json:"sources"`
	SchemaVersion  int      `json:"schema_version"`

	Abstained     bool    `json:"abstained,omitempty"`
	AbstainReason string  `json:"abstain_reason,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Fallback      bool    `json:"fallback,omitempty"`
}

// Total returns a pointer to n, for the nullable ItemsTotal field.
func Total(n int) *int {
	return &n
}

// abstentionMarkers are phrases a legitimate abstention answer contains. An
// answer carrying one of these is a deliberate refusal, and must never be
// flagged as a hallucinated claim.
var abstentionMarkers = []string{
	"was not found",
	"were not found",
	"could not be found",
	"no matching document",
	"no definition",
	"not present in the index",
	"couldn't find",
	"could not find",
}

// IsAbstentionText reports whether text declares an abstention.
func IsAbstentionText(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range abstentionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Validate checks the envelope invariants. Violations are collected so a
// repair attempt can see everything that is broken at once.
func (e Envelope) Validate() error {
	var violations []string

	if strings.TrimSpace(e.Answer) == "" {
		violations = append(violations, "answer is empty")
	}
	if e.ItemsShown < 0 {
		violations = append(violations, "items_shown is negative")
	}
	if e.ItemsTotal != nil && e.ItemsShown > *e.ItemsTotal {
		violations = append(violations,
			fmt.Sprintf("items_shown %d exceeds items_total %d", e.ItemsShown, *e.ItemsTotal))
	}
	if e.CountQualifier != CountExact && e.CountQualifier != CountAtLeast {
		violations = append(violations,
			fmt.Sprintf("count_qualifier %q is neither exact nor at_least", e.CountQualifier))
	}
	// Anything that shows items must say where they came from. Abstentions
	// cite nothing, but they also show nothing, so no exemption applies.
	if e.ItemsShown > 0 && len(e.Sources) == 0 {
		violations = append(violations, "items_shown > 0 with empty sources")
	}
	if e.SchemaVersion != SchemaVersion {
		violations = append(violations,
			fmt.Sprintf("schema_version %d, expected %d", e.SchemaVersion, SchemaVersion))
	}

	if len(violations) > 0 {
		return &archerrors.SchemaViolationError{Violations: violations}
	}
	return nil
}

// Parse decodes and validates a serialized envelope.
func Parse(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, &archerrors.SchemaViolationError{
			Violations: []string{"not valid JSON: " + err.Error()},
		}
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Marshal serializes the envelope as a single JSON object.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// WrapStream wraps a serialized envelope in the stream delimiters.
func WrapStream(raw []byte) string {
	return StartDelimiter + string(raw) + EndDelimiter
}
