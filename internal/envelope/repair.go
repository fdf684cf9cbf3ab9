package envelope

import (
	"context"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	archerrors "archie/internal/errors"
	"archie/internal/logging"
)

// Regenerator asks the upstream generator for a corrected response. amendment
// describes what was wrong with the previous attempt.
type Regenerator func(ctx context.Context, amendment string) (string, error)

// AssuranceResult reports what the assurance pipeline had to do.
type AssuranceResult struct {
	Envelope Envelope
	Repaired bool
	Retried  bool
	// Degraded is set when repair and retry both failed and the envelope was
	// rebuilt around the sanitized raw text.
	Degraded bool
}

// Assurer validates, repairs and retries generated envelopes.
type Assurer struct {
	logger logging.Logger
}

// NewAssurer creates an Assurer.
func NewAssurer() *Assurer {
	return &Assurer{logger: logging.NewComponentLogger("assurance")}
}

// internal protocol and failure markers that must never reach the caller.
var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile(regexp.QuoteMeta(StartDelimiter)),
	regexp.MustCompile(regexp.QuoteMeta(EndDelimiter)),
	regexp.MustCompile("(?i)unable to format[^.]*\\.?"),
	regexp.MustCompile("(?i)internal (error|failure)[^.]*\\.?"),
	regexp.MustCompile("(?i)schema (violation|validation failed)[^.]*\\.?"),
	regexp.MustCompile("```(?:json)?"),
}

// Sanitize strips internal protocol markers and failure wording from text.
func Sanitize(text string) string {
	for _, pattern := range sanitizePatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// Assure runs the full assurance path on raw generator output:
// validate -> bounded repair -> one amended retry -> sanitized degrade.
// It never returns an error to surface upstream; the worst case is a degraded
// envelope built from the sanitized raw text.
func (a *Assurer) Assure(ctx context.Context, raw string, regenerate Regenerator) AssuranceResult {
	if env, err := a.parseWithRepair(raw); err == nil {
		return AssuranceResult{Envelope: env.env, Repaired: env.repaired}
	} else if regenerate != nil {
		amendment := "The previous response was not a valid response envelope (" +
			err.Error() + "). Respond with exactly one JSON object with fields: " +
			"answer, items_shown, items_total, count_qualifier, sources, schema_version."

		retryRaw, retryErr := regenerate(ctx, amendment)
		if retryErr == nil {
			if env, parseErr := a.parseWithRepair(retryRaw); parseErr == nil {
				return AssuranceResult{Envelope: env.env, Repaired: env.repaired, Retried: true}
			}
			raw = retryRaw
		}
		a.logger.Warn("assurance retry failed, degrading to raw text")
	}

	// Terminal degrade: the caller still gets an answer, never an internal
	// error message.
	return AssuranceResult{
		Envelope: Envelope{
			Answer:         Sanitize(raw),
			ItemsShown:     0,
			CountQualifier: CountExact,
			SchemaVersion:  SchemaVersion,
		},
		Retried:  regenerate != nil,
		Degraded: true,
	}
}

type repairOutcome struct {
	env      Envelope
	repaired bool
}

// parseWithRepair validates raw, attempting a bounded repair on failure:
// strip wrapping delimiters and fences, extract the first JSON-like block,
// run jsonrepair, re-validate.
func (a *Assurer) parseWithRepair(raw string) (repairOutcome, error) {
	if env, err := Parse([]byte(raw)); err == nil {
		return repairOutcome{env: env}, nil
	}

	stripped := stripWrapping(raw)
	candidate := firstJSONBlock(stripped)
	if candidate == "" {
		candidate = stripped
	}

	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return repairOutcome{}, &archerrors.SchemaViolationError{
			Violations: []string{"repair failed: " + err.Error()},
		}
	}

	env, err := Parse([]byte(fixed))
	if err != nil {
		return repairOutcome{}, err
	}
	a.logger.Debug("envelope repaired successfully")
	return repairOutcome{env: env, repaired: true}, nil
}

func stripWrapping(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, StartDelimiter, "")
	s = strings.ReplaceAll(s, EndDelimiter, "")
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSONBlock extracts the first balanced {...} block, ignoring braces
// inside string literals.
func firstJSONBlock(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
