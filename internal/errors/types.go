package errors

import (
	"errors"
	"fmt"
	"strings"
)

// AmbiguousIntentError is returned when the scoring gate cannot pick a single
// winner. It carries the tied candidates so the caller can ask the user to
// clarify.
type AmbiguousIntentError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousIntentError) Error() string {
	return fmt.Sprintf("ambiguous intent for query %q: candidates %s",
		e.Query, strings.Join(e.Candidates, ", "))
}

// NotFoundError is a deliberate abstention: the identifier or term was looked
// up and is genuinely absent. Reason distinguishes not_found from timeout and
// backend error abstentions in the terminology path.
type NotFoundError struct {
	Identifier string
	Reason     string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" && e.Reason != ReasonNotFound {
		return fmt.Sprintf("%s: lookup aborted (%s)", e.Identifier, e.Reason)
	}
	return fmt.Sprintf("%s: not found", e.Identifier)
}

// Abstention reasons carried by NotFoundError.
const (
	ReasonNotFound = "not_found"
	ReasonTimeout  = "timeout"
	ReasonError    = "error"
)

// BackendError wraps a failure from the index backend or an embedding/completion
// provider. Timeout marks deadline expiry so callers can pick the right
// fallback without string matching.
type BackendError struct {
	Backend string
	Err     error
	Timeout bool
}

func (e *BackendError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s backend timed out: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s backend error: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// SchemaViolationError reports a response envelope that failed validation.
// Violations list every broken invariant so repair can be targeted.
type SchemaViolationError struct {
	Violations []string
}

func (e *SchemaViolationError) Error() string {
	return "schema violation: " + strings.Join(e.Violations, "; ")
}

// GenerationError is the terminal failure of the assurance pipeline: validation,
// repair and retry all failed. RawText holds whatever the generator produced so
// the caller can degrade to sanitized raw output.
type GenerationError struct {
	Err     error
	RawText string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after repair and retry: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsAmbiguous reports whether err is an ambiguous-intent error.
func IsAmbiguous(err error) bool {
	var target *AmbiguousIntentError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is an abstention.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsBackend reports whether err originated in an external backend.
func IsBackend(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// IsBackendTimeout reports whether err is a backend deadline expiry.
func IsBackendTimeout(err error) bool {
	var target *BackendError
	return errors.As(err, &target) && target.Timeout
}

// IsSchemaViolation reports whether err is an envelope validation failure.
func IsSchemaViolation(err error) bool {
	var target *SchemaViolationError
	return errors.As(err, &target)
}

// AbstentionReason extracts the abstention reason from err, or "" when err is
// not an abstention.
func AbstentionReason(err error) string {
	var target *NotFoundError
	if !errors.As(err, &target) {
		return ""
	}
	if target.Reason == "" {
		return ReasonNotFound
	}
	return target.Reason
}

// NewNotFound creates an abstention for an identifier that is absent.
func NewNotFound(identifier string) *NotFoundError {
	return &NotFoundError{Identifier: identifier, Reason: ReasonNotFound}
}

// NewBackend wraps a backend failure.
func NewBackend(backend string, err error) *BackendError {
	return &BackendError{Backend: backend, Err: err}
}

// NewBackendTimeout wraps a backend deadline expiry.
func NewBackendTimeout(backend string, err error) *BackendError {
	return &BackendError{Backend: backend, Err: err, Timeout: true}
}
