package poll

import "fmt"

// ValidationError reports malformed input to the prompt builder or a
// malformed question. It is fatal to the single call, never to a run.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ParseReason classifies why a raw response failed to parse.
type ParseReason string

const (
	// ReasonNoText: the model returned empty output.
	ReasonNoText ParseReason = "no_text"

	// ReasonAmbiguousChoice: zero or multiple options matched.
	ReasonAmbiguousChoice ParseReason = "ambiguous_choice"

	// ReasonOutOfRange: a numeric value outside the declared scale bounds.
	ReasonOutOfRange ParseReason = "out_of_range"

	// ReasonNonNumeric: a scale answer with no recognizable number.
	ReasonNonNumeric ParseReason = "non_numeric"
)

// ParseError reports an unparseable model response. Parse failures are
// never coerced into defaults; callers record them as excluded.
type ParseError struct {
	Reason ParseReason
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse failed: %s", e.Reason)
	}
	return fmt.Sprintf("parse failed: %s (%s)", e.Reason, e.Detail)
}
