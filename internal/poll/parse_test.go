package poll

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireParseError(t *testing.T, err error, reason ParseReason) {
	t.Helper()
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
	assert.Equal(t, reason, pe.Reason)
}

func TestParseOpen(t *testing.T) {
	q := Question{ID: "q", Text: "Thoughts?", Type: TypeOpen}

	r, err := ParseResponse("  Housing costs too much.  ", q)
	require.NoError(t, err)
	assert.Equal(t, "Housing costs too much.", r.Text)

	_, err = ParseResponse("   ", q)
	requireParseError(t, err, ReasonNoText)
}

func TestParseChoice(t *testing.T) {
	q := Question{ID: "q", Text: "?", Type: TypeChoice, Options: []string{"Yes", "No", "Unsure"}}

	// Exact case-insensitive match.
	r, err := ParseResponse("no", q)
	require.NoError(t, err)
	assert.Equal(t, 1, r.OptionIndex)
	assert.Equal(t, "No", r.Option)

	// Whole-word containment when no exact match.
	r, err = ParseResponse("I would say Unsure, honestly", q)
	require.NoError(t, err)
	assert.Equal(t, 2, r.OptionIndex)

	// An option inside a larger word does not count: "know" is not "No".
	_, err = ParseResponse("I don't know, maybe", q)
	requireParseError(t, err, ReasonAmbiguousChoice)

	// Zero matches.
	_, err = ParseResponse("whatever happens, happens", q)
	requireParseError(t, err, ReasonAmbiguousChoice)

	// Multiple matches.
	_, err = ParseResponse("Yes... or no? Hard to say", q)
	requireParseError(t, err, ReasonAmbiguousChoice)

	_, err = ParseResponse("", q)
	requireParseError(t, err, ReasonNoText)
}

func TestParseScale(t *testing.T) {
	q := Question{ID: "q", Text: "Rate it", Type: TypeScale, Scale: ScaleRange{Min: 1, Max: 10, Step: 1}}

	for _, tt := range []struct {
		raw   string
		value int
	}{
		{"8", 8},
		{"I'd say an 8 out of 10", 8},
		{"I'd give her a solid 7", 7},
		{"a solid seven", 7},
		{"maybe 6.4?", 6},
		{"6.5 or so", 7},
	} {
		r, err := ParseResponse(tt.raw, q)
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.value, r.Value, "raw=%q", tt.raw)
	}

	// Out of range, digits and words alike.
	_, err := ParseResponse("11", q)
	requireParseError(t, err, ReasonOutOfRange)
	_, err = ParseResponse("eleven", q)
	requireParseError(t, err, ReasonOutOfRange)
	_, err = ParseResponse("0", q)
	requireParseError(t, err, ReasonOutOfRange)

	// No number at all.
	_, err = ParseResponse("good", q)
	requireParseError(t, err, ReasonNonNumeric)

	_, err = ParseResponse("", q)
	requireParseError(t, err, ReasonNoText)
}

func TestParseScaleStepAlignment(t *testing.T) {
	q := Question{ID: "q", Text: "Rate it", Type: TypeScale, Scale: ScaleRange{Min: 0, Max: 100, Step: 10}}

	r, err := ParseResponse("I'm at 34 percent", q)
	require.NoError(t, err)
	assert.Equal(t, 30, r.Value)

	r, err = ParseResponse("95", q)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Value)
}
