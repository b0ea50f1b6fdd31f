package poll

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ParsedResponse is a validated answer, discriminated by the question's
// declared type. Exactly one of Text, OptionIndex/Option, or Value is
// meaningful.
type ParsedResponse struct {
	Type QuestionType `json:"type"`

	// Open-ended: trimmed free text.
	Text string `json:"text,omitempty"`

	// Choice: index into the question's options, plus the label.
	OptionIndex int    `json:"option_index,omitempty"`
	Option      string `json:"option,omitempty"`

	// Scale: value within [min, max], aligned to the step.
	Value int `json:"value,omitempty"`
}

var numberToken = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Small-number words, so "a solid seven" parses like "a solid 7".
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20,
}

// ParseResponse validates raw model output against the question's declared
// type. A failed parse returns *ParseError and is never coerced into a
// default value.
func ParseResponse(raw string, q Question) (ParsedResponse, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ParsedResponse{}, &ParseError{Reason: ReasonNoText}
	}

	switch q.Type {
	case TypeOpen:
		return ParsedResponse{Type: TypeOpen, Text: text}, nil
	case TypeChoice:
		return parseChoice(text, q)
	case TypeScale:
		return parseScale(text, q)
	default:
		return ParsedResponse{}, &ParseError{Reason: ReasonAmbiguousChoice, Detail: "unknown question type"}
	}
}

// parseChoice tries exact case-insensitive label match first, then
// whole-word containment. Exactly one matching option succeeds; zero or
// multiple fail as ambiguous.
func parseChoice(text string, q Question) (ParsedResponse, error) {
	for i, opt := range q.Options {
		if strings.EqualFold(text, strings.TrimSpace(opt)) {
			return ParsedResponse{Type: TypeChoice, OptionIndex: i, Option: opt}, nil
		}
	}

	matched := -1
	for i, opt := range q.Options {
		if containsWord(text, strings.TrimSpace(opt)) {
			if matched >= 0 {
				return ParsedResponse{}, &ParseError{
					Reason: ReasonAmbiguousChoice,
					Detail: "multiple options matched: " + q.Options[matched] + ", " + opt,
				}
			}
			matched = i
		}
	}
	if matched < 0 {
		return ParsedResponse{}, &ParseError{Reason: ReasonAmbiguousChoice, Detail: "no option matched"}
	}
	return ParsedResponse{Type: TypeChoice, OptionIndex: matched, Option: q.Options[matched]}, nil
}

// containsWord matches opt on word boundaries, so "No" is found in
// "or no?" but not inside "know".
func containsWord(text, opt string) bool {
	if opt == "" {
		return false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(opt) + `\b`)
	return re.MatchString(text)
}

// parseScale extracts the first numeric token (digits or a spelled-out
// small number), rejects values outside the declared range, and aligns
// in-range values to the nearest step.
func parseScale(text string, q Question) (ParsedResponse, error) {
	value, ok := firstNumber(text)
	if !ok {
		return ParsedResponse{}, &ParseError{Reason: ReasonNonNumeric, Detail: "no number found"}
	}

	min, max := float64(q.Scale.Min), float64(q.Scale.Max)
	if value < min || value > max {
		return ParsedResponse{}, &ParseError{
			Reason: ReasonOutOfRange,
			Detail: strconv.FormatFloat(value, 'g', -1, 64) + " outside declared range",
		}
	}

	step := q.Scale.Step
	if step <= 0 {
		step = 1
	}
	steps := math.Round((value - min) / float64(step))
	aligned := q.Scale.Min + int(steps)*step
	if aligned > q.Scale.Max {
		aligned = q.Scale.Max
	}
	if aligned < q.Scale.Min {
		aligned = q.Scale.Min
	}

	return ParsedResponse{Type: TypeScale, Value: aligned}, nil
}

// firstNumber finds the first numeric token in the text, checking digit
// runs before spelled-out number words.
func firstNumber(text string) (float64, bool) {
	if tok := numberToken.FindString(text); tok != "" {
		v, err := strconv.ParseFloat(tok, 64)
		if err == nil {
			return v, true
		}
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if v, ok := numberWords[word]; ok {
			return float64(v), true
		}
	}
	return 0, false
}
