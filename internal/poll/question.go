// Package poll contains the polling core: deterministic persona-to-prompt
// construction, response parsing, and response aggregation.
package poll

import (
	"strings"
)

// QuestionType discriminates how a question is asked and parsed.
type QuestionType string

const (
	TypeOpen   QuestionType = "open"
	TypeChoice QuestionType = "choice"
	TypeScale  QuestionType = "scale"
)

// ScaleRange is the inclusive numeric range for scale questions.
type ScaleRange struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Step int `json:"step"`
}

// Question is one poll question.
type Question struct {
	ID   string       `json:"id"`
	Text string       `json:"text"`
	Type QuestionType `json:"type"`

	// Options for choice questions, in presentation order.
	Options []string `json:"options,omitempty"`

	// Scale for scale questions.
	Scale ScaleRange `json:"scale,omitempty"`
}

// NewQuestion builds a question with an ID derived from its text.
func NewQuestion(text string, qtype QuestionType) Question {
	id := strings.ToLower(text)
	if len(id) > 30 {
		id = id[:30]
	}
	id = strings.ReplaceAll(strings.TrimSpace(id), " ", "_")
	return Question{ID: id, Text: text, Type: qtype}
}

// Validate checks question well-formedness.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &ValidationError{Field: "text", Reason: "question text is empty"}
	}

	switch q.Type {
	case TypeOpen:
		return nil
	case TypeChoice:
		if len(q.Options) < 2 {
			return &ValidationError{Field: "options", Reason: "choice question needs at least 2 options"}
		}
		seen := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			key := strings.ToLower(strings.TrimSpace(opt))
			if key == "" {
				return &ValidationError{Field: "options", Reason: "empty option label"}
			}
			if seen[key] {
				return &ValidationError{Field: "options", Reason: "duplicate option label: " + opt}
			}
			seen[key] = true
		}
		return nil
	case TypeScale:
		if q.Scale.Min >= q.Scale.Max {
			return &ValidationError{Field: "scale", Reason: "scale min must be below max"}
		}
		if q.Scale.Step <= 0 {
			return &ValidationError{Field: "scale", Reason: "scale step must be positive"}
		}
		return nil
	default:
		return &ValidationError{Field: "type", Reason: "unknown question type: " + string(q.Type)}
	}
}
