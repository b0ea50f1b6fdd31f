package poll

import (
	"math"
	"sort"
	"strings"
)

// OptionCount is one choice option's tally.
type OptionCount struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// HistogramBucket is one scale histogram bucket over [Low, High).
// The final bucket includes its upper bound.
type HistogramBucket struct {
	Low   int `json:"low"`
	High  int `json:"high"`
	Count int `json:"count"`
}

// ScaleStats summarizes parsed scale values.
type ScaleStats struct {
	Mean      float64           `json:"mean"`
	StdDev    float64           `json:"std_dev"`
	Histogram []HistogramBucket `json:"histogram"`
}

// Theme is one open-text response grouping.
type Theme struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AggregateResult is the statistical summary of all responses to one
// question. It is computed on demand from a completed batch and always
// carries the excluded (failed-parse) count next to the parsed count.
type AggregateResult struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`

	Attempted int `json:"attempted"`
	Parsed    int `json:"parsed"`
	Excluded  int `json:"excluded"`

	// InsufficientData marks an aggregate computed over zero parsed
	// responses; numeric fields are meaningless when set.
	InsufficientData bool `json:"insufficient_data,omitempty"`

	Choices []OptionCount `json:"choices,omitempty"`
	Scale   *ScaleStats   `json:"scale,omitempty"`
	Themes  []Theme       `json:"themes,omitempty"`
}

// Themer groups open-text responses into themes. Implementations may
// delegate to an external summarizer.
type Themer interface {
	Themes(texts []string) []Theme
}

// Aggregator computes AggregateResults. The zero value uses exact-text
// theming for open questions.
type Aggregator struct {
	Themer Themer
}

// Aggregate summarizes parsed responses for one question. excluded is the
// count of failed-parse responses recorded alongside the batch. A zero
// parsed count yields an insufficient-data result, never a panic.
func (a Aggregator) Aggregate(q Question, parsed []ParsedResponse, excluded int) AggregateResult {
	result := AggregateResult{
		QuestionID: q.ID,
		Type:       q.Type,
		Attempted:  len(parsed) + excluded,
		Parsed:     len(parsed),
		Excluded:   excluded,
	}

	if len(parsed) == 0 {
		result.InsufficientData = true
		if q.Type == TypeChoice {
			result.Choices = zeroCounts(q.Options)
		}
		return result
	}

	switch q.Type {
	case TypeChoice:
		result.Choices = a.aggregateChoice(q, parsed)
	case TypeScale:
		result.Scale = a.aggregateScale(q, parsed)
	default:
		result.Themes = a.themer().Themes(openTexts(parsed))
	}
	return result
}

func (a Aggregator) themer() Themer {
	if a.Themer != nil {
		return a.Themer
	}
	return ExactTextThemer{}
}

func zeroCounts(options []string) []OptionCount {
	out := make([]OptionCount, len(options))
	for i, opt := range options {
		out[i] = OptionCount{Label: opt}
	}
	return out
}

// aggregateChoice tallies per-option counts. Percentages are over parsed
// responses only, not the attempted total.
func (a Aggregator) aggregateChoice(q Question, parsed []ParsedResponse) []OptionCount {
	counts := make([]int, len(q.Options))
	for _, r := range parsed {
		if r.OptionIndex >= 0 && r.OptionIndex < len(counts) {
			counts[r.OptionIndex]++
		}
	}

	out := make([]OptionCount, len(q.Options))
	for i, opt := range q.Options {
		out[i] = OptionCount{
			Label:   opt,
			Count:   counts[i],
			Percent: float64(counts[i]) / float64(len(parsed)) * 100,
		}
	}
	return out
}

// aggregateScale computes mean, sample standard deviation, and a histogram
// with bucket width max(1, (max-min)/10).
func (a Aggregator) aggregateScale(q Question, parsed []ParsedResponse) *ScaleStats {
	var sum float64
	for _, r := range parsed {
		sum += float64(r.Value)
	}
	mean := sum / float64(len(parsed))

	var stddev float64
	if len(parsed) > 1 {
		var sq float64
		for _, r := range parsed {
			d := float64(r.Value) - mean
			sq += d * d
		}
		stddev = math.Sqrt(sq / float64(len(parsed)-1))
	}

	width := (q.Scale.Max - q.Scale.Min) / 10
	if width < 1 {
		width = 1
	}
	var buckets []HistogramBucket
	for low := q.Scale.Min; low <= q.Scale.Max; low += width {
		high := low + width
		if high > q.Scale.Max {
			high = q.Scale.Max + 1
		}
		buckets = append(buckets, HistogramBucket{Low: low, High: high})
	}
	for _, r := range parsed {
		idx := (r.Value - q.Scale.Min) / width
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
	}

	return &ScaleStats{Mean: mean, StdDev: stddev, Histogram: buckets}
}

func openTexts(parsed []ParsedResponse) []string {
	out := make([]string, 0, len(parsed))
	for _, r := range parsed {
		out = append(out, r.Text)
	}
	return out
}

// ExactTextThemer groups responses by normalized exact text. When no text
// repeats, all responses fall into a single "ungrouped" bucket.
type ExactTextThemer struct{}

// Themes implements Themer.
func (ExactTextThemer) Themes(texts []string) []Theme {
	counts := make(map[string]int)
	var order []string
	for _, t := range texts {
		key := normalizeText(t)
		if key == "" {
			continue
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	hasDuplicates := false
	for _, c := range counts {
		if c > 1 {
			hasDuplicates = true
			break
		}
	}
	if !hasDuplicates {
		return []Theme{{Label: "ungrouped", Count: len(texts)}}
	}

	themes := make([]Theme, 0, len(order))
	for _, key := range order {
		themes = append(themes, Theme{Label: key, Count: counts[key]})
	}
	// Highest frequency first, first-seen order for ties.
	sort.SliceStable(themes, func(i, j int) bool { return themes[i].Count > themes[j].Count })
	return themes
}

// normalizeText lower-cases and strips punctuation for exact-match
// grouping.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
