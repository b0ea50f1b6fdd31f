package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jefferson/internal/llm"
)

func TestAggregateChoicePercentages(t *testing.T) {
	q := Question{ID: "q", Text: "?", Type: TypeChoice, Options: []string{"Yes", "No", "Unsure"}}
	parsed := []ParsedResponse{
		{Type: TypeChoice, OptionIndex: 0, Option: "Yes"},
		{Type: TypeChoice, OptionIndex: 0, Option: "Yes"},
		{Type: TypeChoice, OptionIndex: 1, Option: "No"},
	}

	result := Aggregator{}.Aggregate(q, parsed, 2)
	assert.Equal(t, 5, result.Attempted)
	assert.Equal(t, 3, result.Parsed)
	assert.Equal(t, 2, result.Excluded)
	assert.Equal(t, result.Attempted, result.Parsed+result.Excluded)
	assert.False(t, result.InsufficientData)

	require.Len(t, result.Choices, 3)
	assert.Equal(t, 2, result.Choices[0].Count)
	assert.Equal(t, 1, result.Choices[1].Count)
	assert.Equal(t, 0, result.Choices[2].Count)

	// Percentages cover parsed responses only and sum to 100.
	var total float64
	for _, oc := range result.Choices {
		total += oc.Percent
	}
	assert.InDelta(t, 100.0, total, 0.0001)
	assert.InDelta(t, 66.6667, result.Choices[0].Percent, 0.001)
}

func TestAggregateScaleStats(t *testing.T) {
	q := scaleQuestion()
	parsed := []ParsedResponse{
		{Type: TypeScale, Value: 4},
		{Type: TypeScale, Value: 6},
		{Type: TypeScale, Value: 8},
	}

	result := Aggregator{}.Aggregate(q, parsed, 0)
	require.NotNil(t, result.Scale)
	assert.InDelta(t, 6.0, result.Scale.Mean, 0.0001)
	assert.InDelta(t, 2.0, result.Scale.StdDev, 0.0001)

	// Bucket width 1 on a 1..10 scale, values land in their own buckets.
	var counted int
	for _, b := range result.Scale.Histogram {
		counted += b.Count
	}
	assert.Equal(t, len(parsed), counted)
}

func TestAggregateSingleScaleResponse(t *testing.T) {
	q := scaleQuestion()
	r, err := ParseResponse("I'd give her a solid 7", q)
	require.NoError(t, err)
	assert.Equal(t, 7, r.Value)

	result := Aggregator{}.Aggregate(q, []ParsedResponse{r}, 0)
	require.NotNil(t, result.Scale)
	assert.Equal(t, 7.0, result.Scale.Mean)
	assert.Equal(t, 0.0, result.Scale.StdDev)
}

func TestAggregateHistogramWideScale(t *testing.T) {
	q := Question{ID: "q", Text: "?", Type: TypeScale, Scale: ScaleRange{Min: 0, Max: 100, Step: 1}}
	parsed := []ParsedResponse{
		{Type: TypeScale, Value: 0},
		{Type: TypeScale, Value: 55},
		{Type: TypeScale, Value: 100},
	}

	result := Aggregator{}.Aggregate(q, parsed, 0)
	require.NotNil(t, result.Scale)
	buckets := result.Scale.Histogram
	require.NotEmpty(t, buckets)
	assert.Equal(t, 10, buckets[0].High-buckets[0].Low)
	assert.Equal(t, 1, buckets[0].Count)
	// The top value belongs to the last bucket, not past it.
	assert.Equal(t, 1, buckets[len(buckets)-1].Count)
}

func TestAggregateEmptyIsInsufficientData(t *testing.T) {
	q := Question{ID: "q", Text: "?", Type: TypeChoice, Options: []string{"Yes", "No"}}

	result := Aggregator{}.Aggregate(q, nil, 4)
	assert.True(t, result.InsufficientData)
	assert.Equal(t, 4, result.Attempted)
	assert.Equal(t, 0, result.Parsed)
	require.Len(t, result.Choices, 2)
	assert.Equal(t, 0, result.Choices[0].Count)

	scale := Aggregator{}.Aggregate(scaleQuestion(), nil, 0)
	assert.True(t, scale.InsufficientData)
	assert.Nil(t, scale.Scale)
}

func TestExactTextThemer(t *testing.T) {
	themes := ExactTextThemer{}.Themes([]string{
		"Housing!",
		"housing",
		"  HOUSING ",
		"crime",
		"crime",
		"potholes",
	})
	require.Len(t, themes, 3)
	assert.Equal(t, Theme{Label: "housing", Count: 3}, themes[0])
	assert.Equal(t, Theme{Label: "crime", Count: 2}, themes[1])
	assert.Equal(t, Theme{Label: "potholes", Count: 1}, themes[2])
}

func TestExactTextThemerNoDuplicates(t *testing.T) {
	themes := ExactTextThemer{}.Themes([]string{"one", "two", "three"})
	require.Len(t, themes, 1)
	assert.Equal(t, Theme{Label: "ungrouped", Count: 3}, themes[0])
}

func TestLLMThemerParsesAndFallsBack(t *testing.T) {
	texts := []string{"rent is too high", "crime worries me", "housing costs"}

	m := &llm.MockClient{Responses: []string{"- Housing | 2\n- Public safety | 1\nignore this line"}}
	themes := LLMThemer{Client: m}.Themes(texts)
	require.Len(t, themes, 2)
	assert.Equal(t, Theme{Label: "Housing", Count: 2}, themes[0])
	assert.Equal(t, Theme{Label: "Public safety", Count: 1}, themes[1])

	// Unparseable output falls back to exact grouping.
	m = &llm.MockClient{Responses: []string{"no structure here"}}
	themes = LLMThemer{Client: m}.Themes(texts)
	require.Len(t, themes, 1)
	assert.Equal(t, "ungrouped", themes[0].Label)
}
