package poll

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jefferson/internal/persona"
)

func promptPersona() persona.Record {
	return persona.Record{
		ID:               "p1",
		Age:              45,
		Gender:           "F",
		Race:             persona.RaceWhite,
		Education:        persona.EducationCollege,
		IncomeBracket:    "$50-75K",
		EmploymentStatus: "Employed full time",
		MaritalStatus:    "Married",
		PrecinctID:       "SF-P01-Mission",
		County:           "San Francisco",
		Neighborhood:     "Mission",
		PartyID:          persona.PartyIndependent,
		Ideology:         persona.IdeologyModerate,
		TopIssues:        []string{"housing", "transit"},
		NewsSources:      []string{"NPR", "SF Chronicle"},
	}
}

func scaleQuestion() Question {
	return Question{
		ID:    "mayor_rating",
		Text:  "Rate the mayor's performance",
		Type:  TypeScale,
		Scale: ScaleRange{Min: 1, Max: 10, Step: 1},
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	rec := promptPersona()
	q := scaleQuestion()

	first, err := BuildPrompt(rec, "City budget vote tomorrow.", q)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := BuildPrompt(rec, "City budget vote tomorrow.", q)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildPromptSectionOrder(t *testing.T) {
	prompt, err := BuildPrompt(promptPersona(), "Transit strike continues.", scaleQuestion())
	require.NoError(t, err)

	demoIdx := strings.Index(prompt, "45-year-old")
	newsIdx := strings.Index(prompt, "Transit strike continues.")
	questionIdx := strings.Index(prompt, "Rate the mayor's performance")
	formatIdx := strings.Index(prompt, "single number from 1 to 10")

	require.True(t, demoIdx >= 0 && newsIdx >= 0 && questionIdx >= 0 && formatIdx >= 0)
	assert.Less(t, demoIdx, newsIdx)
	assert.Less(t, newsIdx, questionIdx)
	assert.Less(t, questionIdx, formatIdx)
}

func TestBuildPromptOmitsEmptyNewsBlock(t *testing.T) {
	withNews, err := BuildPrompt(promptPersona(), "Something happened.", scaleQuestion())
	require.NoError(t, err)
	assert.Contains(t, withNews, "Recent local news context:")

	for _, news := range []string{"", "   ", "\n\t"} {
		prompt, err := BuildPrompt(promptPersona(), news, scaleQuestion())
		require.NoError(t, err)
		assert.NotContains(t, prompt, "Recent local news context:")
	}
}

func TestBuildPromptChoiceFormat(t *testing.T) {
	q := Question{ID: "q", Text: "Do you support the measure?", Type: TypeChoice, Options: []string{"Yes", "No", "Unsure"}}
	prompt, err := BuildPrompt(promptPersona(), "", q)
	require.NoError(t, err)
	assert.Contains(t, prompt, "exactly one of these options: Yes, No, Unsure")
}

func TestBuildPromptValidation(t *testing.T) {
	// Malformed question: choice with one option.
	q := Question{ID: "q", Text: "?", Type: TypeChoice, Options: []string{"Yes"}}
	_, err := BuildPrompt(promptPersona(), "", q)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))

	// Persona missing required fields.
	rec := promptPersona()
	rec.Gender = ""
	_, err = BuildPrompt(rec, "", scaleQuestion())
	require.True(t, errors.As(err, &ve))

	rec = promptPersona()
	rec.Age = 0
	_, err = BuildPrompt(rec, "", scaleQuestion())
	require.True(t, errors.As(err, &ve))
}

func TestQuestionValidate(t *testing.T) {
	assert.NoError(t, Question{Text: "x", Type: TypeOpen}.Validate())
	assert.Error(t, Question{Text: " ", Type: TypeOpen}.Validate())
	assert.Error(t, Question{Text: "x", Type: TypeChoice, Options: []string{"a", "A"}}.Validate())
	assert.Error(t, Question{Text: "x", Type: TypeScale, Scale: ScaleRange{Min: 5, Max: 5, Step: 1}}.Validate())
	assert.Error(t, Question{Text: "x", Type: TypeScale, Scale: ScaleRange{Min: 1, Max: 10, Step: 0}}.Validate())
	assert.Error(t, Question{Text: "x", Type: "essay"}.Validate())
	assert.NoError(t, Question{Text: "x", Type: TypeScale, Scale: ScaleRange{Min: 1, Max: 10, Step: 1}}.Validate())
}

func TestNewQuestionID(t *testing.T) {
	q := NewQuestion("Should the city build more housing near transit stops?", TypeOpen)
	assert.Equal(t, "should_the_city_build_more_hou", q.ID)
	assert.Equal(t, TypeOpen, q.Type)
}
