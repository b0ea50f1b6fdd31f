package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jefferson/internal/config"
	"jefferson/internal/news"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/survey"
)

func testStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestPersonaRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	records := []persona.Record{
		{
			ID:         "p1",
			Age:        45,
			Gender:     "F",
			Race:       persona.RaceWhite,
			County:     "San Francisco",
			PrecinctID: "SF-P01",
			PartyID:    persona.PartyDemocrat,
			TopIssues:  []string{"housing"},
			CreatedAt:  time.Now().UTC(),
		},
		{
			ID:         "p2",
			Age:        60,
			Gender:     "M",
			Race:       persona.RaceHispanic,
			County:     "Miami-Dade",
			PrecinctID: "MD-P01",
			PartyID:    persona.PartyRepublican,
			CreatedAt:  time.Now().UTC(),
		},
	}
	require.NoError(t, s.SavePersonas(ctx, records))

	sf, err := s.ListPersonas(ctx, "San Francisco", 10)
	require.NoError(t, err)
	require.Len(t, sf, 1)
	assert.Equal(t, "p1", sf[0].ID)
	assert.Equal(t, 45, sf[0].Age)
	assert.Equal(t, []string{"housing"}, sf[0].TopIssues)

	all, err := s.ListPersonas(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byPrecinct, err := s.ListPersonasByPrecinct(ctx, "MD-P01", 10)
	require.NoError(t, err)
	require.Len(t, byPrecinct, 1)
	assert.Equal(t, "p2", byPrecinct[0].ID)

	counts, err := s.CountPersonas(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"San Francisco": 1, "Miami-Dade": 1}, counts)

	// Re-saving the same ID updates rather than erroring.
	records[0].Age = 46
	require.NoError(t, s.SavePersonas(ctx, records[:1]))
	sf, err = s.ListPersonas(ctx, "San Francisco", 10)
	require.NoError(t, err)
	require.Len(t, sf, 1)
	assert.Equal(t, 46, sf[0].Age)
}

func TestRespondents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rs := []survey.Respondent{
		{DWID: "d1", AgeGroup: "40-49", Gender: "F", Race: "White", PartyID: "Democrat"},
		{DWID: "d2", AgeGroup: "65+", Gender: "M", Race: "Black", PartyID: "Republican"},
	}
	require.NoError(t, s.SaveRespondents(ctx, "wave3", rs))
	require.NoError(t, s.SaveRespondents(ctx, "wave3", rs[:1])) // idempotent

	n, err := s.CountRespondents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestArticles(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	articles := []news.Article{
		{ID: "a1", County: "San Francisco", Source: "SF Chronicle", Title: "Fresh", URL: "http://x/1", FetchedAt: now},
		{ID: "a2", County: "San Francisco", Source: "SF Chronicle", Title: "Old", URL: "http://x/2", FetchedAt: now.Add(-100 * time.Hour)},
		{ID: "a3", County: "Miami-Dade", Source: "Miami Herald", Title: "Elsewhere", URL: "http://x/3", FetchedAt: now},
	}
	require.NoError(t, s.SaveArticles(ctx, articles))

	recent, err := s.RecentArticles(ctx, "San Francisco", now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Fresh", recent[0].Title)
	assert.Equal(t, now, recent[0].FetchedAt)
}

func TestSimulationLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	rec := SimulationRecord{
		ID:     "sim1",
		Name:   "mayor approval",
		County: "San Francisco",
		Questions: []poll.Question{
			{
				ID:    "q1",
				Text:  "Rate the mayor",
				Type:  poll.TypeScale,
				Scale: poll.ScaleRange{Min: 1, Max: 10, Step: 1},
			},
			{
				ID:      "q2",
				Text:    "Do you support the transit measure?",
				Type:    poll.TypeChoice,
				Options: []string{"Yes", "No", "Unsure"},
			},
		},
		Status:       "pending",
		Iterations:   1,
		PersonaCount: 3,
		StartedAt:    started,
	}
	require.NoError(t, s.CreateSimulation(ctx, rec))

	done := started.Add(time.Minute)
	require.NoError(t, s.UpdateSimulation(ctx, "sim1", "completed", "", &done))

	got, err := s.GetSimulation(ctx, "sim1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, poll.TypeScale, got.Questions[0].Type)
	assert.Equal(t, 10, got.Questions[0].Scale.Max)
	assert.Equal(t, []string{"Yes", "No", "Unsure"}, got.Questions[1].Options)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, done, *got.CompletedAt)

	list, err := s.ListSimulations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	err = s.UpdateSimulation(ctx, "missing", "failed", "x", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSimulation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResponsesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	records := []ResponseRecord{
		{
			ID:           "r1",
			SimulationID: "sim1",
			PersonaID:    "p1",
			QuestionID:   "q1",
			Iteration:    0,
			Prompt:       "You are a 45-year-old...",
			RawResponse:  "I'd say 7",
			Parsed:       &poll.ParsedResponse{Type: poll.TypeScale, Value: 7},
			CreatedAt:    now,
		},
		{
			ID:           "r2",
			SimulationID: "sim1",
			PersonaID:    "p2",
			QuestionID:   "q1",
			Iteration:    0,
			Prompt:       "You are a 60-year-old...",
			RawResponse:  "no comment",
			ParseReason:  string(poll.ReasonNonNumeric),
			CreatedAt:    now,
		},
	}
	require.NoError(t, s.SaveResponses(ctx, records))

	got, err := s.ResponsesForSimulation(ctx, "sim1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Parsed)
	assert.Equal(t, 7, got[0].Parsed.Value)
	assert.Equal(t, "You are a 45-year-old...", got[0].Prompt)

	assert.Nil(t, got[1].Parsed)
	assert.Equal(t, string(poll.ReasonNonNumeric), got[1].ParseReason)
}
