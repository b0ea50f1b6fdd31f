package sim

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"jefferson/internal/config"
	"jefferson/internal/llm"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/store"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker in its package init;
	// it is not a leak from the code under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "sim.db"),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPersonas(n int) []persona.Record {
	records := make([]persona.Record, n)
	for i := range records {
		records[i] = persona.Record{
			ID:           persona.NewID(),
			Age:          40 + i,
			Gender:       "F",
			Race:         persona.RaceWhite,
			County:       "San Francisco",
			Neighborhood: "Mission",
			PrecinctID:   "SF-P01",
			PartyID:      persona.PartyDemocrat,
			Ideology:     persona.IdeologyLiberal,
		}
	}
	return records
}

func scaleQuestion() poll.Question {
	return poll.Question{
		ID:    "mayor_rating",
		Text:  "Rate the mayor's performance",
		Type:  poll.TypeScale,
		Scale: poll.ScaleRange{Min: 1, Max: 10, Step: 1},
	}
}

func choiceQuestion() poll.Question {
	return poll.Question{
		ID:      "transit_measure",
		Text:    "Do you support the transit measure?",
		Type:    poll.TypeChoice,
		Options: []string{"Yes", "No", "Unsure"},
	}
}

func scaleRequest(personas []persona.Record, iterations int) Request {
	return Request{
		Name:       "mayor approval",
		County:     "San Francisco",
		Personas:   personas,
		Questions:  []poll.Question{scaleQuestion()},
		Iterations: iterations,
	}
}

func TestRunCompleted(t *testing.T) {
	st := testStore(t)
	client := &llm.MockClient{Responses: []string{"7"}}
	d := NewDriver(st, client, poll.Aggregator{}, Config{MaxConcurrent: 4}, nil)

	result, err := d.Run(context.Background(), scaleRequest(testPersonas(3), 2))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Simulation.Status)
	assert.Equal(t, 6, result.Responses)
	assert.Equal(t, 0, result.Failures)
	require.NotNil(t, result.Simulation.CompletedAt)

	require.Len(t, result.Questions, 1)
	qr := result.Questions[0]
	assert.Equal(t, StatusCompleted, qr.Status)
	assert.Equal(t, 6, qr.Responses)
	require.Len(t, qr.Aggregates, 2)
	for _, agg := range qr.Aggregates {
		assert.Equal(t, 3, agg.Parsed)
		assert.Equal(t, 0, agg.Excluded)
		require.NotNil(t, agg.Scale)
		assert.Equal(t, 7.0, agg.Scale.Mean)
	}

	saved, err := st.ResponsesForSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 6)

	got, err := st.GetSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

// promptKeyedClient answers by which question text appears in the
// prompt, so multi-question runs can script per-question behavior.
type promptKeyedClient struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
}

func (c *promptKeyedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, err := range c.errs {
		if strings.Contains(prompt, key) {
			return "", err
		}
	}
	for key, answer := range c.answers {
		if strings.Contains(prompt, key) {
			return answer, nil
		}
	}
	return "", &llm.PermanentError{Status: 400, Err: errors.New("unscripted prompt")}
}

func TestRunMultipleQuestions(t *testing.T) {
	st := testStore(t)
	client := &promptKeyedClient{answers: map[string]string{
		"Rate the mayor":  "7",
		"transit measure": "Yes",
	}}
	d := NewDriver(st, client, poll.Aggregator{}, Config{MaxConcurrent: 4}, nil)

	req := scaleRequest(testPersonas(3), 2)
	req.Questions = append(req.Questions, choiceQuestion())
	result, err := d.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Simulation.Status)
	assert.Equal(t, 12, result.Responses)
	require.Len(t, result.Questions, 2)

	scale := result.Questions[0]
	assert.Equal(t, StatusCompleted, scale.Status)
	assert.Equal(t, 6, scale.Responses)
	require.Len(t, scale.Aggregates, 2)
	for _, agg := range scale.Aggregates {
		require.NotNil(t, agg.Scale)
		assert.Equal(t, 7.0, agg.Scale.Mean)
	}

	choice := result.Questions[1]
	assert.Equal(t, StatusCompleted, choice.Status)
	assert.Equal(t, 6, choice.Responses)
	for _, agg := range choice.Aggregates {
		require.NotEmpty(t, agg.Choices)
		assert.Equal(t, 3, agg.Choices[0].Count)
		assert.InDelta(t, 100.0, agg.Choices[0].Percent, 0.001)
	}

	saved, err := st.ResponsesForSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 12)

	got, err := st.GetSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "transit_measure", got.Questions[1].ID)
}

func TestRunPartialWhenOneQuestionFails(t *testing.T) {
	st := testStore(t)
	client := &promptKeyedClient{
		answers: map[string]string{"Rate the mayor": "7"},
		errs:    map[string]error{"transit measure": &llm.PermanentError{Status: 401, Err: errors.New("bad key")}},
	}
	d := NewDriver(st, client, poll.Aggregator{}, Config{MaxConcurrent: 4}, nil)

	req := scaleRequest(testPersonas(3), 1)
	req.Questions = append(req.Questions, choiceQuestion())
	result, err := d.Run(context.Background(), req)
	require.NoError(t, err)

	// One question answered, the other dead: the run is partial, not
	// failed, and the per-question statuses keep them apart.
	assert.Equal(t, StatusPartial, result.Simulation.Status)
	assert.Equal(t, 3, result.Responses)
	assert.Equal(t, 3, result.Failures)

	require.Len(t, result.Questions, 2)
	assert.Equal(t, StatusCompleted, result.Questions[0].Status)
	assert.Equal(t, StatusFailed, result.Questions[1].Status)
	assert.Equal(t, 3, result.Questions[1].Failures)
	require.Len(t, result.Questions[1].Aggregates, 1)
	assert.True(t, result.Questions[1].Aggregates[0].InsufficientData)
}

func TestRunPartialOnFailures(t *testing.T) {
	st := testStore(t)
	client := &llm.MockClient{
		Responses: []string{"8"},
		Errs:      []error{nil, &llm.PermanentError{Status: 401, Err: errors.New("bad key")}},
	}
	d := NewDriver(st, client, poll.Aggregator{}, Config{MaxConcurrent: 1}, nil)

	result, err := d.Run(context.Background(), scaleRequest(testPersonas(4), 1))
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Simulation.Status)
	assert.Equal(t, 2, result.Responses)
	assert.Equal(t, 2, result.Failures)
	assert.NotEmpty(t, result.Simulation.Error)

	require.Len(t, result.Questions, 1)
	assert.Equal(t, StatusPartial, result.Questions[0].Status)
	assert.Equal(t, 2, result.Questions[0].Failures)
}

func TestRunFailedWhenNoResponses(t *testing.T) {
	st := testStore(t)
	client := &llm.MockClient{
		Errs: []error{&llm.PermanentError{Status: 401, Err: errors.New("bad key")}},
	}
	d := NewDriver(st, client, poll.Aggregator{}, Config{}, nil)

	result, err := d.Run(context.Background(), scaleRequest(testPersonas(2), 1))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Simulation.Status)
	assert.Equal(t, 0, result.Responses)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, StatusFailed, result.Questions[0].Status)
	require.Len(t, result.Questions[0].Aggregates, 1)
	assert.True(t, result.Questions[0].Aggregates[0].InsufficientData)
}

func TestRunRetriesTransientErrors(t *testing.T) {
	st := testStore(t)
	client := &llm.MockClient{
		Responses: []string{"ignored", "7"},
		Errs:      []error{&llm.TransientError{Status: 429, Err: errors.New("slow down")}, nil},
	}
	d := NewDriver(st, client, poll.Aggregator{},
		Config{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)

	result, err := d.Run(context.Background(), scaleRequest(testPersonas(1), 1))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Simulation.Status)
	assert.Equal(t, 1, result.Responses)
	assert.Equal(t, 2, client.Calls())
}

func TestRunDoesNotRetryParseFailures(t *testing.T) {
	st := testStore(t)
	client := &llm.MockClient{Responses: []string{"banana"}}
	d := NewDriver(st, client, poll.Aggregator{},
		Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)

	result, err := d.Run(context.Background(), scaleRequest(testPersonas(1), 1))
	require.NoError(t, err)

	// Unparseable text is still a collected response, not a failure.
	assert.Equal(t, StatusCompleted, result.Simulation.Status)
	assert.Equal(t, 1, result.Responses)
	assert.Equal(t, 1, client.Calls())

	require.Len(t, result.Questions, 1)
	require.Len(t, result.Questions[0].Aggregates, 1)
	assert.Equal(t, 1, result.Questions[0].Aggregates[0].Excluded)
	assert.True(t, result.Questions[0].Aggregates[0].InsufficientData)

	saved, err := st.ResponsesForSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Nil(t, saved[0].Parsed)
	assert.Equal(t, string(poll.ReasonNonNumeric), saved[0].ParseReason)
	assert.Equal(t, "banana", saved[0].RawResponse)
}

// cancelAfterFirst answers once, cancels the run context, and fails
// every later call the way an aborted HTTP request would.
type cancelAfterFirst struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	calls  int
}

func (c *cancelAfterFirst) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 1 {
		c.cancel()
		return "7", nil
	}
	return "", ctx.Err()
}

func TestRunCancellationKeepsCollectedResponses(t *testing.T) {
	st := testStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &cancelAfterFirst{cancel: cancel}
	d := NewDriver(st, client, poll.Aggregator{}, Config{MaxConcurrent: 1}, nil)

	result, err := d.Run(ctx, scaleRequest(testPersonas(5), 1))
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Simulation.Status)
	assert.GreaterOrEqual(t, result.Responses, 1)

	saved, errSaved := st.ResponsesForSimulation(context.Background(), result.Simulation.ID)
	require.NoError(t, errSaved)
	assert.Len(t, saved, result.Responses)
}

func TestRunValidation(t *testing.T) {
	st := testStore(t)
	d := NewDriver(st, llm.NewMockClient(), poll.Aggregator{}, Config{}, nil)

	req := scaleRequest(testPersonas(1), 1)
	req.Questions[0].Scale.Step = 0
	_, err := d.Run(context.Background(), req)
	assert.Error(t, err)

	req = scaleRequest(testPersonas(1), 1)
	req.Questions = nil
	_, err = d.Run(context.Background(), req)
	assert.Error(t, err)

	req = scaleRequest(nil, 1)
	_, err = d.Run(context.Background(), req)
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	client := &llm.MockClient{Responses: []string{"I'd say an 8 out of 10"}}
	p := testPersonas(1)[0]
	q := scaleQuestion()

	raw, parsed, err := Ask(context.Background(), client, p, "", q)
	require.NoError(t, err)
	assert.Equal(t, "I'd say an 8 out of 10", raw)
	require.NotNil(t, parsed)
	assert.Equal(t, 8, parsed.Value)

	client = &llm.MockClient{Responses: []string{"no idea"}}
	raw, parsed, err = Ask(context.Background(), client, p, "", q)
	require.Error(t, err)
	assert.Nil(t, parsed)
	assert.Equal(t, "no idea", raw)
}
