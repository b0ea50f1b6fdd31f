// Package sim drives polling runs: it fans a question set out across
// personas with bounded concurrency, collects and parses responses, and
// records run status and per-question aggregates.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jefferson/internal/llm"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/store"
)

// Run statuses, applied per question and to the run as a whole. A
// question is failed only when it produced zero responses; the run is
// failed only when every question did. Any partial success lands in
// partial.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Config bounds a run. It is copied into the driver at construction and
// never mutated afterwards.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	RetryBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 50
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Request describes one polling run. Every persona answers every
// question on every iteration.
type Request struct {
	Name        string
	County      string
	Questions   []poll.Question
	Personas    []persona.Record
	NewsContext string
	Iterations  int
}

// QuestionResult rolls one question's outcome up across iterations.
type QuestionResult struct {
	Question   poll.Question
	Status     string
	Aggregates []poll.AggregateResult
	Responses  int
	Failures   int
}

// Result is a completed run with per-question rollups.
type Result struct {
	Simulation store.SimulationRecord
	Questions  []QuestionResult
	Responses  int
	Failures   int
}

// Driver executes polling runs against an LLM client and persists the
// outcome.
type Driver struct {
	store      store.Store
	client     llm.Client
	aggregator poll.Aggregator
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewDriver builds a driver. A nil aggregator themer falls back to
// exact-text grouping.
func NewDriver(st store.Store, client llm.Client, aggregator poll.Aggregator, cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		store:      st,
		client:     client,
		aggregator: aggregator,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes the request end to end. Cancelling ctx stops dispatching
// new completions; responses already collected are still persisted and
// aggregated, and the run lands in partial or failed.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Questions) == 0 {
		return Result{}, errors.New("run requires at least one question")
	}
	for _, q := range req.Questions {
		if err := q.Validate(); err != nil {
			return Result{}, err
		}
	}
	if len(req.Personas) == 0 {
		return Result{}, errors.New("run requires at least one persona")
	}
	iterations := req.Iterations
	if iterations <= 0 {
		iterations = 1
	}

	rec := store.SimulationRecord{
		ID:           uuid.NewString(),
		Name:         req.Name,
		County:       req.County,
		Questions:    req.Questions,
		Status:       StatusPending,
		Iterations:   iterations,
		PersonaCount: len(req.Personas),
		StartedAt:    d.now().UTC(),
	}
	if err := d.store.CreateSimulation(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("creating simulation: %w", err)
	}
	if err := d.store.UpdateSimulation(ctx, rec.ID, StatusRunning, "", nil); err != nil {
		return Result{}, fmt.Errorf("marking simulation running: %w", err)
	}
	rec.Status = StatusRunning

	d.logger.Info("simulation started",
		zap.String("id", rec.ID),
		zap.Int("questions", len(req.Questions)),
		zap.Int("personas", len(req.Personas)),
		zap.Int("iterations", iterations))

	var (
		mu        sync.Mutex
		records   []store.ResponseRecord
		parsedBy  = make([][][]poll.ParsedResponse, len(req.Questions))
		excluded  = make([][]int, len(req.Questions))
		responses = make([]int, len(req.Questions))
		failedBy  = make([]int, len(req.Questions))
		failures  int
		slots     = make(chan struct{}, d.cfg.MaxConcurrent)
		wg        sync.WaitGroup
		cancelled bool
	)
	for qi := range req.Questions {
		parsedBy[qi] = make([][]poll.ParsedResponse, iterations)
		excluded[qi] = make([]int, iterations)
	}

dispatch:
	for iter := 0; iter < iterations; iter++ {
		for qi, q := range req.Questions {
			for _, p := range req.Personas {
				select {
				case <-ctx.Done():
					cancelled = true
					break dispatch
				case slots <- struct{}{}:
				}

				wg.Add(1)
				go func(iter, qi int, q poll.Question, p persona.Record) {
					defer wg.Done()
					defer func() { <-slots }()

					response, err := d.pollPersona(ctx, p, req.NewsContext, q, rec.ID, iter)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failures++
						failedBy[qi]++
						d.logger.Warn("persona poll failed",
							zap.String("persona", p.ID),
							zap.String("question", q.ID),
							zap.Int("iteration", iter),
							zap.Error(err))
						return
					}
					records = append(records, response)
					responses[qi]++
					if response.Parsed != nil {
						parsedBy[qi][iter] = append(parsedBy[qi][iter], *response.Parsed)
					} else {
						excluded[qi][iter]++
					}
				}(iter, qi, q, p)
			}
		}
	}
	wg.Wait()

	// Persist with a fresh context so cancellation doesn't drop what was
	// already collected.
	saveCtx := ctx
	if cancelled {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
	}

	if len(records) > 0 {
		if err := d.store.SaveResponses(saveCtx, records); err != nil {
			return Result{}, fmt.Errorf("saving responses: %w", err)
		}
	}

	status := StatusCompleted
	errMsg := ""
	expected := iterations * len(req.Personas) * len(req.Questions)
	switch {
	case len(records) == 0:
		status = StatusFailed
		errMsg = "no responses collected"
		if cancelled {
			errMsg = "cancelled before any responses were collected"
		}
	case failures > 0 || len(records) < expected:
		status = StatusPartial
		errMsg = fmt.Sprintf("%d of %d completions failed or were skipped", expected-len(records), expected)
	}

	completed := d.now().UTC()
	if err := d.store.UpdateSimulation(saveCtx, rec.ID, status, errMsg, &completed); err != nil {
		return Result{}, fmt.Errorf("finalizing simulation: %w", err)
	}
	rec.Status = status
	rec.Error = errMsg
	rec.CompletedAt = &completed

	perQuestion := iterations * len(req.Personas)
	questions := make([]QuestionResult, len(req.Questions))
	for qi, q := range req.Questions {
		qr := QuestionResult{
			Question:   q,
			Responses:  responses[qi],
			Failures:   failedBy[qi],
			Aggregates: make([]poll.AggregateResult, iterations),
		}
		for i := 0; i < iterations; i++ {
			qr.Aggregates[i] = d.aggregator.Aggregate(q, parsedBy[qi][i], excluded[qi][i])
		}
		switch {
		case qr.Responses == 0:
			qr.Status = StatusFailed
		case qr.Failures > 0 || qr.Responses < perQuestion:
			qr.Status = StatusPartial
		default:
			qr.Status = StatusCompleted
		}
		questions[qi] = qr
	}

	d.logger.Info("simulation finished",
		zap.String("id", rec.ID),
		zap.String("status", status),
		zap.Int("responses", len(records)),
		zap.Int("failures", failures))

	return Result{
		Simulation: rec,
		Questions:  questions,
		Responses:  len(records),
		Failures:   failures,
	}, nil
}

// pollPersona runs one persona through prompt, completion, and parse.
// A parse failure still yields a record; only completion failures
// return an error.
func (d *Driver) pollPersona(ctx context.Context, p persona.Record, newsContext string, q poll.Question, simulationID string, iteration int) (store.ResponseRecord, error) {
	prompt, err := poll.BuildPrompt(p, newsContext, q)
	if err != nil {
		return store.ResponseRecord{}, fmt.Errorf("building prompt: %w", err)
	}

	raw, err := d.completeWithRetry(ctx, prompt)
	if err != nil {
		return store.ResponseRecord{}, err
	}

	rec := store.ResponseRecord{
		ID:           uuid.NewString(),
		SimulationID: simulationID,
		PersonaID:    p.ID,
		QuestionID:   q.ID,
		Iteration:    iteration,
		Prompt:       prompt,
		RawResponse:  raw,
		CreatedAt:    d.now().UTC(),
	}

	parsed, err := poll.ParseResponse(raw, q)
	if err != nil {
		var pe *poll.ParseError
		if errors.As(err, &pe) {
			rec.ParseReason = string(pe.Reason)
			return rec, nil
		}
		return store.ResponseRecord{}, err
	}
	rec.Parsed = &parsed
	return rec, nil
}

// completeWithRetry retries transient failures with doubling backoff.
// Permanent failures and context cancellation return immediately.
func (d *Driver) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * d.cfg.RetryBackoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := d.client.Complete(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !llm.IsTransient(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted %d retries: %w", d.cfg.MaxRetries, lastErr)
}

// Ask runs a single persona through one question without persistence.
// The interactive poll loop uses it directly.
func Ask(ctx context.Context, client llm.Client, p persona.Record, newsContext string, q poll.Question) (string, *poll.ParsedResponse, error) {
	prompt, err := poll.BuildPrompt(p, newsContext, q)
	if err != nil {
		return "", nil, err
	}
	raw, err := client.Complete(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	parsed, err := poll.ParseResponse(raw, q)
	if err != nil {
		return raw, nil, err
	}
	return raw, &parsed, nil
}
