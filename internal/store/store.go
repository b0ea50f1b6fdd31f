// Package store persists personas, survey respondents, news articles,
// simulations, and poll responses behind a single interface with
// SQLite and Postgres backends.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jefferson/internal/config"
	"jefferson/internal/news"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/survey"
)

// SimulationRecord is one polling run's metadata row. A run carries one
// or more questions asked of the same persona set. Status moves through
// pending, running, and one of completed, partial, or failed.
type SimulationRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	County       string          `json:"county"`
	Questions    []poll.Question `json:"questions"`
	Status       string          `json:"status"`
	Iterations   int             `json:"iterations"`
	PersonaCount int             `json:"persona_count"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// ResponseRecord is one persona's answer to one question, kept with
// the exact prompt that produced it for auditability. Parsed is nil
// when parsing failed; ParseReason then carries the failure reason.
type ResponseRecord struct {
	ID           string               `json:"id"`
	SimulationID string               `json:"simulation_id"`
	PersonaID    string               `json:"persona_id"`
	QuestionID   string               `json:"question_id"`
	Iteration    int                  `json:"iteration"`
	Prompt       string               `json:"prompt"`
	RawResponse  string               `json:"raw_response"`
	Parsed       *poll.ParsedResponse `json:"parsed,omitempty"`
	ParseReason  string               `json:"parse_reason,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Store is the persistence surface used by the CLI and the simulation
// driver.
type Store interface {
	SavePersonas(ctx context.Context, records []persona.Record) error
	ListPersonas(ctx context.Context, county string, limit int) ([]persona.Record, error)
	ListPersonasByPrecinct(ctx context.Context, precinctID string, limit int) ([]persona.Record, error)
	CountPersonas(ctx context.Context) (map[string]int, error)

	SaveRespondents(ctx context.Context, wave string, respondents []survey.Respondent) error
	CountRespondents(ctx context.Context) (int, error)

	SaveArticles(ctx context.Context, articles []news.Article) error
	RecentArticles(ctx context.Context, county string, since time.Time) ([]news.Article, error)

	CreateSimulation(ctx context.Context, rec SimulationRecord) error
	UpdateSimulation(ctx context.Context, id, status, errMsg string, completedAt *time.Time) error
	GetSimulation(ctx context.Context, id string) (SimulationRecord, error)
	ListSimulations(ctx context.Context, limit int) ([]SimulationRecord, error)

	SaveResponses(ctx context.Context, records []ResponseRecord) error
	ResponsesForSimulation(ctx context.Context, simulationID string) ([]ResponseRecord, error)

	Close() error
}

// Open selects the backend from config. An empty driver means SQLite.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return openSQLite(cfg.Path, logger)
	case "postgres":
		return openPostgres(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
