package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"jefferson/internal/news"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/survey"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// sqlStore serves both backends. Queries are written with ? placeholders
// and rebound to $n for Postgres. Timestamps are stored as RFC3339 text
// so both drivers scan them identically.
type sqlStore struct {
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
}

func openSQLite(path string, logger *zap.Logger) (*sqlStore, error) {
	if path == "" {
		path = ".jefferson/jefferson.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("setting busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("setting journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return nil, fmt.Errorf("setting synchronous: %w", err)
	}

	s := &sqlStore{db: db, logger: loggerOrNop(logger)}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("sqlite store ready", zap.String("path", path))
	return s, nil
}

func openPostgres(dsn string, logger *zap.Logger) (*sqlStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres driver requires a DSN")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &sqlStore{db: db, postgres: true, logger: loggerOrNop(logger)}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug("postgres store ready")
	return s, nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (s *sqlStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS personas (
			id TEXT PRIMARY KEY,
			county TEXT NOT NULL,
			precinct_id TEXT NOT NULL,
			survey_derived BOOLEAN NOT NULL,
			data TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_personas_county ON personas(county)`,
		`CREATE TABLE IF NOT EXISTS survey_respondents (
			wave TEXT NOT NULL,
			dwid TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (wave, dwid)
		)`,
		`CREATE TABLE IF NOT EXISTS news_articles (
			id TEXT PRIMARY KEY,
			county TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			summary TEXT,
			published_at TEXT,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_county ON news_articles(county)`,
		`CREATE TABLE IF NOT EXISTS simulations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			county TEXT NOT NULL,
			questions TEXT NOT NULL,
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			persona_count INTEGER NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS poll_responses (
			id TEXT PRIMARY KEY,
			simulation_id TEXT NOT NULL,
			persona_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			raw_response TEXT NOT NULL,
			parsed TEXT,
			parse_reason TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_simulation ON poll_responses(simulation_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for Postgres.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *sqlStore) SavePersonas(ctx context.Context, records []persona.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO personas (id, county, precinct_id, survey_derived, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding persona %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.County, rec.PrecinctID,
			rec.SurveyDerived, string(data), formatTime(rec.CreatedAt)); err != nil {
			return fmt.Errorf("saving persona %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ListPersonas(ctx context.Context, county string, limit int) ([]persona.Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := `SELECT data FROM personas WHERE county = ? ORDER BY created_at LIMIT ?`
	args := []any{county, limit}
	if county == "" {
		q = `SELECT data FROM personas ORDER BY created_at LIMIT ?`
		args = []any{limit}
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPersonaRows(rows)
}

func (s *sqlStore) ListPersonasByPrecinct(ctx context.Context, precinctID string, limit int) ([]persona.Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.query(ctx,
		`SELECT data FROM personas WHERE precinct_id = ? ORDER BY created_at LIMIT ?`,
		precinctID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPersonaRows(rows)
}

func scanPersonaRows(rows *sql.Rows) ([]persona.Record, error) {
	var records []persona.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec persona.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decoding persona: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *sqlStore) CountPersonas(ctx context.Context) (map[string]int, error) {
	rows, err := s.query(ctx, `SELECT county, COUNT(*) FROM personas GROUP BY county`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var county string
		var n int
		if err := rows.Scan(&county, &n); err != nil {
			return nil, err
		}
		counts[county] = n
	}
	return counts, rows.Err()
}

func (s *sqlStore) SaveRespondents(ctx context.Context, wave string, respondents []survey.Respondent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO survey_respondents (wave, dwid, data) VALUES (?, ?, ?)
		 ON CONFLICT (wave, dwid) DO UPDATE SET data = excluded.data`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range respondents {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding respondent %s: %w", r.DWID, err)
		}
		if _, err := stmt.ExecContext(ctx, wave, r.DWID, string(data)); err != nil {
			return fmt.Errorf("saving respondent %s: %w", r.DWID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) CountRespondents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey_respondents`).Scan(&n)
	return n, err
}

func (s *sqlStore) SaveArticles(ctx context.Context, articles []news.Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO news_articles (id, county, source, title, url, summary, published_at, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range articles {
		published := ""
		if !a.PublishedAt.IsZero() {
			published = formatTime(a.PublishedAt)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.County, a.Source, a.Title, a.URL,
			a.Summary, published, formatTime(a.FetchedAt)); err != nil {
			return fmt.Errorf("saving article %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) RecentArticles(ctx context.Context, county string, since time.Time) ([]news.Article, error) {
	rows, err := s.query(ctx,
		`SELECT id, county, source, title, url, summary, published_at, fetched_at
		 FROM news_articles WHERE county = ? AND fetched_at >= ?
		 ORDER BY fetched_at DESC`,
		county, formatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []news.Article
	for rows.Next() {
		var a news.Article
		var summary, published sql.NullString
		var fetched string
		if err := rows.Scan(&a.ID, &a.County, &a.Source, &a.Title, &a.URL,
			&summary, &published, &fetched); err != nil {
			return nil, err
		}
		a.Summary = summary.String
		a.PublishedAt = parseTime(published.String)
		a.FetchedAt = parseTime(fetched)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *sqlStore) CreateSimulation(ctx context.Context, rec SimulationRecord) error {
	questions, err := json.Marshal(rec.Questions)
	if err != nil {
		return fmt.Errorf("encoding questions: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO simulations (id, name, county, questions, status, iterations, persona_count, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.County, string(questions), rec.Status,
		rec.Iterations, rec.PersonaCount, rec.Error, formatTime(rec.StartedAt), "")
	return err
}

func (s *sqlStore) UpdateSimulation(ctx context.Context, id, status, errMsg string, completedAt *time.Time) error {
	completed := ""
	if completedAt != nil {
		completed = formatTime(*completedAt)
	}
	res, err := s.exec(ctx,
		`UPDATE simulations SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, completed, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) GetSimulation(ctx context.Context, id string) (SimulationRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, county, questions, status, iterations, persona_count, error, started_at, completed_at
		 FROM simulations WHERE id = ?`), id)
	rec, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SimulationRecord{}, fmt.Errorf("simulation %s: %w", id, ErrNotFound)
	}
	return rec, err
}

func (s *sqlStore) ListSimulations(ctx context.Context, limit int) ([]SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT id, name, county, questions, status, iterations, persona_count, error, started_at, completed_at
		 FROM simulations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SimulationRecord
	for rows.Next() {
		rec, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row rowScanner) (SimulationRecord, error) {
	var rec SimulationRecord
	var questions, started string
	var errMsg, completed sql.NullString
	if err := row.Scan(&rec.ID, &rec.Name, &rec.County, &questions, &rec.Status,
		&rec.Iterations, &rec.PersonaCount, &errMsg, &started, &completed); err != nil {
		return SimulationRecord{}, err
	}
	if err := json.Unmarshal([]byte(questions), &rec.Questions); err != nil {
		return SimulationRecord{}, fmt.Errorf("decoding questions: %w", err)
	}
	rec.Error = errMsg.String
	rec.StartedAt = parseTime(started)
	if t := parseTime(completed.String); !t.IsZero() {
		rec.CompletedAt = &t
	}
	return rec, nil
}

func (s *sqlStore) SaveResponses(ctx context.Context, records []ResponseRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO poll_responses (id, simulation_id, persona_id, question_id, iteration, prompt, raw_response, parsed, parse_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		parsed := ""
		if r.Parsed != nil {
			data, err := json.Marshal(r.Parsed)
			if err != nil {
				return fmt.Errorf("encoding parsed response: %w", err)
			}
			parsed = string(data)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.SimulationID, r.PersonaID, r.QuestionID,
			r.Iteration, r.Prompt, r.RawResponse, parsed, r.ParseReason, formatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("saving response %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ResponsesForSimulation(ctx context.Context, simulationID string) ([]ResponseRecord, error) {
	rows, err := s.query(ctx,
		`SELECT id, simulation_id, persona_id, question_id, iteration, prompt, raw_response, parsed, parse_reason, created_at
		 FROM poll_responses WHERE simulation_id = ? ORDER BY iteration, created_at`,
		simulationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ResponseRecord
	for rows.Next() {
		var r ResponseRecord
		var parsed, reason sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.SimulationID, &r.PersonaID, &r.QuestionID,
			&r.Iteration, &r.Prompt, &r.RawResponse, &parsed, &reason, &created); err != nil {
			return nil, err
		}
		if parsed.String != "" {
			var p poll.ParsedResponse
			if err := json.Unmarshal([]byte(parsed.String), &p); err != nil {
				return nil, fmt.Errorf("decoding parsed response: %w", err)
			}
			r.Parsed = &p
		}
		r.ParseReason = reason.String
		r.CreatedAt = parseTime(created)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
