// Package survey parses TOP survey wave data and matches respondents
// against demographic targets to seed realistic voter personas.
package survey

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Respondent is a single survey respondent with the fields relevant to
// persona generation.
type Respondent struct {
	// Identity
	DWID string

	// Demographics
	AgeGroup         string // e.g. "40-49"
	Gender           string // e.g. "Woman", "Man"
	Race             string
	Education        string
	Income           string // e.g. "$100,000 - $149,999"
	EmploymentStatus string
	MaritalStatus    string

	// Political
	PartyID  string // e.g. "Strong Democrat", "Lean Republican"
	Ideology string // e.g. "Very Liberal", "Moderate"

	// Voting history
	Vote2024    string
	Vote2022    string
	VoteHistory string // e.g. "4 / 4 votes"

	// Issue positions (FAVOR04_* columns)
	IssuePositions map[string]string

	// Ranked issues (issues_top5_* columns, most important first)
	TopIssues []string

	// News sources (SOURCES1_* columns marked "selected")
	NewsSources []string

	// Values cluster (PEORIA_VALUES_CLUSTER_2_0)
	ValuesCluster string

	// Location
	State string
	Zip   string
}

// Parser loads TOP survey waves from tab-separated wave files.
type Parser struct {
	logger      *zap.Logger
	waves       map[string][]Respondent
	respondents []Respondent
}

// NewParser returns an empty parser. Load waves with LoadDir or ParseFile.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		logger: logger,
		waves:  make(map[string][]Respondent),
	}
}

// Respondents returns all loaded respondents across waves.
func (p *Parser) Respondents() []Respondent {
	return p.respondents
}

// WaveCount returns the number of loaded waves.
func (p *Parser) WaveCount() int {
	return len(p.waves)
}

// LoadDir loads every wave directory under dir. Each wave directory is
// expected to contain a top_recodes_recent_wave_*.txt data file.
func (p *Parser) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read survey directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		waveName := entry.Name()

		matches, err := filepath.Glob(filepath.Join(dir, waveName, "top_recodes_recent_wave_*.txt"))
		if err != nil || len(matches) == 0 {
			p.logger.Warn("no data file found in wave", zap.String("wave", waveName))
			continue
		}

		respondents, err := p.ParseFile(matches[0])
		if err != nil {
			p.logger.Error("failed to parse wave", zap.String("wave", waveName), zap.Error(err))
			continue
		}

		p.waves[waveName] = respondents
		p.respondents = append(p.respondents, respondents...)
		p.logger.Info("loaded survey wave",
			zap.String("wave", waveName),
			zap.Int("respondents", len(respondents)))
	}

	p.logger.Info("survey load complete", zap.Int("total", len(p.respondents)))
	return nil
}

// ParseFile parses a single tab-separated survey data file.
func (p *Parser) ParseFile(path string) ([]Respondent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open survey file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse survey file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("survey file has no data rows")
	}

	header := rows[0]
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	// Multi-value column groups, in deterministic order.
	favorCols := prefixedColumns(header, "FAVOR04_")
	issueCols := prefixedColumns(header, "issues_top5_")
	sourceCols := prefixedColumns(header, "SOURCES1_")

	var respondents []Respondent
	for _, row := range rows[1:] {
		resp, ok := parseRow(row, cols, favorCols, issueCols, sourceCols)
		if ok {
			respondents = append(respondents, resp)
		}
	}

	return respondents, nil
}

// prefixedColumns returns (name, index) pairs for header columns with the
// given prefix, sorted by column name for stable ordering.
func prefixedColumns(header []string, prefix string) []indexedColumn {
	var out []indexedColumn
	for i, name := range header {
		name = strings.TrimSpace(name)
		if strings.HasPrefix(name, prefix) {
			out = append(out, indexedColumn{name: name, index: i})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type indexedColumn struct {
	name  string
	index int
}

func parseRow(row []string, cols map[string]int, favorCols, issueCols, sourceCols []indexedColumn) (Respondent, bool) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return cleanValue(row[i])
	}

	resp := Respondent{
		DWID:             get("DWID"),
		AgeGroup:         get("AGE_GROUPS"),
		Gender:           get("gender"),
		Race:             get("RACE"),
		Education:        get("EDUCATION"),
		Income:           get("faminc_new"),
		EmploymentStatus: get("EMPLOYMENT_STATUS"),
		MaritalStatus:    get("MARITAL_STATUS"),
		PartyID:          get("PARTY_ID_COMBINED"),
		Ideology:         get("IDEO5"),
		Vote2024:         get("VOTE_CHOICE_INDEX_2024"),
		Vote2022:         get("VOTE_CHOICE_INDEX_2022"),
		VoteHistory:      get("vote_history"),
		ValuesCluster:    get("PEORIA_VALUES_CLUSTER_2_0"),
		State:            get("STATE"),
		Zip:              get("inputzip"),
		IssuePositions:   make(map[string]string),
	}

	// Skip rows missing critical fields.
	if resp.AgeGroup == "" || resp.Gender == "" || resp.Race == "" || resp.PartyID == "" {
		return Respondent{}, false
	}

	for _, col := range favorCols {
		if col.index >= len(row) {
			continue
		}
		if v := cleanValue(row[col.index]); v != "" {
			issue := strings.Title(strings.ReplaceAll(strings.TrimPrefix(col.name, "FAVOR04_"), "_", " "))
			resp.IssuePositions[issue] = v
		}
	}

	for _, col := range issueCols {
		if col.index >= len(row) {
			continue
		}
		if v := cleanValue(row[col.index]); v != "" {
			resp.TopIssues = append(resp.TopIssues, v)
		}
	}

	for _, col := range sourceCols {
		if col.index >= len(row) {
			continue
		}
		if cleanValue(row[col.index]) == "selected" {
			source := strings.Title(strings.ReplaceAll(strings.TrimPrefix(col.name, "SOURCES1_"), "_", " "))
			resp.NewsSources = append(resp.NewsSources, source)
		}
	}

	return resp, true
}

// cleanValue trims a survey cell and maps the file's null markers to "".
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "N/A", "nan", "NaN":
		return ""
	}
	return v
}
