package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jefferson/internal/persona"
	"jefferson/internal/survey"
)

var (
	precinctsPath  string
	perPrecinct    int
	personaSeed    int64
	surveyDir      string
	showCounty     string
	showLimit      int
	showJSONOutput bool
)

// generatePersonasCmd builds synthetic voters from precinct demographics
var generatePersonasCmd = &cobra.Command{
	Use:   "generate-personas",
	Short: "Generate synthetic voter personas from precinct demographics",
	Long: `Samples voters from each precinct's demographic distributions. When
survey data is available, generated voters inherit issue positions and
news sources from matching respondents; otherwise ideology-generic
defaults are used.

Example:
  jefferson generate-personas --precincts ./precincts.yaml --per-precinct 50`,
	RunE: runGeneratePersonas,
}

// countCmd reports persona counts by county
var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored personas by county",
	RunE:  runCount,
}

// showPersonasCmd prints stored personas
var showPersonasCmd = &cobra.Command{
	Use:   "show-personas",
	Short: "Show stored personas",
	RunE:  runShowPersonas,
}

func init() {
	generatePersonasCmd.Flags().StringVar(&precinctsPath, "precincts", "", "Precinct config YAML (required)")
	generatePersonasCmd.Flags().IntVar(&perPrecinct, "per-precinct", 50, "Voters to generate per precinct")
	generatePersonasCmd.Flags().Int64Var(&personaSeed, "seed", 0, "Random seed (0 uses a time-based seed)")
	generatePersonasCmd.Flags().StringVar(&surveyDir, "survey-dir", "", "Survey wave directory to match against")
	_ = generatePersonasCmd.MarkFlagRequired("precincts")

	showPersonasCmd.Flags().StringVar(&showCounty, "county", "", "Filter by county")
	showPersonasCmd.Flags().IntVar(&showLimit, "limit", 10, "Maximum personas to show")
	showPersonasCmd.Flags().BoolVar(&showJSONOutput, "json", false, "Emit full persona records as JSON")
}

func runGeneratePersonas(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := persona.LoadRegistry(precinctsPath)
	if err != nil {
		return fmt.Errorf("loading precincts: %w", err)
	}

	var surveys *survey.Parser
	if surveyDir != "" {
		surveys = survey.NewParser(logger)
		if err := surveys.LoadDir(surveyDir); err != nil {
			return fmt.Errorf("loading survey files: %w", err)
		}
	}

	seed := personaSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gen := persona.NewGenerator(registry, surveys, seed, logger)
	byPrecinct := gen.GenerateAll(perPrecinct)

	var total, derived int
	for precinctID, records := range byPrecinct {
		for _, rec := range records {
			if err := rec.Validate(registry); err != nil {
				return fmt.Errorf("generated invalid persona in %s: %w", precinctID, err)
			}
			if rec.SurveyDerived {
				derived++
			}
		}
		if err := st.SavePersonas(cmd.Context(), records); err != nil {
			return fmt.Errorf("saving personas for %s: %w", precinctID, err)
		}
		total += len(records)
	}

	logger.Info("persona generation complete",
		zap.Int("precincts", len(byPrecinct)),
		zap.Int("personas", total),
		zap.Int("survey_derived", derived))
	fmt.Printf("Generated %d personas across %d precincts (%d survey-derived)\n",
		total, len(byPrecinct), derived)
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.CountPersonas(cmd.Context())
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("No personas stored. Run generate-personas first.")
		return nil
	}

	counties := make([]string, 0, len(counts))
	total := 0
	for county, n := range counts {
		counties = append(counties, county)
		total += n
	}
	sort.Strings(counties)
	for _, county := range counties {
		fmt.Printf("%-20s %d\n", county, counts[county])
	}
	fmt.Printf("%-20s %d\n", "total", total)
	return nil
}

func runShowPersonas(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListPersonas(cmd.Context(), showCounty, showLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No personas found.")
		return nil
	}

	if showJSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	for _, rec := range records {
		issues := "none"
		if len(rec.TopIssues) > 0 {
			issues = fmt.Sprintf("%v", rec.TopIssues)
		}
		fmt.Printf("%s  %d %s %s  %s / %s  precinct=%s  issues=%s\n",
			rec.ID[:8], rec.Age, rec.Gender, rec.Race,
			rec.PartyID, rec.Ideology, rec.PrecinctID, issues)
	}
	return nil
}
