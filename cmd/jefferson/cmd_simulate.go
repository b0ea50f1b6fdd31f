package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/sim"
	"jefferson/internal/store"
)

var (
	simCounty     string
	simPrecincts  []string
	simQuestions  []string
	simName       string
	simIterations int
	simLimit      int
	simSkipNews   bool
	listSimsLimit int
)

// simulateCmd runs a multi-question, multi-iteration polling simulation
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a multi-question polling simulation",
	Long: `Polls personas over several independent iterations, asking every
question of every persona, and prints per-question aggregates. Repeat
--question to ask more than one question and --precinct to poll specific
precincts instead of the whole county. Iteration spread gives a rough
stability read on the result.

Examples:
  jefferson simulate --name "mayor-approval" --county "San Francisco" \
    -q "Rate the mayor's performance" --type scale --iterations 3
  jefferson simulate --county "San Francisco" \
    --precinct SF-P01-Mission --precinct SF-P07-Sunset \
    -q "Rate the mayor's performance" -q "Rate the transit system" --type scale`,
	RunE: runSimulate,
}

// listSimsCmd lists stored simulation runs
var listSimsCmd = &cobra.Command{
	Use:   "list-sims",
	Short: "List stored simulation runs",
	RunE:  runListSims,
}

func init() {
	simulateCmd.Flags().StringArrayVarP(&simQuestions, "question", "q", nil, "Question text (repeatable)")
	simulateCmd.Flags().StringVarP(&questionType, "type", "t", "open", "Question type applied to every question: open, choice, or scale")
	simulateCmd.Flags().StringSliceVar(&questionOptions, "options", nil, "Choice options (comma separated)")
	simulateCmd.Flags().IntVar(&scaleMin, "min", 1, "Scale minimum")
	simulateCmd.Flags().IntVar(&scaleMax, "max", 10, "Scale maximum")
	simulateCmd.Flags().IntVar(&scaleStep, "step", 1, "Scale step")
	simulateCmd.Flags().StringVar(&simName, "name", "", "Simulation name (defaults to the first question)")
	simulateCmd.Flags().StringVar(&simCounty, "county", "", "County whose personas to poll (required)")
	simulateCmd.Flags().StringArrayVar(&simPrecincts, "precinct", nil, "Poll only these precincts' personas (repeatable)")
	simulateCmd.Flags().IntVar(&simIterations, "iterations", 0, "Iterations to run (defaults to config)")
	simulateCmd.Flags().IntVar(&simLimit, "limit", 100, "Maximum personas per precinct")
	simulateCmd.Flags().BoolVar(&simSkipNews, "no-news", false, "Skip the news context block")
	_ = simulateCmd.MarkFlagRequired("question")
	_ = simulateCmd.MarkFlagRequired("county")

	listSimsCmd.Flags().IntVar(&listSimsLimit, "limit", 20, "Maximum runs to list")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	questions := make([]poll.Question, 0, len(simQuestions))
	for _, text := range simQuestions {
		q, err := questionFromFlags(text)
		if err != nil {
			return err
		}
		questions = append(questions, q)
	}

	personas, err := simulatePersonas(cmd, st)
	if err != nil {
		return err
	}

	newsContext := ""
	if !simSkipNews {
		newsContext, err = newsContextForCounty(cmd, st, cfg, simCounty)
		if err != nil {
			return err
		}
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	iterations := simIterations
	if iterations <= 0 {
		iterations = cfg.Simulation.Iterations
	}
	name := simName
	if name == "" {
		name = simQuestions[0]
	}

	driver := sim.NewDriver(st, client, pollAggregator(client, cfg), sim.Config{
		MaxConcurrent: cfg.Simulation.MaxConcurrent,
		MaxRetries:    cfg.Simulation.MaxRetries,
		RetryBackoff:  cfg.GetRetryBackoff(),
	}, logger)

	result, err := driver.Run(cmd.Context(), sim.Request{
		Name:        name,
		County:      simCounty,
		Questions:   questions,
		Personas:    personas,
		NewsContext: newsContext,
		Iterations:  iterations,
	})
	if err != nil {
		return err
	}

	printRunResult(result)
	return nil
}

// simulatePersonas loads the run's persona set: the union of the named
// precincts, or the whole county when no precinct is given.
func simulatePersonas(cmd *cobra.Command, st store.Store) ([]persona.Record, error) {
	if len(simPrecincts) == 0 {
		personas, err := st.ListPersonas(cmd.Context(), simCounty, simLimit)
		if err != nil {
			return nil, err
		}
		if len(personas) == 0 {
			return nil, fmt.Errorf("no personas stored for county %q; run generate-personas first", simCounty)
		}
		return personas, nil
	}

	var personas []persona.Record
	seen := make(map[string]bool)
	for _, precinct := range simPrecincts {
		batch, err := st.ListPersonasByPrecinct(cmd.Context(), precinct, simLimit)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("no personas stored for precinct %q; run generate-personas first", precinct)
		}
		for _, p := range batch {
			if !seen[p.ID] {
				seen[p.ID] = true
				personas = append(personas, p)
			}
		}
	}
	return personas, nil
}

func runListSims(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListSimulations(cmd.Context(), listSimsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No simulations recorded.")
		return nil
	}

	for _, r := range runs {
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  %-9s  %-15s  %d question(s), %dx%d personas  %s  %q\n",
			r.ID[:8], r.Status, r.County, len(r.Questions), r.Iterations, r.PersonaCount, completed, r.Name)
		if r.Error != "" {
			fmt.Printf("          %s\n", r.Error)
		}
	}
	return nil
}
