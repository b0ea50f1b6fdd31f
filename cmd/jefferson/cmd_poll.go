package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jefferson/internal/config"
	"jefferson/internal/llm"
	"jefferson/internal/persona"
	"jefferson/internal/poll"
	"jefferson/internal/sim"
)

var (
	// Question flags, shared by poll and simulate
	questionText    string
	questionType    string
	questionOptions []string
	scaleMin        int
	scaleMax        int
	scaleStep       int

	pollCounty   string
	pollPrecinct string
	pollLimit    int
	pollSkipNews bool

	interactiveCounty string
)

// pollCmd runs a one-shot poll across stored personas
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll stored personas with a single question",
	Long: `Builds a prompt per persona, queries the LLM concurrently, parses the
responses, and prints the aggregate. The run and every response are
persisted for later inspection.

Examples:
  jefferson poll --county "San Francisco" --question "Rate the mayor's performance" --type scale --min 1 --max 10
  jefferson poll --county "Miami-Dade" --question "Do you support the transit measure?" --type choice --options Yes,No,Unsure`,
	RunE: runPoll,
}

// interactivePollCmd converses with a single persona
var interactivePollCmd = &cobra.Command{
	Use:   "interactive-poll",
	Short: "Ask ad-hoc open questions to one stored persona",
	Long: `Picks the first stored persona for the county and reads questions from
stdin until EOF or "quit". Answers are shown raw and are not persisted.`,
	RunE: runInteractivePoll,
}

func registerQuestionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&questionText, "question", "q", "", "Question text (required)")
	cmd.Flags().StringVarP(&questionType, "type", "t", "open", "Question type: open, choice, or scale")
	cmd.Flags().StringSliceVar(&questionOptions, "options", nil, "Choice options (comma separated)")
	cmd.Flags().IntVar(&scaleMin, "min", 1, "Scale minimum")
	cmd.Flags().IntVar(&scaleMax, "max", 10, "Scale maximum")
	cmd.Flags().IntVar(&scaleStep, "step", 1, "Scale step")
	_ = cmd.MarkFlagRequired("question")
}

func init() {
	registerQuestionFlags(pollCmd)
	pollCmd.Flags().StringVar(&pollCounty, "county", "", "County whose personas to poll (required)")
	pollCmd.Flags().StringVar(&pollPrecinct, "precinct", "", "Poll only this precinct's personas")
	pollCmd.Flags().IntVar(&pollLimit, "limit", 100, "Maximum personas to poll")
	pollCmd.Flags().BoolVar(&pollSkipNews, "no-news", false, "Skip the news context block")
	_ = pollCmd.MarkFlagRequired("county")

	interactivePollCmd.Flags().StringVar(&interactiveCounty, "county", "", "County to pick a persona from (required)")
	_ = interactivePollCmd.MarkFlagRequired("county")
}

// questionFromFlags assembles a poll.Question for one question text from
// the shared type flags.
func questionFromFlags(text string) (poll.Question, error) {
	q := poll.NewQuestion(text, poll.QuestionType(questionType))
	switch q.Type {
	case poll.TypeChoice:
		q.Options = questionOptions
	case poll.TypeScale:
		q.Scale = poll.ScaleRange{Min: scaleMin, Max: scaleMax, Step: scaleStep}
	}
	if err := q.Validate(); err != nil {
		return poll.Question{}, err
	}
	return q, nil
}

func buildQuestion() (poll.Question, error) {
	return questionFromFlags(questionText)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	q, err := buildQuestion()
	if err != nil {
		return err
	}

	var personas []persona.Record
	if pollPrecinct != "" {
		personas, err = st.ListPersonasByPrecinct(cmd.Context(), pollPrecinct, pollLimit)
	} else {
		personas, err = st.ListPersonas(cmd.Context(), pollCounty, pollLimit)
	}
	if err != nil {
		return err
	}
	if len(personas) == 0 {
		if pollPrecinct != "" {
			return fmt.Errorf("no personas stored for precinct %q; run generate-personas first", pollPrecinct)
		}
		return fmt.Errorf("no personas stored for county %q; run generate-personas first", pollCounty)
	}

	newsContext := ""
	if !pollSkipNews {
		newsContext, err = newsContextForCounty(cmd, st, cfg, pollCounty)
		if err != nil {
			return err
		}
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	driver := sim.NewDriver(st, client, pollAggregator(client, cfg), sim.Config{
		MaxConcurrent: cfg.Simulation.MaxConcurrent,
		MaxRetries:    cfg.Simulation.MaxRetries,
		RetryBackoff:  cfg.GetRetryBackoff(),
	}, logger)

	result, err := driver.Run(cmd.Context(), sim.Request{
		Name:        questionText,
		County:      pollCounty,
		Questions:   []poll.Question{q},
		Personas:    personas,
		NewsContext: newsContext,
		Iterations:  1,
	})
	if err != nil {
		return err
	}

	printRunResult(result)
	return nil
}

// pollAggregator themes open answers through the LLM, falling back to
// exact-text grouping when theming fails.
func pollAggregator(client llm.Client, cfg *config.Config) poll.Aggregator {
	return poll.Aggregator{Themer: poll.LLMThemer{
		Client:  client,
		Timeout: cfg.GetLLMTimeout(),
		Logger:  logger,
	}}
}

func runInteractivePoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	personas, err := st.ListPersonas(cmd.Context(), interactiveCounty, 1)
	if err != nil {
		return err
	}
	if len(personas) == 0 {
		return fmt.Errorf("no personas stored for county %q", interactiveCounty)
	}
	p := personas[0]

	newsContext, err := newsContextForCounty(cmd, st, cfg, interactiveCounty)
	if err != nil {
		return err
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Talking to a %d-year-old %s %s voter from %s (%s, %s).\n",
		p.Age, p.Gender, p.Race, interactiveCounty, p.PartyID, p.Ideology)
	fmt.Println(`Type a question and press enter. "quit" exits.`)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		q := poll.NewQuestion(line, poll.TypeOpen)
		raw, _, err := sim.Ask(cmd.Context(), client, p, newsContext, q)
		if err != nil && raw == "" {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(raw)
	}
	return scanner.Err()
}

// printRunResult prints a finished run's status and per-question
// aggregates.
func printRunResult(result sim.Result) {
	rec := result.Simulation
	fmt.Printf("Run %s finished: %s (%d responses, %d failures)\n",
		rec.ID[:8], rec.Status, result.Responses, result.Failures)
	if rec.Error != "" {
		fmt.Println("  note:", rec.Error)
	}

	for _, qr := range result.Questions {
		if len(result.Questions) > 1 {
			fmt.Printf("\n%q: %s (%d responses, %d failures)\n",
				qr.Question.Text, qr.Status, qr.Responses, qr.Failures)
		}
		for i, agg := range qr.Aggregates {
			if len(qr.Aggregates) > 1 {
				fmt.Printf("\nIteration %d:\n", i+1)
			}
			printAggregate(agg)
		}
	}
}

func printAggregate(agg poll.AggregateResult) {
	fmt.Printf("  attempted=%d parsed=%d excluded=%d\n", agg.Attempted, agg.Parsed, agg.Excluded)
	if agg.InsufficientData {
		fmt.Println("  insufficient data")
		return
	}
	switch {
	case agg.Scale != nil:
		fmt.Printf("  mean=%.2f stddev=%.2f\n", agg.Scale.Mean, agg.Scale.StdDev)
		for _, b := range agg.Scale.Histogram {
			if b.Count > 0 {
				fmt.Printf("  [%d-%d) %s (%d)\n", b.Low, b.High, strings.Repeat("#", b.Count), b.Count)
			}
		}
	case len(agg.Choices) > 0:
		for _, c := range agg.Choices {
			fmt.Printf("  %-20s %5.1f%% (%d)\n", c.Label, c.Percent, c.Count)
		}
	default:
		for _, t := range agg.Themes {
			fmt.Printf("  %-30s %d\n", t.Label, t.Count)
		}
	}
}
