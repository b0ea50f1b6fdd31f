package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jefferson/internal/survey"
)

var (
	ingestDir  string
	ingestWave string
)

// ingestCmd loads TOP survey exports into the store
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest survey wave exports into the database",
	Long: `Parses tab-separated survey recode files and stores the respondents.
Respondents feed persona generation: generated voters inherit issue
positions and news diets from demographically similar respondents.

Example:
  jefferson ingest --dir ./survey-data/wave3 --wave wave3`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Directory containing wave export files (required)")
	ingestCmd.Flags().StringVar(&ingestWave, "wave", "", "Wave label for the ingested files (required)")
	_ = ingestCmd.MarkFlagRequired("dir")
	_ = ingestCmd.MarkFlagRequired("wave")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	parser := survey.NewParser(logger)
	if err := parser.LoadDir(ingestDir); err != nil {
		return fmt.Errorf("loading survey files: %w", err)
	}

	respondents := parser.Respondents()
	if len(respondents) == 0 {
		return fmt.Errorf("no usable respondents found in %s", ingestDir)
	}

	if err := st.SaveRespondents(cmd.Context(), ingestWave, respondents); err != nil {
		return fmt.Errorf("saving respondents: %w", err)
	}

	logger.Info("survey ingest complete",
		zap.String("wave", ingestWave),
		zap.Int("respondents", len(respondents)))
	fmt.Printf("Ingested %d respondents from %s (wave %s)\n", len(respondents), ingestDir, ingestWave)
	return nil
}
