package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jefferson/internal/config"
	"jefferson/internal/llm"
	"jefferson/internal/news"
	"jefferson/internal/store"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jefferson",
	Short: "Jefferson - synthetic voter polling over LLM personas",
	Long: `Jefferson simulates local electorate polling. It builds voter personas
from precinct demographics and survey data, grounds them in recent local
news, and polls them through an LLM to produce aggregate results.

Typical flow:
  jefferson ingest --dir ./survey-data --wave wave3
  jefferson generate-personas --precincts ./precincts.yaml
  jefferson scrape-news --county "San Francisco"
  jefferson poll --county "San Francisco" --question "Rate the mayor" --type scale`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "jefferson.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generatePersonasCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(showPersonasCmd)
	rootCmd.AddCommand(scrapeNewsCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(interactivePollCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(listSimsCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config. A missing file
// yields defaults, so every command works out of the box.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func openStore(cfg *config.Config) (store.Store, error) {
	return store.Open(cfg.Database, logger)
}

func newLLMClient(cfg *config.Config) (llm.Client, error) {
	return llm.New(cfg.LLM)
}

// newsContextForCounty renders stored recent articles into the prompt
// context block. No stored articles means an empty block.
func newsContextForCounty(cmd *cobra.Command, st store.Store, cfg *config.Config, county string) (string, error) {
	window := time.Duration(cfg.News.WindowHours) * time.Hour
	now := time.Now()
	articles, err := st.RecentArticles(cmd.Context(), county, now.Add(-window))
	if err != nil {
		return "", fmt.Errorf("loading recent articles: %w", err)
	}
	return news.NewContext(county, window, now, articles).Render(10), nil
}
