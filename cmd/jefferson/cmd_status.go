package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"jefferson/internal/store"
)

// statusCmd shows one stored simulation run
var statusCmd = &cobra.Command{
	Use:   "status <simulation-id>",
	Short: "Show a stored simulation run and its response breakdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.GetSimulation(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	responses, err := st.ResponsesForSimulation(cmd.Context(), rec.ID)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %q\n", rec.ID, rec.Name)
	fmt.Printf("  status:     %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Printf("  note:       %s\n", rec.Error)
	}
	fmt.Printf("  county:     %s\n", rec.County)
	for _, q := range rec.Questions {
		fmt.Printf("  question:   %q (%s)\n", q.Text, q.Type)
	}
	fmt.Printf("  iterations: %d over %d personas\n", rec.Iterations, rec.PersonaCount)
	fmt.Printf("  started:    %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	if rec.CompletedAt != nil {
		fmt.Printf("  completed:  %s\n", rec.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  responses:  %s\n", responseSummary(responses))
	return nil
}

// responseSummary rolls stored responses into one line: the parsed count
// followed by excluded counts split by parse reason.
func responseSummary(records []store.ResponseRecord) string {
	parsed := 0
	byReason := make(map[string]int)
	for _, r := range records {
		if r.Parsed != nil {
			parsed++
			continue
		}
		byReason[r.ParseReason]++
	}

	parts := []string{fmt.Sprintf("%d parsed", parsed)}
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf("%d %s", byReason[reason], reason))
	}
	return strings.Join(parts, ", ")
}
