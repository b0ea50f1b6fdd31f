package poll

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"jefferson/internal/llm"
)

// LLMThemer delegates open-text theme extraction to an LLM summarizer.
// On any failure it falls back to exact-text grouping so aggregation
// never fails on the theming step.
type LLMThemer struct {
	Client  llm.Client
	Timeout time.Duration
	Logger  *zap.Logger
}

// Themes implements Themer.
func (t LLMThemer) Themes(texts []string) []Theme {
	if t.Client == nil || len(texts) == 0 {
		return ExactTextThemer{}.Themes(texts)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	raw, err := t.Client.Complete(ctx, themePrompt(texts))
	if err != nil {
		t.logger().Warn("theme extraction failed, falling back to exact grouping", zap.Error(err))
		return ExactTextThemer{}.Themes(texts)
	}

	themes := parseThemeLines(raw)
	if len(themes) == 0 {
		t.logger().Warn("theme extraction returned no parseable themes")
		return ExactTextThemer{}.Themes(texts)
	}
	return themes
}

func (t LLMThemer) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return zap.NewNop()
}

func themePrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Group the following poll responses into recurring themes.\n")
	b.WriteString("Reply with one theme per line in the format: theme | count\n")
	b.WriteString("Counts must sum to the number of responses.\n\nResponses:\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	return b.String()
}

// parseThemeLines reads "theme | count" lines, ignoring anything that
// doesn't match.
func parseThemeLines(raw string) []Theme {
	var themes []Theme
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		label := strings.TrimSpace(strings.TrimLeft(parts[0], " -*0123456789."))
		count, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || label == "" || count <= 0 {
			continue
		}
		themes = append(themes, Theme{Label: label, Count: count})
	}
	return themes
}
