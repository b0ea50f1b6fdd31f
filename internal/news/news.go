// Package news gathers recent local coverage and renders it into the
// context block injected into voter prompts.
package news

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Article is one scraped news item.
type Article struct {
	ID          string    `json:"id"`
	County      string    `json:"county"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Context is the recency-bounded article set for one county. Articles
// outside the window are dropped at construction, so a Context never
// carries stale items.
type Context struct {
	County   string
	Window   time.Duration
	Articles []Article
}

// NewContext filters articles to those published within window of now
// and orders them newest first. Articles with a zero PublishedAt fall
// back to FetchedAt for the recency check.
func NewContext(county string, window time.Duration, now time.Time, articles []Article) Context {
	cutoff := now.Add(-window)
	kept := make([]Article, 0, len(articles))
	for _, a := range articles {
		ts := a.PublishedAt
		if ts.IsZero() {
			ts = a.FetchedAt
		}
		if ts.After(cutoff) {
			kept = append(kept, a)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return timestamp(kept[i]).After(timestamp(kept[j]))
	})
	return Context{County: county, Window: window, Articles: kept}
}

func timestamp(a Article) time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.FetchedAt
}

// Render formats up to max articles as a headline list for prompt
// injection. An empty context renders to the empty string so the
// prompt builder can omit the news block entirely.
func (c Context) Render(max int) string {
	if len(c.Articles) == 0 {
		return ""
	}
	if max <= 0 || max > len(c.Articles) {
		max = len(c.Articles)
	}

	var b strings.Builder
	for _, a := range c.Articles[:max] {
		fmt.Fprintf(&b, "- [%s] %s", a.Source, a.Title)
		if s := strings.TrimSpace(a.Summary); s != "" {
			fmt.Fprintf(&b, ": %s", truncate(s, 200))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
