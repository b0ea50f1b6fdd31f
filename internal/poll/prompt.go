package poll

import (
	"fmt"
	"strings"

	"jefferson/internal/persona"
)

// promptSection is one optional block of the rendered prompt. Sections are
// composed in a fixed order; a section whose present() is false is omitted
// entirely, never rendered empty.
type promptSection struct {
	present func() bool
	render  func(b *strings.Builder)
}

// BuildPrompt renders the poll prompt for one persona and question. It is
// deterministic: identical inputs yield byte-identical output. The news
// context is an already-rendered digest; pass "" to omit the news block.
func BuildPrompt(rec persona.Record, newsContext string, q Question) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	if rec.Gender == "" || rec.Race == "" {
		return "", &ValidationError{Field: "persona", Reason: "missing gender or race"}
	}
	if rec.Age <= 0 {
		return "", &ValidationError{Field: "persona", Reason: "missing age"}
	}

	place := rec.Neighborhood
	if place == "" {
		place = rec.County
	}
	if place == "" {
		return "", &ValidationError{Field: "persona", Reason: "missing neighborhood and county"}
	}

	sections := []promptSection{
		{
			present: func() bool { return true },
			render: func(b *strings.Builder) {
				fmt.Fprintf(b, "You are a %d-year-old %s %s from %s.\n\n", rec.Age, rec.Race, rec.Gender, place)
				b.WriteString("Personal details:\n")
				fmt.Fprintf(b, "- Education: %s\n", rec.Education)
				fmt.Fprintf(b, "- Income: %s\n", rec.IncomeBracket)
				fmt.Fprintf(b, "- Employment: %s\n", rec.EmploymentStatus)
				fmt.Fprintf(b, "- Marital status: %s\n\n", rec.MaritalStatus)
				b.WriteString("Political views:\n")
				fmt.Fprintf(b, "- Party: %s\n", rec.PartyID)
				fmt.Fprintf(b, "- Ideology: %s\n", rec.Ideology)
				fmt.Fprintf(b, "- Top issues you care about: %s\n", strings.Join(head(rec.TopIssues, 3), ", "))
				fmt.Fprintf(b, "- You primarily get news from: %s\n", strings.Join(head(rec.NewsSources, 3), ", "))
			},
		},
		{
			present: func() bool { return strings.TrimSpace(newsContext) != "" },
			render: func(b *strings.Builder) {
				b.WriteString("\nRecent local news context:\n")
				b.WriteString(strings.TrimSpace(newsContext))
				b.WriteString("\n")
			},
		},
		{
			present: func() bool { return true },
			render: func(b *strings.Builder) {
				b.WriteString("\nAnswer as this voter would respond, based on your demographics, ideology, and life experience.\n")
				fmt.Fprintf(b, "\nQuestion: %s\n", q.Text)
			},
		},
		{
			present: func() bool { return true },
			render:  func(b *strings.Builder) { renderFormat(b, q) },
		},
	}

	var b strings.Builder
	for _, s := range sections {
		if s.present() {
			s.render(&b)
		}
	}
	return b.String(), nil
}

// renderFormat writes the response-format instruction for the question type.
func renderFormat(b *strings.Builder, q Question) {
	switch q.Type {
	case TypeChoice:
		fmt.Fprintf(b, "Answer with exactly one of these options: %s\n", strings.Join(q.Options, ", "))
	case TypeScale:
		fmt.Fprintf(b, "Answer with a single number from %d to %d.\n", q.Scale.Min, q.Scale.Max)
	default:
		b.WriteString("Answer in one or two short sentences, in your own voice.\n")
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
