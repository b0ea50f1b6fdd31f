package survey

import (
	"sort"
	"strings"
)

// MatchFilter narrows respondents by demographics. Age group, race, gender
// and education are required; the rest are optional.
type MatchFilter struct {
	AgeGroup      string
	Race          string
	Gender        string
	Education     string
	PartyID       string
	ValuesCluster string
	County        string
	MaxMatches    int
}

// countyStates maps supported counties to their survey state codes.
var countyStates = map[string]string{
	"San Francisco": "CA",
	"Miami-Dade":    "FL",
}

// FindMatches returns respondents matching the filter, up to MaxMatches.
func (p *Parser) FindMatches(f MatchFilter) []Respondent {
	limit := f.MaxMatches
	if limit <= 0 {
		limit = 20
	}

	var matches []Respondent
	for _, r := range p.respondents {
		if !matchField(r.AgeGroup, f.AgeGroup) ||
			!matchField(r.Race, f.Race) ||
			!matchField(r.Gender, f.Gender) ||
			!matchEducation(r.Education, f.Education) {
			continue
		}
		if f.PartyID != "" && !matchField(r.PartyID, f.PartyID) {
			continue
		}
		if f.ValuesCluster != "" && r.ValuesCluster != f.ValuesCluster {
			continue
		}
		if f.County != "" {
			if state, ok := countyStates[f.County]; ok && r.State != state {
				continue
			}
		}

		matches = append(matches, r)
		if len(matches) >= limit {
			break
		}
	}
	return matches
}

// matchField does a case-insensitive exact comparison.
func matchField(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// matchEducation matches education levels loosely: survey waves label the
// same level differently ("College degree" vs "College").
func matchEducation(a, b string) bool {
	if matchField(a, b) {
		return true
	}
	an, bn := strings.ToLower(a), strings.ToLower(b)
	for _, key := range []string{"college", "high school", "postgrad"} {
		if strings.Contains(an, key) && strings.Contains(bn, key) {
			return true
		}
	}
	return false
}

// Template aggregates matching respondents into a persona template:
// most-common issue positions, ranked top issues and news sources, and
// modal 2024 vote.
type Template struct {
	IssuePositions map[string]string
	TopIssues      []string
	NewsSources    []string
	Vote2024       string
	Ideology       string
	MatchCount     int
}

// BuildTemplate finds matches for the filter and aggregates them. Returns
// a zero-count template when nothing matches.
func (p *Parser) BuildTemplate(f MatchFilter) Template {
	if f.MaxMatches <= 0 {
		f.MaxMatches = 50
	}
	matches := p.FindMatches(f)
	tmpl := Template{
		IssuePositions: make(map[string]string),
		MatchCount:     len(matches),
	}
	if len(matches) == 0 {
		return tmpl
	}

	// Most common position per issue.
	positions := make(map[string]map[string]int)
	for _, r := range matches {
		for issue, pos := range r.IssuePositions {
			if positions[issue] == nil {
				positions[issue] = make(map[string]int)
			}
			positions[issue][pos]++
		}
	}
	for issue, counts := range positions {
		tmpl.IssuePositions[issue] = mostCommon(counts)
	}

	// Top issues and news sources ranked by frequency across matches.
	issueCounts := make(map[string]int)
	sourceCounts := make(map[string]int)
	for _, r := range matches {
		for _, issue := range r.TopIssues {
			issueCounts[issue]++
		}
		for _, src := range r.NewsSources {
			sourceCounts[src]++
		}
	}
	tmpl.TopIssues = rankByCount(issueCounts, 10)
	tmpl.NewsSources = rankByCount(sourceCounts, 8)

	voteCounts := make(map[string]int)
	ideoCounts := make(map[string]int)
	for _, r := range matches {
		if r.Vote2024 != "" {
			voteCounts[r.Vote2024]++
		}
		if r.Ideology != "" {
			ideoCounts[r.Ideology]++
		}
	}
	tmpl.Vote2024 = mostCommon(voteCounts)
	tmpl.Ideology = mostCommon(ideoCounts)

	return tmpl
}

// mostCommon returns the highest-count key, ties broken alphabetically for
// determinism.
func mostCommon(counts map[string]int) string {
	best, bestCount := "", -1
	for k, c := range counts {
		if c > bestCount || (c == bestCount && k < best) {
			best, bestCount = k, c
		}
	}
	return best
}

// rankByCount returns up to n keys ordered by descending count, ties broken
// alphabetically.
func rankByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
