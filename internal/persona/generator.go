package persona

import (
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"jefferson/internal/survey"
)

// Generator builds synthetic voters for a precinct: demographics sampled
// from the precinct's census distributions, attitudes taken from a matching
// survey respondent where one exists, an aggregated same-demographic
// template where only the party fails to match, ideology-keyed generic
// priors otherwise.
type Generator struct {
	registry *Registry
	surveys  *survey.Parser
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewGenerator creates a generator. The seed makes generation reproducible
// for a given precinct config and survey data set.
func NewGenerator(registry *Registry, surveys *survey.Parser, seed int64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if surveys == nil {
		surveys = survey.NewParser(nil)
	}
	return &Generator{
		registry: registry,
		surveys:  surveys,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

// GenerateForPrecinct generates n voters for one precinct.
func (g *Generator) GenerateForPrecinct(cfg PrecinctConfig, n int) []Record {
	g.logger.Info("generating voters",
		zap.String("precinct", cfg.ID),
		zap.Int("count", n))

	voters := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		d := g.sampleDemographics(cfg)

		var rec Record
		matches := g.surveys.FindMatches(survey.MatchFilter{
			AgeGroup:   d.ageGroup,
			Race:       d.race,
			Gender:     d.gender,
			Education:  d.education,
			PartyID:    d.party,
			MaxMatches: 20,
		})
		if len(matches) > 0 {
			match := matches[g.rng.Intn(len(matches))]
			rec = g.fromMatch(cfg, d, match)
		} else if tmpl := g.surveys.BuildTemplate(survey.MatchFilter{
			AgeGroup:  d.ageGroup,
			Race:      d.race,
			Gender:    d.gender,
			Education: d.education,
			County:    cfg.County,
		}); tmpl.MatchCount > 0 && len(tmpl.TopIssues) > 0 {
			rec = g.fromTemplate(cfg, d, tmpl)
		} else {
			rec = g.fallback(cfg, d)
		}
		voters = append(voters, rec)
	}

	return voters
}

// GenerateAll generates votersPerPrecinct voters for every registered
// precinct, keyed by precinct ID.
func (g *Generator) GenerateAll(votersPerPrecinct int) map[string][]Record {
	out := make(map[string][]Record)
	for _, id := range g.registry.IDs() {
		cfg, _ := g.registry.Resolve(id)
		n := votersPerPrecinct
		if n <= 0 {
			n = cfg.ExpectedVoters
		}
		out[id] = g.GenerateForPrecinct(cfg, n)
	}
	return out
}

type sampled struct {
	age        int
	ageGroup   string
	gender     string
	race       string
	education  string
	income     string
	employment string
	marital    string
	party      string
	ideology   string
}

func (g *Generator) sampleDemographics(cfg PrecinctConfig) sampled {
	d := cfg.Demographics
	ageGroup := g.sampleDistribution(d.Age)
	race := g.sampleDistribution(d.Race)
	return sampled{
		age:        g.ageFromGroup(ageGroup),
		ageGroup:   ageGroup,
		gender:     g.sampleGender(race),
		race:       race,
		education:  g.sampleDistribution(d.Education),
		income:     g.sampleDistribution(d.Income),
		employment: g.sampleDistribution(d.Employment),
		marital:    g.sampleDistribution(d.Marital),
		party:      g.sampleDistribution(d.Party),
		ideology:   g.sampleDistribution(d.Ideology),
	}
}

// sampleDistribution draws a weighted sample. Iteration over sorted keys
// keeps sampling deterministic for a fixed seed.
func (g *Generator) sampleDistribution(dist map[string]float64) string {
	if len(dist) == 0 {
		return "Unknown"
	}

	keys := sortedKeys(dist)
	var total float64
	for _, k := range keys {
		if dist[k] > 0 {
			total += dist[k]
		}
	}
	if total <= 0 {
		return keys[0]
	}

	target := g.rng.Float64() * total
	var acc float64
	for _, k := range keys {
		if dist[k] <= 0 {
			continue
		}
		acc += dist[k]
		if target < acc {
			return k
		}
	}
	return keys[len(keys)-1]
}

// sampleGender uses survey-observed gender skews per race.
func (g *Generator) sampleGender(race string) string {
	dist := map[string]float64{"Man": 0.48, "Woman": 0.52}
	switch race {
	case "Asian":
		dist = map[string]float64{"Man": 0.50, "Woman": 0.50}
	case "Black":
		dist = map[string]float64{"Man": 0.46, "Woman": 0.54}
	}
	return g.sampleDistribution(dist)
}

var ageGroupMidpoints = map[string]int{
	"18-29": 24,
	"30-39": 35,
	"40-49": 45,
	"50-64": 57,
	"65+":   72,
}

// ageFromGroup picks an age near the group midpoint.
func (g *Generator) ageFromGroup(ageGroup string) int {
	midpoint, ok := ageGroupMidpoints[ageGroup]
	if !ok {
		midpoint = 40
	}
	age := midpoint + g.rng.Intn(7) - 3
	if age < 18 {
		age = 18
	}
	if age > 100 {
		age = 100
	}
	return age
}

func (g *Generator) fromMatch(cfg PrecinctConfig, d sampled, match survey.Respondent) Record {
	rec := g.baseRecord(cfg, d)
	rec.TopIssues = dedupe(limit(match.TopIssues, 10))
	rec.IssuePositions = match.IssuePositions
	rec.NewsSources = limit(match.NewsSources, 8)
	rec.SourceVoterID = match.DWID
	rec.SurveyDerived = true
	if match.VoteHistory != "" {
		rec.VoteHistory = map[string]string{
			"2024":    match.Vote2024,
			"2022":    match.Vote2022,
			"summary": match.VoteHistory,
		}
	}
	return rec
}

// fromTemplate fills attitudes from an aggregated template of same-
// demographic respondents. Used when no single respondent matches the
// full filter including party.
func (g *Generator) fromTemplate(cfg PrecinctConfig, d sampled, tmpl survey.Template) Record {
	rec := g.baseRecord(cfg, d)
	rec.TopIssues = limit(tmpl.TopIssues, 10)
	rec.IssuePositions = tmpl.IssuePositions
	rec.NewsSources = limit(tmpl.NewsSources, 8)
	rec.SurveyDerived = true
	if tmpl.Vote2024 != "" {
		rec.VoteHistory = map[string]string{"2024": tmpl.Vote2024}
	}
	return rec
}

func (g *Generator) fallback(cfg PrecinctConfig, d sampled) Record {
	rec := g.baseRecord(cfg, d)
	rec.TopIssues = g.genericIssues(rec.Ideology)
	rec.NewsSources = g.genericNewsSources(rec.Age)
	rec.SurveyDerived = false
	return rec
}

func (g *Generator) baseRecord(cfg PrecinctConfig, d sampled) Record {
	return Record{
		ID:               NewID(),
		Age:              d.age,
		Gender:           d.gender,
		Race:             mapRace(d.race),
		Education:        mapEducation(d.education),
		IncomeBracket:    d.income,
		EmploymentStatus: d.employment,
		MaritalStatus:    d.marital,
		PrecinctID:       cfg.ID,
		County:           cfg.County,
		Neighborhood:     cfg.Neighborhood,
		PartyID:          mapParty(d.party),
		Ideology:         mapIdeology(d.ideology),
		CreatedAt:        time.Now().UTC(),
	}
}

var genericIssueSets = map[Ideology][]string{
	IdeologyVeryLiberal:      {"Climate change", "Social justice", "Healthcare access", "Economic inequality", "Voting rights"},
	IdeologyLiberal:          {"Healthcare", "Education", "Economy", "Climate change", "Social services"},
	IdeologyModerate:         {"Economy", "Healthcare", "Immigration", "Education", "National security"},
	IdeologyConservative:     {"Economy", "National security", "Immigration", "Gun rights", "Tax reform"},
	IdeologyVeryConservative: {"Gun rights", "Immigration", "National debt", "Traditional values", "Energy independence"},
}

// genericIssues samples a shuffled subset of ideology-typical issues.
func (g *Generator) genericIssues(ideology Ideology) []string {
	issues, ok := genericIssueSets[ideology]
	if !ok {
		issues = genericIssueSets[IdeologyModerate]
	}
	shuffled := make([]string, len(issues))
	copy(shuffled, issues)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

func (g *Generator) genericNewsSources(age int) []string {
	var pool []string
	if age < 35 {
		pool = []string{"Twitter/X", "TikTok", "Instagram", "YouTube", "CNN", "MSNBC", "Fox News", "Reuters"}
	} else {
		pool = []string{"Cable news", "Local TV news", "Newspapers", "Facebook", "Fox News", "CNN", "MSNBC", "NPR"}
	}
	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:3]
}

func mapRace(v string) Race {
	switch v {
	case "White":
		return RaceWhite
	case "Black":
		return RaceBlack
	case "Hispanic":
		return RaceHispanic
	case "Asian":
		return RaceAsian
	case "Multiracial":
		return RaceMultiracial
	default:
		return RaceOther
	}
}

func mapEducation(v string) Education {
	switch v {
	case "No HS", "Less than High School":
		return EducationLessThanHS
	case "High school graduate", "High School":
		return EducationHighSchool
	case "2-year", "Some College":
		return EducationSomeCollege
	case "4-year", "College Degree", "College degree":
		return EducationCollege
	case "Post-grad", "Postgraduate Degree":
		return EducationPostgrad
	default:
		return EducationSomeCollege
	}
}

func mapParty(v string) PoliticalParty {
	switch v {
	case "Strong Democrat", "Democrat":
		return PartyDemocrat
	case "Strong Republican", "Republican":
		return PartyRepublican
	case "Independent", "Independent/Lean Democrat", "Independent/Lean Republican":
		return PartyIndependent
	default:
		return PartyIndependent
	}
}

func mapIdeology(v string) Ideology {
	switch v {
	case "Very Liberal":
		return IdeologyVeryLiberal
	case "Liberal":
		return IdeologyLiberal
	case "Conservative":
		return IdeologyConservative
	case "Very Conservative":
		return IdeologyVeryConservative
	default:
		return IdeologyModerate
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func dedupe(s []string) []string {
	seen := make(map[string]bool, len(s))
	out := make([]string, 0, len(s))
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
