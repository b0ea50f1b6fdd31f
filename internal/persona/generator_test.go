package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jefferson/internal/survey"
)

func generatorPrecinct() PrecinctConfig {
	return PrecinctConfig{
		ID:           "SF-P01-Mission",
		Name:         "Mission District",
		State:        "CA",
		County:       "San Francisco",
		Neighborhood: "Mission",
		Demographics: Demographics{
			Age:       map[string]float64{"18-29": 0.5, "40-49": 0.5},
			Race:      map[string]float64{"Hispanic": 0.6, "White": 0.4},
			Education: map[string]float64{"4-year": 0.7, "High school graduate": 0.3},
			Income:    map[string]float64{"$50-75K": 1.0},
			Party:     map[string]float64{"Strong Democrat": 0.7, "Independent": 0.3},
			Ideology:  map[string]float64{"Liberal": 0.6, "Moderate": 0.4},
		},
	}
}

func TestGenerateForPrecinctFallback(t *testing.T) {
	reg := NewRegistry([]PrecinctConfig{generatorPrecinct()})
	// No survey data loaded: every persona takes the fallback path.
	gen := NewGenerator(reg, survey.NewParser(nil), 42, nil)

	voters := gen.GenerateForPrecinct(generatorPrecinct(), 25)
	require.Len(t, voters, 25)

	for _, v := range voters {
		require.NoError(t, v.Validate(reg))
		assert.Equal(t, "SF-P01-Mission", v.PrecinctID)
		assert.Equal(t, "San Francisco", v.County)
		assert.False(t, v.SurveyDerived)
		assert.GreaterOrEqual(t, v.Age, 18)
		assert.LessOrEqual(t, v.Age, 100)
		assert.NotEmpty(t, v.TopIssues)
		assert.Len(t, v.NewsSources, 3)
		assert.Equal(t, "$50-75K", v.IncomeBracket)
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	reg := NewRegistry([]PrecinctConfig{generatorPrecinct()})

	a := NewGenerator(reg, survey.NewParser(nil), 7, nil).GenerateForPrecinct(generatorPrecinct(), 10)
	b := NewGenerator(reg, survey.NewParser(nil), 7, nil).GenerateForPrecinct(generatorPrecinct(), 10)
	require.Len(t, b, len(a))

	// IDs and timestamps differ; the sampled attributes must not.
	diff := cmp.Diff(a, b, cmpopts.IgnoreFields(Record{}, "ID", "CreatedAt"))
	assert.Empty(t, diff)
}

const templateWave = "DWID\tAGE_GROUPS\tgender\tRACE\tEDUCATION\tfaminc_new\tEMPLOYMENT_STATUS\tMARITAL_STATUS\tPARTY_ID_COMBINED\tIDEO5\tVOTE_CHOICE_INDEX_2024\tVOTE_CHOICE_INDEX_2022\tvote_history\tFAVOR04_rent_control\tissues_top5_1\tissues_top5_2\tSOURCES1_local_tv\tSOURCES1_npr\tPEORIA_VALUES_CLUSTER_2_0\tSTATE\tinputzip\n" +
	"t1\t40-49\tWoman\tWhite\tCollege degree\t$50,000 - $99,999\tEmployed full time\tMarried\tLean Republican\tConservative\tDonald Trump\tRepublican\t4 / 4 votes\tFavor\tHousing\tTransit\tnot selected\tselected\tN/A\tCA\t94110\n" +
	"t2\t40-49\tMan\tWhite\tCollege degree\t$50,000 - $99,999\tEmployed full time\tMarried\tLean Republican\tConservative\tDonald Trump\tRepublican\t3 / 4 votes\tFavor\tHousing\tTransit\tnot selected\tselected\tN/A\tCA\t94114\n"

func TestGenerateUsesTemplateWhenPartyRulesOutMatches(t *testing.T) {
	dir := t.TempDir()
	waveDir := filepath.Join(dir, "wave1")
	require.NoError(t, os.MkdirAll(waveDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(waveDir, "top_recodes_recent_wave_1.txt"), []byte(templateWave), 0644))

	surveys := survey.NewParser(nil)
	require.NoError(t, surveys.LoadDir(dir))
	require.NotEmpty(t, surveys.Respondents())

	// Every sampled voter is a 40-49 white Strong Democrat with a college
	// degree; both respondents share those demographics but lean
	// Republican, so no individual respondent matches.
	cfg := generatorPrecinct()
	cfg.Demographics.Age = map[string]float64{"40-49": 1}
	cfg.Demographics.Race = map[string]float64{"White": 1}
	cfg.Demographics.Education = map[string]float64{"College degree": 1}
	cfg.Demographics.Party = map[string]float64{"Strong Democrat": 1}
	reg := NewRegistry([]PrecinctConfig{cfg})

	gen := NewGenerator(reg, surveys, 11, nil)
	voters := gen.GenerateForPrecinct(cfg, 5)
	require.Len(t, voters, 5)

	for _, v := range voters {
		assert.True(t, v.SurveyDerived)
		assert.Empty(t, v.SourceVoterID)
		assert.Equal(t, []string{"Housing", "Transit"}, v.TopIssues)
		assert.Equal(t, "Favor", v.IssuePositions["Rent Control"])
		assert.Equal(t, map[string]string{"2024": "Donald Trump"}, v.VoteHistory)
	}
}

func TestSampleDistributionHonorsWeights(t *testing.T) {
	gen := NewGenerator(nil, survey.NewParser(nil), 1, nil)

	counts := map[string]int{}
	dist := map[string]float64{"a": 0.9, "b": 0.1}
	for i := 0; i < 1000; i++ {
		counts[gen.sampleDistribution(dist)]++
	}
	assert.Greater(t, counts["a"], counts["b"])
	assert.Equal(t, 1000, counts["a"]+counts["b"])

	assert.Equal(t, "Unknown", gen.sampleDistribution(nil))
}

func TestMappingHelpers(t *testing.T) {
	assert.Equal(t, PartyDemocrat, mapParty("Strong Democrat"))
	assert.Equal(t, PartyIndependent, mapParty("Independent/Lean Republican"))
	assert.Equal(t, PartyIndependent, mapParty("weird value"))
	assert.Equal(t, EducationCollege, mapEducation("4-year"))
	assert.Equal(t, EducationSomeCollege, mapEducation(""))
	assert.Equal(t, IdeologyVeryConservative, mapIdeology("Very Conservative"))
	assert.Equal(t, IdeologyModerate, mapIdeology("???"))
	assert.Equal(t, RaceMultiracial, mapRace("Multiracial"))
	assert.Equal(t, RaceOther, mapRace("unknown"))
}
