package survey

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleWave = "DWID\tAGE_GROUPS\tgender\tRACE\tEDUCATION\tfaminc_new\tEMPLOYMENT_STATUS\tMARITAL_STATUS\tPARTY_ID_COMBINED\tIDEO5\tVOTE_CHOICE_INDEX_2024\tVOTE_CHOICE_INDEX_2022\tvote_history\tFAVOR04_rent_control\tissues_top5_1\tissues_top5_2\tSOURCES1_local_tv\tSOURCES1_npr\tPEORIA_VALUES_CLUSTER_2_0\tSTATE\tinputzip\n" +
	"d1\t40-49\tWoman\tWhite\tCollege degree\t$100,000 - $149,999\tEmployed full time\tMarried\tStrong Democrat\tLiberal\tKamala Harris\tDemocrat\t4 / 4 votes\tFavor\tHousing\tTransit\tnot selected\tselected\tSuper Seculars\tCA\t94110\n" +
	"d2\t40-49\tWoman\tWhite\tCollege degree\t$50,000 - $99,999\tEmployed full time\tMarried\tStrong Democrat\tLiberal\tKamala Harris\tDemocrat\t3 / 4 votes\tFavor\tHousing\tEconomy\tselected\tselected\tN/A\tCA\t94114\n" +
	"d3\t\tMan\tAsian\tHigh school\t\t\t\tLean Republican\tConservative\t\t\t\t\t\t\t\t\t\tFL\t33101\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wave.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleWave), 0644))
	return path
}

func TestParseFile(t *testing.T) {
	p := NewParser(zap.NewNop())
	respondents, err := p.ParseFile(writeSample(t))
	require.NoError(t, err)

	// Row d3 is missing its age group and is skipped.
	require.Len(t, respondents, 2)

	r := respondents[0]
	assert.Equal(t, "d1", r.DWID)
	assert.Equal(t, "40-49", r.AgeGroup)
	assert.Equal(t, "Woman", r.Gender)
	assert.Equal(t, "Strong Democrat", r.PartyID)
	assert.Equal(t, []string{"Housing", "Transit"}, r.TopIssues)
	assert.Equal(t, "Favor", r.IssuePositions["Rent Control"])
	assert.Equal(t, []string{"Npr"}, r.NewsSources)
	assert.Equal(t, "Super Seculars", r.ValuesCluster)

	// N/A markers become empty.
	assert.Empty(t, respondents[1].ValuesCluster)
}

func TestFindMatches(t *testing.T) {
	p := NewParser(nil)
	respondents, err := p.ParseFile(writeSample(t))
	require.NoError(t, err)
	p.respondents = respondents

	matches := p.FindMatches(MatchFilter{
		AgeGroup:  "40-49",
		Race:      "White",
		Gender:    "Woman",
		Education: "College", // loose education match
		County:    "San Francisco",
	})
	assert.Len(t, matches, 2)

	// Miami filter excludes CA respondents.
	matches = p.FindMatches(MatchFilter{
		AgeGroup:  "40-49",
		Race:      "White",
		Gender:    "Woman",
		Education: "College degree",
		County:    "Miami-Dade",
	})
	assert.Empty(t, matches)
}

func TestBuildTemplate(t *testing.T) {
	p := NewParser(nil)
	respondents, err := p.ParseFile(writeSample(t))
	require.NoError(t, err)
	p.respondents = respondents

	tmpl := p.BuildTemplate(MatchFilter{
		AgeGroup:  "40-49",
		Race:      "White",
		Gender:    "Woman",
		Education: "College degree",
	})
	assert.Equal(t, 2, tmpl.MatchCount)
	assert.Equal(t, "Favor", tmpl.IssuePositions["Rent Control"])
	assert.Equal(t, "Kamala Harris", tmpl.Vote2024)
	assert.Equal(t, "Liberal", tmpl.Ideology)
	// Housing appears twice, Transit and Economy once each.
	require.NotEmpty(t, tmpl.TopIssues)
	assert.Equal(t, "Housing", tmpl.TopIssues[0])

	empty := p.BuildTemplate(MatchFilter{AgeGroup: "18-29", Race: "Asian", Gender: "Man", Education: "College"})
	assert.Zero(t, empty.MatchCount)
}
