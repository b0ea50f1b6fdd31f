package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry([]PrecinctConfig{
		{ID: "SF-P01-Mission", Name: "Mission District", State: "CA", County: "San Francisco", Neighborhood: "Mission"},
	})
}

func validRecord() Record {
	return Record{
		ID:         NewID(),
		Age:        45,
		Gender:     "Woman",
		Race:       RaceWhite,
		PrecinctID: "SF-P01-Mission",
		County:     "San Francisco",
		PartyID:    PartyIndependent,
		Ideology:   IdeologyModerate,
		TopIssues:  []string{"housing", "transit"},
	}
}

func TestValidate(t *testing.T) {
	reg := testRegistry()

	rec := validRecord()
	assert.NoError(t, rec.Validate(reg))

	rec = validRecord()
	rec.Age = -1
	assert.Error(t, rec.Validate(reg))

	rec = validRecord()
	rec.PrecinctID = "SF-P99-Nowhere"
	assert.Error(t, rec.Validate(reg))
	// Without a registry, precinct resolution is skipped.
	assert.NoError(t, rec.Validate(nil))

	rec = validRecord()
	rec.TopIssues = []string{"housing", "transit", "housing"}
	err := rec.Validate(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate top issue")
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "precincts.yaml")
	data := `
precincts:
  - id: SF-P01-Mission
    name: Mission District
    state: CA
    county: San Francisco
    neighborhood: Mission
    expected_voters: 1000
    demographics:
      age_distribution:
        "18-29": 0.35
        "30-39": 0.30
        "40-49": 0.20
        "50-64": 0.10
        "65+": 0.05
      race_distribution:
        Hispanic: 0.40
        White: 0.35
        Asian: 0.15
        Black: 0.05
        Other: 0.05
  - id: MIA-P01-LittleHavana
    name: Little Havana
    state: FL
    county: Miami-Dade
    neighborhood: Little Havana
    expected_voters: 800
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SF-P01-Mission", "MIA-P01-LittleHavana"}, reg.IDs())

	cfg, ok := reg.Resolve("SF-P01-Mission")
	require.True(t, ok)
	assert.Equal(t, "San Francisco", cfg.County)
	assert.Equal(t, 1000, cfg.ExpectedVoters)
	assert.InDelta(t, 0.35, cfg.Demographics.Age["18-29"], 1e-9)

	_, ok = reg.Resolve("SF-P99-Nowhere")
	assert.False(t, ok)
}

func TestLoadRegistryErrors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("precincts: []\n"), 0644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}
