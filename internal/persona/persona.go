// Package persona defines the synthetic voter record and generates
// populations from precinct census distributions and survey priors.
package persona

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PoliticalParty is a normalized party affiliation.
type PoliticalParty string

const (
	PartyDemocrat    PoliticalParty = "Democrat"
	PartyRepublican  PoliticalParty = "Republican"
	PartyIndependent PoliticalParty = "Independent"
	PartyOther       PoliticalParty = "Other"
)

// Ideology is a five-point ideological placement.
type Ideology string

const (
	IdeologyVeryLiberal      Ideology = "Very Liberal"
	IdeologyLiberal          Ideology = "Liberal"
	IdeologyModerate         Ideology = "Moderate"
	IdeologyConservative     Ideology = "Conservative"
	IdeologyVeryConservative Ideology = "Very Conservative"
)

// Race mirrors the census categories used in precinct distributions.
type Race string

const (
	RaceWhite       Race = "White"
	RaceBlack       Race = "Black"
	RaceHispanic    Race = "Hispanic"
	RaceAsian       Race = "Asian"
	RaceOther       Race = "Other"
	RaceMultiracial Race = "Multiracial"
)

// Education is a normalized attainment level.
type Education string

const (
	EducationLessThanHS  Education = "Less than High School"
	EducationHighSchool  Education = "High School"
	EducationSomeCollege Education = "Some College"
	EducationCollege     Education = "College Degree"
	EducationPostgrad    Education = "Postgraduate Degree"
)

// Record is a synthetic voter persona. Records are created during
// ingestion and read-only during simulation.
type Record struct {
	ID string `json:"id"`

	// Core demographics
	Age              int       `json:"age"`
	Gender           string    `json:"gender"`
	Race             Race      `json:"race"`
	Education        Education `json:"education"`
	IncomeBracket    string    `json:"income_bracket"`
	EmploymentStatus string    `json:"employment_status"`
	MaritalStatus    string    `json:"marital_status"`

	// Location
	PrecinctID   string `json:"precinct_id"`
	County       string `json:"county"`
	Neighborhood string `json:"neighborhood,omitempty"`

	// Political
	PartyID     PoliticalParty    `json:"party_id"`
	Ideology    Ideology          `json:"ideology"`
	VoteHistory map[string]string `json:"vote_history,omitempty"`

	// Attitudes: most important issue first, no duplicates.
	TopIssues      []string          `json:"top_issues"`
	IssuePositions map[string]string `json:"issue_positions,omitempty"`
	NewsSources    []string          `json:"news_sources"`

	// Provenance: SourceVoterID links back to a survey respondent;
	// empty means the persona was template-derived.
	SourceVoterID string    `json:"source_voter_id,omitempty"`
	SurveyDerived bool      `json:"survey_derived"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewID returns a fresh persona identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks record invariants. The registry resolves precinct IDs to
// known geographies; a nil registry skips that check (e.g. records read
// back from the store, validated at ingestion time).
func (r *Record) Validate(reg *Registry) error {
	if r.Age < 0 {
		return fmt.Errorf("persona %s: negative age %d", r.ID, r.Age)
	}
	if r.Gender == "" {
		return fmt.Errorf("persona %s: missing gender", r.ID)
	}
	if r.Race == "" {
		return fmt.Errorf("persona %s: missing race", r.ID)
	}
	if r.PrecinctID == "" {
		return fmt.Errorf("persona %s: missing precinct", r.ID)
	}
	if r.PartyID == "" {
		return fmt.Errorf("persona %s: missing party", r.ID)
	}
	if reg != nil {
		if _, ok := reg.Resolve(r.PrecinctID); !ok {
			return fmt.Errorf("persona %s: unknown precinct %q", r.ID, r.PrecinctID)
		}
	}

	seen := make(map[string]bool, len(r.TopIssues))
	for _, issue := range r.TopIssues {
		if seen[issue] {
			return fmt.Errorf("persona %s: duplicate top issue %q", r.ID, issue)
		}
		seen[issue] = true
	}
	return nil
}
