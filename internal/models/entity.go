package models

// SourceID identifies the external data source that produced a record.
type SourceID string

const (
	SourceOpenSanctions SourceID = "opensanctions"
	SourceSanctionsIO   SourceID = "sanctions_io"
	SourceOffshoreLeaks SourceID = "offshore_leaks"
)

// AllSources lists every source in fixed priority order. The aggregator
// uses this order when flattening results so responses stay reproducible
// regardless of which source answered first.
var AllSources = []SourceID{
	SourceOpenSanctions,
	SourceSanctionsIO,
	SourceOffshoreLeaks,
}

// IsValid returns true if the source id is recognized.
func (s SourceID) IsValid() bool {
	for _, v := range AllSources {
		if s == v {
			return true
		}
	}
	return false
}

// SearchMode selects how candidates are filtered against the query.
type SearchMode string

const (
	ModeExact SearchMode = "exact"
	ModeFuzzy SearchMode = "fuzzy"
)

// IsValid returns true if the search mode is recognized.
func (m SearchMode) IsValid() bool {
	return m == ModeExact || m == ModeFuzzy
}

// EntityKind classifies a candidate record.
type EntityKind string

const (
	KindPerson       EntityKind = "person"
	KindOrganization EntityKind = "organization"
	KindVessel       EntityKind = "vessel"
	KindUnknown      EntityKind = "unknown"
)

// SanctionProgram describes one sanction listing attached to an entity.
type SanctionProgram struct {
	Program   string `json:"program"`
	Authority string `json:"authority,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// EntityRecord is the common shape every source client produces. Source is
// stamped exactly once by the owning client and never reassigned downstream.
type EntityRecord struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Aliases          []string          `json:"aliases"`
	Kind             EntityKind        `json:"entity_kind"`
	BirthDate        string            `json:"birth_date,omitempty"`
	Nationalities    []string          `json:"nationalities"`
	IsSanctioned     bool              `json:"is_sanctioned"`
	SanctionPrograms []SanctionProgram `json:"sanction_programs"`
	Source           SourceID          `json:"source"`

	// Raw is the upstream payload, retained for export and detail views.
	// The aggregator never interprets it.
	Raw map[string]any `json:"raw,omitempty"`
}

// MatchedCandidate is an EntityRecord with its similarity score attached.
type MatchedCandidate struct {
	EntityRecord
	MatchScore int `json:"match_score"`
}

// SourceOutcome captures the result of one source for one search,
// success or failure. It is never mutated after creation.
type SourceOutcome struct {
	Source          SourceID           `json:"source"`
	Found           bool               `json:"found"`
	Count           int                `json:"count"`
	SanctionedCount int                `json:"sanctioned_count"`
	Error           string             `json:"error,omitempty"`
	Results         []MatchedCandidate `json:"results"`
}

// Succeeded reports whether the source call completed without error.
func (o SourceOutcome) Succeeded() bool { return o.Error == "" }

// SearchEnvelope is the unified response for one search request.
type SearchEnvelope struct {
	Query            string                     `json:"query"`
	SearchType       SearchMode                 `json:"search_type"`
	ResultsBySource  map[SourceID]SourceOutcome `json:"results_by_source"`
	AllResults       []MatchedCandidate         `json:"all_results"`
	TotalResults     int                        `json:"total_results"`
	TotalSanctioned  int                        `json:"total_sanctioned"`
	SourcesSearched  []SourceID                 `json:"sources_searched"`
	SourcesSucceeded []SourceID                 `json:"sources_succeeded"`
	SourcesFailed    []SourceID                 `json:"sources_failed"`
	FuzzyThreshold   int                        `json:"fuzzy_threshold"`
}

// AllFailed reports whether every requested source failed. Callers use this
// to distinguish a total outage from a genuine zero-match response.
func (e *SearchEnvelope) AllFailed() bool {
	return len(e.SourcesSearched) > 0 && len(e.SourcesFailed) == len(e.SourcesSearched)
}
