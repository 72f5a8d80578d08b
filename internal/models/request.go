package models

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MinQueryLength is the minimum trimmed query length accepted.
	MinQueryLength = 2

	// MaxQueryLength caps the query to keep upstream URLs sane.
	MaxQueryLength = 200

	// DefaultLimit is the per-source result limit when none is given.
	DefaultLimit = 10

	// MaxLimit is the hard per-source result cap.
	MaxLimit = 50

	// DefaultFuzzyThreshold is the minimum match score kept in fuzzy mode.
	DefaultFuzzyThreshold = 80
)

// ValidationError reports a request field that failed validation. It is the
// only error the aggregator surfaces to callers; everything else is captured
// inside the envelope.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// SearchRequest is the inbound contract for a screening search.
type SearchRequest struct {
	Query          string     `json:"query"`
	SearchType     SearchMode `json:"search_type,omitempty"`
	Sources        []SourceID `json:"sources,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	FuzzyThreshold int        `json:"fuzzy_threshold,omitempty"`
}

// Normalize validates the request in place and applies defaults: trimmed
// query of at least MinQueryLength printable characters, search_type fuzzy,
// all sources, limit clamped to [1, MaxLimit], threshold clamped to [0,100].
func (r *SearchRequest) Normalize() error {
	r.Query = sanitizeQuery(r.Query)
	if len([]rune(r.Query)) < MinQueryLength {
		return &ValidationError{Field: "query", Msg: fmt.Sprintf("must be at least %d characters", MinQueryLength)}
	}
	if len([]rune(r.Query)) > MaxQueryLength {
		return &ValidationError{Field: "query", Msg: fmt.Sprintf("must be at most %d characters", MaxQueryLength)}
	}

	if r.SearchType == "" {
		r.SearchType = ModeFuzzy
	}
	if !r.SearchType.IsValid() {
		return &ValidationError{Field: "search_type", Msg: `must be "exact" or "fuzzy"`}
	}

	if len(r.Sources) == 0 {
		r.Sources = append([]SourceID(nil), AllSources...)
	}
	seen := make(map[SourceID]bool, len(r.Sources))
	for _, s := range r.Sources {
		if !s.IsValid() {
			return &ValidationError{Field: "sources", Msg: fmt.Sprintf("unknown source %q", s)}
		}
		if seen[s] {
			return &ValidationError{Field: "sources", Msg: fmt.Sprintf("duplicate source %q", s)}
		}
		seen[s] = true
	}

	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit < 0 {
		return &ValidationError{Field: "limit", Msg: "must be positive"}
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}

	if r.FuzzyThreshold == 0 {
		r.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if r.FuzzyThreshold < 0 {
		r.FuzzyThreshold = 0
	}
	if r.FuzzyThreshold > 100 {
		r.FuzzyThreshold = 100
	}

	return nil
}

// sanitizeQuery trims whitespace and drops non-printable characters.
func sanitizeQuery(q string) string {
	var b strings.Builder
	for _, r := range q {
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
