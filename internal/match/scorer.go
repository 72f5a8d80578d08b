// Package match implements the name-similarity scoring used to filter and
// rank screening candidates. All functions are pure and deterministic.
package match

import (
	"strings"
	"unicode"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// honorifics are title and suffix tokens dropped during normalization so
// "Dr. John Smith Jr." and "John Smith" compare as equals.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true,
	"prof": true, "professor": true, "sir": true, "lord": true, "lady": true,
	"hon": true, "rev": true, "fr": true, "jr": true, "sr": true,
	"ii": true, "iii": true, "iv": true, "esq": true,
}

// Score returns a similarity score in [0,100] between the query and a
// candidate, taking the maximum across the candidate's display name and all
// of its aliases. Per name the score is max(token-sort ratio, partial ratio)
// over normalized strings; normalized equality short-circuits to 100.
func Score(query, name string, aliases []string) int {
	best := scoreOne(query, name)
	for _, alias := range aliases {
		if best == 100 {
			break
		}
		if s := scoreOne(query, alias); s > best {
			best = s
		}
	}
	return best
}

// ExactMatch reports whether the query equals the candidate name or any
// alias after normalization (case- and whitespace-insensitive).
func ExactMatch(query, name string, aliases []string) bool {
	q := Normalize(query)
	if q == "" {
		return false
	}
	if q == Normalize(name) {
		return true
	}
	for _, alias := range aliases {
		if q == Normalize(alias) {
			return true
		}
	}
	return false
}

func scoreOne(query, candidate string) int {
	q, c := Normalize(query), Normalize(candidate)
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 100
	}

	// Token-sort handles reordered names ("Putin Vladimir"), partial handles
	// substrings ("putin" inside "vladimir putin"). Take the better of the two.
	tokenScore := fuzzy.TokenSortRatio(q, c)
	partialScore := fuzzy.PartialRatio(q, c)
	if partialScore > tokenScore {
		return partialScore
	}
	return tokenScore
}

// Normalize lowercases, strips everything but letters, digits and spaces,
// drops honorific tokens, and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if !honorifics[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
