package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreIdenticalStrings(t *testing.T) {
	assert.Equal(t, 100, Score("Vladimir Putin", "Vladimir Putin", nil))
	assert.Equal(t, 100, Score("acme holdings ltd", "ACME Holdings Ltd", nil))
}

func TestScoreReorderedTokens(t *testing.T) {
	score := Score("John Smith", "Smith, John", nil)
	assert.GreaterOrEqual(t, score, 80, "reordered name should score high")
}

func TestScoreHonorificsIgnored(t *testing.T) {
	assert.Equal(t, 100, Score("John Smith", "Dr. John Smith Jr.", nil))
	assert.Equal(t, 100, Score("Mr John Smith", "john smith", nil))
}

func TestScoreUsesBestAlias(t *testing.T) {
	score := Score("Vladimir Putin", "Wladimir Wladimirowitsch Putin",
		[]string{"Vladimir Putin", "Putin, Vladimir"})
	assert.Equal(t, 100, score, "exact alias match should win")
}

func TestScoreAliasNeverLowersNameScore(t *testing.T) {
	base := Score("John Smith", "John Smith", nil)
	withAliases := Score("John Smith", "John Smith", []string{"completely different"})
	assert.Equal(t, base, withAliases)
}

func TestScoreUnrelatedNamesLow(t *testing.T) {
	score := Score("Vladimir Putin", "Acme Widget Factory", nil)
	assert.Less(t, score, 50)
}

func TestScoreEmptyInputs(t *testing.T) {
	assert.Equal(t, 0, Score("", "John Smith", nil))
	assert.Equal(t, 0, Score("John Smith", "", nil))
	assert.Equal(t, 0, Score("", "", nil))
}

func TestScoreBounds(t *testing.T) {
	cases := [][2]string{
		{"a1", "z9"},
		{"John Smith", "Jon Smyth"},
		{"putin", "vladimir putin"},
	}
	for _, c := range cases {
		score := Score(c[0], c[1], nil)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestScoreDeterministic(t *testing.T) {
	first := Score("John Smith", "Jon Smyth", []string{"J. Smith"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score("John Smith", "Jon Smyth", []string{"J. Smith"}))
	}
}

func TestExactMatch(t *testing.T) {
	assert.True(t, ExactMatch("John Smith", "john  smith", nil))
	assert.True(t, ExactMatch("John Smith", "Jane Doe", []string{"JOHN SMITH"}))
	assert.False(t, ExactMatch("John Smith", "Smith, John", nil), "reordered tokens are not exact")
	assert.False(t, ExactMatch("John Smith", "John Smithe", nil))
	assert.False(t, ExactMatch("", "", nil), "empty query never matches")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "john smith", Normalize("  Dr. John   SMITH, Jr. "))
	assert.Equal(t, "acme holdings", Normalize("ACME-Holdings!"))
	assert.Equal(t, "", Normalize("..."))
}
