package aggregate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
	"github.com/bouksibkhalid-create/cleargate/internal/source"
)

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClient is a canned source.Client that counts its invocations.
type stubClient struct {
	id      models.SourceID
	records []models.EntityRecord
	err     error
	calls   atomic.Int32
}

func (s *stubClient) ID() models.SourceID { return s.id }

func (s *stubClient) FetchCandidates(_ context.Context, _ string, _ models.SearchMode, _ int) ([]models.EntityRecord, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func record(id models.SourceID, name string, sanctioned bool, aliases ...string) models.EntityRecord {
	if aliases == nil {
		aliases = []string{}
	}
	return models.EntityRecord{
		ID:               string(id) + ":" + name,
		Name:             name,
		Aliases:          aliases,
		Kind:             models.KindPerson,
		Nationalities:    []string{},
		IsSanctioned:     sanctioned,
		SanctionPrograms: []models.SanctionProgram{},
		Source:           id,
	}
}

func putinAggregator(t *testing.T) (*Aggregator, *stubClient, *stubClient, *stubClient) {
	t.Helper()
	os := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{
		record(models.SourceOpenSanctions, "Vladimir Putin", true, "Putin, Vladimir"),
	}}
	sio := &stubClient{id: models.SourceSanctionsIO, records: []models.EntityRecord{
		record(models.SourceSanctionsIO, "PUTIN, Vladimir Vladimirovich", true),
	}}
	off := &stubClient{id: models.SourceOffshoreLeaks, records: []models.EntityRecord{
		record(models.SourceOffshoreLeaks, "Vladimir Putin", false),
	}}
	agg := New([]source.Client{os, sio, off}, Options{}, newTestLogger(t))
	return agg, os, sio, off
}

func TestSearchAggregatesAllSources(t *testing.T) {
	agg, _, _, _ := putinAggregator(t)

	env, err := agg.Search(context.Background(), models.SearchRequest{Query: "Vladimir Putin"})
	require.NoError(t, err)

	assert.Equal(t, 3, env.TotalResults)
	assert.Equal(t, 2, env.TotalSanctioned)
	assert.Equal(t, models.AllSources, env.SourcesSearched)
	assert.Equal(t, models.AllSources, env.SourcesSucceeded)
	assert.Empty(t, env.SourcesFailed)
	assert.Len(t, env.AllResults, 3)
	assert.Equal(t, models.DefaultFuzzyThreshold, env.FuzzyThreshold)

	// Flattened results follow fixed source priority.
	assert.Equal(t, models.SourceOpenSanctions, env.AllResults[0].Source)
	assert.Equal(t, models.SourceSanctionsIO, env.AllResults[1].Source)
	assert.Equal(t, models.SourceOffshoreLeaks, env.AllResults[2].Source)
}

func TestSearchOneSourceFails(t *testing.T) {
	agg, _, sio, _ := putinAggregator(t)
	sio.err = source.Errorf(models.SourceSanctionsIO, source.ErrTimeout, "request timed out")
	sio.records = nil

	env, err := agg.Search(context.Background(), models.SearchRequest{Query: "Vladimir Putin"})
	require.NoError(t, err, "a partial answer is still an answer")

	assert.Equal(t, 2, env.TotalResults)
	assert.Equal(t, []models.SourceID{models.SourceSanctionsIO}, env.SourcesFailed)
	assert.Equal(t, []models.SourceID{models.SourceOpenSanctions, models.SourceOffshoreLeaks}, env.SourcesSucceeded)
	assert.False(t, env.AllFailed())

	outcome := env.ResultsBySource[models.SourceSanctionsIO]
	assert.False(t, outcome.Succeeded())
	assert.Contains(t, outcome.Error, "timeout")
	assert.Empty(t, outcome.Results)
}

func TestSearchAllSourcesFail(t *testing.T) {
	agg, os, sio, off := putinAggregator(t)
	for _, c := range []*stubClient{os, sio, off} {
		c.err = source.Errorf(c.id, source.ErrUpstream, "boom")
		c.records = nil
	}

	env, err := agg.Search(context.Background(), models.SearchRequest{Query: "Vladimir Putin"})
	require.NoError(t, err)
	assert.True(t, env.AllFailed())
	assert.Equal(t, 0, env.TotalResults)
	assert.Empty(t, env.AllResults)
}

func TestSearchInvalidQueryCallsNoSources(t *testing.T) {
	agg, os, sio, off := putinAggregator(t)

	_, err := agg.Search(context.Background(), models.SearchRequest{Query: "x"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	assert.Zero(t, os.calls.Load())
	assert.Zero(t, sio.calls.Load())
	assert.Zero(t, off.calls.Load())
}

func TestSearchMinimumLengthQueryAccepted(t *testing.T) {
	agg, _, _, _ := putinAggregator(t)
	_, err := agg.Search(context.Background(), models.SearchRequest{Query: "xx"})
	assert.NoError(t, err)
}

func TestSearchSubsetOfSources(t *testing.T) {
	agg, os, sio, off := putinAggregator(t)

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:   "Vladimir Putin",
		Sources: []models.SourceID{models.SourceOffshoreLeaks, models.SourceOpenSanctions},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.SourceID{models.SourceOpenSanctions, models.SourceOffshoreLeaks},
		env.SourcesSearched, "requested sources are reordered to priority order")
	assert.Zero(t, sio.calls.Load())
	assert.Equal(t, int32(1), os.calls.Load())
	assert.Equal(t, int32(1), off.calls.Load())
	assert.NotContains(t, env.ResultsBySource, models.SourceSanctionsIO)
}

func TestSearchExactMode(t *testing.T) {
	os := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{
		record(models.SourceOpenSanctions, "John Smith", true),
		record(models.SourceOpenSanctions, "Jon Smyth", true),
		record(models.SourceOpenSanctions, "Jane Doe", true, "john smith"),
	}}
	agg := New([]source.Client{os}, Options{}, newTestLogger(t))

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:      "John Smith",
		SearchType: models.ModeExact,
		Sources:    []models.SourceID{models.SourceOpenSanctions},
	})
	require.NoError(t, err)

	require.Equal(t, 2, env.TotalResults, "only normalized-equal names and aliases survive exact mode")
	for _, r := range env.AllResults {
		assert.Equal(t, 100, r.MatchScore)
	}
}

func TestSearchFuzzyThresholdFilters(t *testing.T) {
	os := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{
		record(models.SourceOpenSanctions, "Vladimir Putin", true),
		record(models.SourceOpenSanctions, "Acme Widget Factory", false),
	}}
	agg := New([]source.Client{os}, Options{}, newTestLogger(t))

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:   "Vladimir Putin",
		Sources: []models.SourceID{models.SourceOpenSanctions},
	})
	require.NoError(t, err)
	require.Equal(t, 1, env.TotalResults)
	assert.Equal(t, "Vladimir Putin", env.AllResults[0].Name)
}

func TestSearchResultsSortedByScore(t *testing.T) {
	os := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{
		record(models.SourceOpenSanctions, "Vladimir Putinov", true),
		record(models.SourceOpenSanctions, "Vladimir Putin", true),
	}}
	agg := New([]source.Client{os}, Options{}, newTestLogger(t))

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:          "Vladimir Putin",
		Sources:        []models.SourceID{models.SourceOpenSanctions},
		FuzzyThreshold: 50,
	})
	require.NoError(t, err)

	results := env.ResultsBySource[models.SourceOpenSanctions].Results
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].MatchScore, results[i].MatchScore)
	}
	assert.Equal(t, "Vladimir Putin", results[0].Name)
}

func TestSearchLimitCapsPerSource(t *testing.T) {
	var records []models.EntityRecord
	for i := 0; i < 10; i++ {
		records = append(records, record(models.SourceOpenSanctions, "John Smith", true))
	}
	os := &stubClient{id: models.SourceOpenSanctions, records: records}
	agg := New([]source.Client{os}, Options{}, newTestLogger(t))

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:   "John Smith",
		Sources: []models.SourceID{models.SourceOpenSanctions},
		Limit:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, env.TotalResults)
}

func TestSearchTotalsAreSums(t *testing.T) {
	agg, _, _, _ := putinAggregator(t)

	env, err := agg.Search(context.Background(), models.SearchRequest{Query: "Vladimir Putin"})
	require.NoError(t, err)

	sumCount, sumSanctioned := 0, 0
	for _, o := range env.ResultsBySource {
		sumCount += o.Count
		sumSanctioned += o.SanctionedCount
	}
	assert.Equal(t, sumCount, env.TotalResults)
	assert.Equal(t, sumSanctioned, env.TotalSanctioned)
	assert.Len(t, env.AllResults, sumCount)
}

func TestSearchIdempotent(t *testing.T) {
	agg, _, _, _ := putinAggregator(t)
	req := models.SearchRequest{Query: "Vladimir Putin"}

	first, err := agg.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := agg.Search(context.Background(), req)
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2, "same input and same source data give byte-identical envelopes")
}

func TestSearchBreakerSkipsFailingSource(t *testing.T) {
	os := &stubClient{id: models.SourceOpenSanctions,
		err: source.Errorf(models.SourceOpenSanctions, source.ErrUpstream, "boom")}
	agg := New([]source.Client{os}, Options{FailureThreshold: 2, RetryAfter: time.Hour}, newTestLogger(t))

	req := models.SearchRequest{Query: "John Smith", Sources: []models.SourceID{models.SourceOpenSanctions}}
	for i := 0; i < 2; i++ {
		env, err := agg.Search(context.Background(), req)
		require.NoError(t, err)
		assert.Contains(t, env.ResultsBySource[models.SourceOpenSanctions].Error, "boom")
	}
	assert.Equal(t, int32(2), os.calls.Load())

	// Third search is rejected by the open breaker without touching the client.
	env, err := agg.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "circuit breaker open", env.ResultsBySource[models.SourceOpenSanctions].Error)
	assert.Equal(t, int32(2), os.calls.Load())
}

func TestSearchEmptyResultsIsSuccess(t *testing.T) {
	os := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{}}
	agg := New([]source.Client{os}, Options{}, newTestLogger(t))

	env, err := agg.Search(context.Background(), models.SearchRequest{
		Query:   "Nobody Nowhere",
		Sources: []models.SourceID{models.SourceOpenSanctions},
	})
	require.NoError(t, err)

	outcome := env.ResultsBySource[models.SourceOpenSanctions]
	assert.True(t, outcome.Succeeded())
	assert.False(t, outcome.Found)
	assert.Equal(t, 0, outcome.Count)
	assert.False(t, env.AllFailed())
}
