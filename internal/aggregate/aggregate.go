// Package aggregate fans a screening search out across all requested sources
// in parallel and folds the per-source outcomes into one envelope.
package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bouksibkhalid-create/cleargate/internal/breaker"
	"github.com/bouksibkhalid-create/cleargate/internal/match"
	"github.com/bouksibkhalid-create/cleargate/internal/metrics"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
	"github.com/bouksibkhalid-create/cleargate/internal/source"
)

// Aggregator coordinates the registered source clients. One breaker guards
// each client; a failing source is skipped for a cooling-off window without
// affecting its siblings.
type Aggregator struct {
	clients  map[models.SourceID]source.Client
	breakers map[models.SourceID]*breaker.Breaker
	logger   *slog.Logger
}

// Options tunes breaker behavior for all sources.
type Options struct {
	FailureThreshold int
	RetryAfter       time.Duration
}

// New builds an Aggregator over the given clients.
func New(clients []source.Client, opts Options, logger *slog.Logger) *Aggregator {
	a := &Aggregator{
		clients:  make(map[models.SourceID]source.Client, len(clients)),
		breakers: make(map[models.SourceID]*breaker.Breaker, len(clients)),
		logger:   logger,
	}
	var bopts []breaker.Option
	if opts.FailureThreshold > 0 {
		bopts = append(bopts, breaker.WithFailureThreshold(opts.FailureThreshold))
	}
	if opts.RetryAfter > 0 {
		bopts = append(bopts, breaker.WithRetryAfter(opts.RetryAfter))
	}
	for _, c := range clients {
		a.clients[c.ID()] = c
		a.breakers[c.ID()] = breaker.New(string(c.ID()), bopts...)
	}
	return a
}

// Sources lists the registered source ids in priority order.
func (a *Aggregator) Sources() []models.SourceID {
	out := make([]models.SourceID, 0, len(a.clients))
	for _, id := range models.AllSources {
		if _, ok := a.clients[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Client returns the registered client for a source, if any.
func (a *Aggregator) Client(id models.SourceID) (source.Client, bool) {
	c, ok := a.clients[id]
	return c, ok
}

// Search validates the request, queries every requested source concurrently
// and assembles the envelope. The only error it returns is a
// *models.ValidationError; source failures are folded into the envelope so a
// partial answer is still an answer. No source client is called when
// validation fails.
func (a *Aggregator) Search(ctx context.Context, req models.SearchRequest) (*models.SearchEnvelope, error) {
	if err := req.Normalize(); err != nil {
		metrics.SearchErrors.Add(1)
		return nil, err
	}
	metrics.Searches.Add(1)

	// Requested sources in fixed priority order, so the envelope layout never
	// depends on caller-supplied ordering.
	searched := make([]models.SourceID, 0, len(req.Sources))
	requested := make(map[models.SourceID]bool, len(req.Sources))
	for _, id := range req.Sources {
		requested[id] = true
	}
	for _, id := range models.AllSources {
		if requested[id] {
			searched = append(searched, id)
		}
	}

	outcomes := make([]models.SourceOutcome, len(searched))
	var g errgroup.Group
	for i, id := range searched {
		g.Go(func() error {
			outcomes[i] = a.searchSource(ctx, id, req)
			return nil
		})
	}
	// Workers never return errors; every outcome is written in place.
	_ = g.Wait()

	env := &models.SearchEnvelope{
		Query:           req.Query,
		SearchType:      req.SearchType,
		ResultsBySource: make(map[models.SourceID]models.SourceOutcome, len(searched)),
		AllResults:      []models.MatchedCandidate{},
		SourcesSearched: searched,
		FuzzyThreshold:  req.FuzzyThreshold,
	}
	for _, o := range outcomes {
		env.ResultsBySource[o.Source] = o
	}

	// Flatten in priority order: within a source results are already sorted,
	// across sources the priority order decides.
	for _, id := range searched {
		o := env.ResultsBySource[id]
		if !o.Succeeded() {
			env.SourcesFailed = append(env.SourcesFailed, id)
			continue
		}
		env.SourcesSucceeded = append(env.SourcesSucceeded, id)
		env.AllResults = append(env.AllResults, o.Results...)
		env.TotalResults += o.Count
		env.TotalSanctioned += o.SanctionedCount
	}
	if env.SourcesSucceeded == nil {
		env.SourcesSucceeded = []models.SourceID{}
	}
	if env.SourcesFailed == nil {
		env.SourcesFailed = []models.SourceID{}
	}

	a.logger.Info("search complete",
		"query", req.Query,
		"search_type", req.SearchType,
		"total_results", env.TotalResults,
		"total_sanctioned", env.TotalSanctioned,
		"sources_failed", len(env.SourcesFailed))
	return env, nil
}

// searchSource runs one source call end to end. It always returns an
// outcome; failures are recorded in the outcome's Error field.
func (a *Aggregator) searchSource(ctx context.Context, id models.SourceID, req models.SearchRequest) models.SourceOutcome {
	outcome := models.SourceOutcome{Source: id, Results: []models.MatchedCandidate{}}

	client, ok := a.clients[id]
	if !ok {
		outcome.Error = "source not configured"
		return outcome
	}

	br := a.breakers[id]
	if br.IsOpen() {
		metrics.SourceSkips.Add(1)
		a.logger.Warn("skipping source, circuit open", "source", id)
		outcome.Error = "circuit breaker open"
		return outcome
	}

	metrics.SourceCalls.Add(1)
	records, err := client.FetchCandidates(ctx, req.Query, req.SearchType, req.Limit)
	if err != nil {
		metrics.SourceFailures.Add(1)
		if _, change := br.RecordFailure(); change.Opened {
			a.logger.Warn("circuit breaker opened", "source", id)
		}
		outcome.Error = source.AsError(id, err).Error()
		return outcome
	}
	if _, change := br.RecordSuccess(); change.Closed {
		a.logger.Info("circuit breaker closed", "source", id)
	}

	outcome.Results = a.scoreAndRank(req, records)
	outcome.Count = len(outcome.Results)
	outcome.Found = outcome.Count > 0
	for _, r := range outcome.Results {
		if r.IsSanctioned {
			outcome.SanctionedCount++
		}
	}
	return outcome
}

// scoreAndRank rescores candidates locally with one uniform scorer so numbers
// are comparable across sources, filters by mode, and sorts descending by
// score. The sort is stable so ties keep upstream order.
func (a *Aggregator) scoreAndRank(req models.SearchRequest, records []models.EntityRecord) []models.MatchedCandidate {
	matched := make([]models.MatchedCandidate, 0, len(records))
	for _, rec := range records {
		switch req.SearchType {
		case models.ModeExact:
			if match.ExactMatch(req.Query, rec.Name, rec.Aliases) {
				matched = append(matched, models.MatchedCandidate{EntityRecord: rec, MatchScore: 100})
			}
		default:
			score := match.Score(req.Query, rec.Name, rec.Aliases)
			if score >= req.FuzzyThreshold {
				matched = append(matched, models.MatchedCandidate{EntityRecord: rec, MatchScore: score})
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].MatchScore > matched[j].MatchScore
	})

	if len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}
	return matched
}
