// Package enrich produces analyst-facing risk narratives for screening
// results using Claude. It is an optional layer on top of the aggregator;
// searches work without it.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bouksibkhalid-create/cleargate/internal/metrics"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

const (
	// enrichMaxTokens caps Claude's response length per enrichment.
	enrichMaxTokens = 1024

	// enrichTopCandidates bounds how many candidates are described in the
	// prompt so it stays well inside the context window.
	enrichTopCandidates = 10
)

// Summary is the model's read on one screening envelope.
type Summary struct {
	Query      string `json:"query"`
	RiskNote   string `json:"risk_note"`
	Model      string `json:"model"`
	Candidates int    `json:"candidates_reviewed"`
}

// Enricher turns a search envelope into a short risk narrative.
type Enricher struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// New creates an Enricher backed by Claude.
func New(apiKey, model string, logger *slog.Logger) *Enricher {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Enricher{client: &c, model: model, logger: logger}
}

// Summarize asks Claude for a compliance-analyst style note on the top
// candidates in the envelope. A search with no results yields a note saying
// so without calling the model.
func (e *Enricher) Summarize(ctx context.Context, env *models.SearchEnvelope) (*Summary, error) {
	metrics.Enrichments.Add(1)

	if env.TotalResults == 0 {
		return &Summary{
			Query:    env.Query,
			RiskNote: fmt.Sprintf("No matches found for %q across the searched sources.", env.Query),
			Model:    e.model,
		}, nil
	}

	candidates := env.AllResults
	if len(candidates) > enrichTopCandidates {
		candidates = candidates[:enrichTopCandidates]
	}

	prompt := buildPrompt(env, candidates)
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: enrichMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enriching %q: %w", env.Query, err)
	}

	var note string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			note = strings.TrimSpace(resp.Content[i].Text)
			break
		}
	}
	if note == "" {
		return nil, fmt.Errorf("enriching %q: empty model response", env.Query)
	}

	e.logger.Debug("enrichment complete", "query", env.Query, "candidates", len(candidates))
	return &Summary{
		Query:      env.Query,
		RiskNote:   note,
		Model:      e.model,
		Candidates: len(candidates),
	}, nil
}

func buildPrompt(env *models.SearchEnvelope, candidates []models.MatchedCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a sanctions compliance analyst. Screening query: %q.\n", env.Query)
	fmt.Fprintf(&b, "Total matches: %d, of which %d are on sanctions lists.\n\n", env.TotalResults, env.TotalSanctioned)
	b.WriteString("Top candidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (source=%s, kind=%s, score=%d, sanctioned=%t",
			i+1, c.Name, c.Source, c.Kind, c.MatchScore, c.IsSanctioned)
		for _, p := range c.SanctionPrograms {
			fmt.Fprintf(&b, ", program=%s", p.Program)
		}
		b.WriteString(")\n")
	}
	b.WriteString("\nWrite a short risk assessment (max 150 words): who the strongest match likely is, " +
		"what lists they appear on, and what an analyst should verify next. Output plain prose only.")
	return b.String()
}
