package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// SanctionsIOClient queries the sanctions.io consolidated screening API.
// Every record it returns comes from a sanctions list, so IsSanctioned is
// always true.
//
// API documentation: https://api-docs.sanctions.io/
type SanctionsIOClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewSanctionsIOClient creates a client for the sanctions.io API.
// timeout bounds each FetchCandidates call; zero means DefaultTimeout.
func NewSanctionsIOClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *SanctionsIOClient {
	if timeout <= 0 {
		timeout = DefaultTimeout * time.Second
	}
	return &SanctionsIOClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

// ID implements Client.
func (c *SanctionsIOClient) ID() models.SourceID { return models.SourceSanctionsIO }

type sioSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type sioEntity struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	ListType      string   `json:"list_type"`
	Programs      []string `json:"programs"`
	AKAs          []string `json:"akas"`
	DatesOfBirth  []string `json:"dates_of_birth"`
	Nationalities []string `json:"nationalities"`
	Remarks       string   `json:"remarks"`
}

// FetchCandidates implements Client. sanctions.io performs its own server
// side fuzzy matching; the aggregator still re-scores locally.
func (c *SanctionsIOClient) FetchCandidates(ctx context.Context, query string, mode models.SearchMode, limit int) ([]models.EntityRecord, error) {
	if c.apiKey == "" {
		return nil, Errorf(c.ID(), ErrUnauthorized, "sanctions.io API key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("name", query)
	params.Set("fuzzy", strconv.FormatBool(mode == models.ModeFuzzy))
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, Errorf(c.ID(), ErrUpstream, "creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, AsError(c.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, Errorf(c.ID(), statusKind(resp.StatusCode), "sanctions.io returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed sioSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Errorf(c.ID(), ErrParse, "decoding response: %v", err)
	}

	records := make([]models.EntityRecord, 0, len(parsed.Results))
	for _, raw := range parsed.Results {
		rec, err := c.parseEntity(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	c.logger.Debug("sanctions.io search complete", "query", query, "results", len(records))
	return records, nil
}

func (c *SanctionsIOClient) parseEntity(raw json.RawMessage) (models.EntityRecord, error) {
	var ent sioEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return models.EntityRecord{}, Errorf(c.ID(), ErrParse, "decoding entity: %v", err)
	}
	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return models.EntityRecord{}, Errorf(c.ID(), ErrParse, "decoding entity payload: %v", err)
	}

	name := ent.Name
	if name == "" {
		name = "Unknown"
	}

	rec := models.EntityRecord{
		ID:               ent.ID,
		Name:             name,
		Aliases:          ent.AKAs,
		Kind:             kindFromListedType(ent.Type),
		Nationalities:    ent.Nationalities,
		IsSanctioned:     true,
		SanctionPrograms: []models.SanctionProgram{},
		Source:           c.ID(),
		Raw:              rawMap,
	}
	if rec.Aliases == nil {
		rec.Aliases = []string{}
	}
	if rec.Nationalities == nil {
		rec.Nationalities = []string{}
	}
	if len(ent.DatesOfBirth) > 0 {
		rec.BirthDate = ent.DatesOfBirth[0]
	}
	for _, p := range ent.Programs {
		rec.SanctionPrograms = append(rec.SanctionPrograms, models.SanctionProgram{
			Program:   p,
			Authority: ent.ListType,
			Reason:    ent.Remarks,
		})
	}

	return rec, nil
}

// kindFromListedType maps sanctions.io subject types to entity kinds.
func kindFromListedType(t string) models.EntityKind {
	switch t {
	case "Individual", "individual", "Person":
		return models.KindPerson
	case "Entity", "entity", "Organization":
		return models.KindOrganization
	case "Vessel", "vessel":
		return models.KindVessel
	default:
		return models.KindUnknown
	}
}

var _ Client = (*SanctionsIOClient)(nil)
