package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// OpenSanctionsClient queries the OpenSanctions matching API.
//
// API documentation: https://www.opensanctions.org/docs/api/
type OpenSanctionsClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenSanctionsClient creates a client for the OpenSanctions API.
// timeout bounds each FetchCandidates call; zero means DefaultTimeout.
func NewOpenSanctionsClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OpenSanctionsClient {
	if timeout <= 0 {
		timeout = DefaultTimeout * time.Second
	}
	return &OpenSanctionsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

// ID implements Client.
func (c *OpenSanctionsClient) ID() models.SourceID { return models.SourceOpenSanctions }

type osSearchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type osEntity struct {
	ID         string   `json:"id"`
	Caption    string   `json:"caption"`
	Schema     string   `json:"schema"`
	Datasets   []string `json:"datasets"`
	Properties struct {
		Alias       []string `json:"alias"`
		BirthDate   []string `json:"birthDate"`
		Nationality []string `json:"nationality"`
		Topics      []string `json:"topics"`
		Program     []string `json:"program"`
	} `json:"properties"`
}

// FetchCandidates implements Client.
func (c *OpenSanctionsClient) FetchCandidates(ctx context.Context, query string, mode models.SearchMode, limit int) ([]models.EntityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if mode == models.ModeFuzzy {
		params.Set("fuzzy", "true")
	}

	reqURL := c.baseURL + "/search/default?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, Errorf(c.ID(), ErrUpstream, "creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, AsError(c.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, Errorf(c.ID(), statusKind(resp.StatusCode), "opensanctions returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed osSearchResponse
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

	c.logger.Debug("opensanctions search complete", "query", query, "results", len(records))
	return records, nil
}

func (c *OpenSanctionsClient) parseEntity(raw json.RawMessage) (models.EntityRecord, error) {
	var ent osEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return models.EntityRecord{}, Errorf(c.ID(), ErrParse, "decoding entity: %v", err)
	}
	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return models.EntityRecord{}, Errorf(c.ID(), ErrParse, "decoding entity payload: %v", err)
	}

	name := ent.Caption
	if name == "" {
		name = "Unknown"
	}

	rec := models.EntityRecord{
		ID:               ent.ID,
		Name:             name,
		Aliases:          ent.Properties.Alias,
		Kind:             kindFromSchema(ent.Schema),
		Nationalities:    ent.Properties.Nationality,
		IsSanctioned:     hasTopic(ent.Properties.Topics, "sanction"),
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
	if len(ent.Properties.BirthDate) > 0 {
		rec.BirthDate = ent.Properties.BirthDate[0]
	}
	for _, p := range ent.Properties.Program {
		rec.SanctionPrograms = append(rec.SanctionPrograms, models.SanctionProgram{Program: p})
	}

	return rec, nil
}

// kindFromSchema maps OpenSanctions followthemoney schemata to entity kinds.
func kindFromSchema(schema string) models.EntityKind {
	switch schema {
	case "Person":
		return models.KindPerson
	case "Organization", "Company", "LegalEntity", "PublicBody":
		return models.KindOrganization
	case "Vessel":
		return models.KindVessel
	default:
		return models.KindUnknown
	}
}

func hasTopic(topics []string, want string) bool {
	for _, t := range topics {
		if t == want {
			return true
		}
	}
	return false
}

var _ Client = (*OpenSanctionsClient)(nil)

// String identifies the client in health output.
func (c *OpenSanctionsClient) String() string {
	return fmt.Sprintf("opensanctions(%s)", c.baseURL)
}
