package source

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// fulltextIndex is the Neo4j full-text index over offshore-leaks node names.
const fulltextIndex = "offshore_fulltext"

// fulltextMinScore drops barely-relevant index hits before local rescoring.
const fulltextMinScore = 0.3

// OffshoreLeaksClient searches the ICIJ offshore-leaks graph in Neo4j.
// It is relationship data, not a sanctions list, so records are never
// sanctioned. The driver is shared with the graph traversal service and is
// safe for concurrent use.
type OffshoreLeaksClient struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
	logger  *slog.Logger
}

// NewOffshoreLeaksClient wraps an existing Neo4j driver.
// timeout bounds each FetchCandidates call; zero means DefaultTimeout.
func NewOffshoreLeaksClient(driver neo4j.DriverWithContext, timeout time.Duration, logger *slog.Logger) *OffshoreLeaksClient {
	if timeout <= 0 {
		timeout = DefaultTimeout * time.Second
	}
	return &OffshoreLeaksClient{driver: driver, timeout: timeout, logger: logger}
}

// ID implements Client.
func (c *OffshoreLeaksClient) ID() models.SourceID { return models.SourceOffshoreLeaks }

const fulltextCypher = `
CALL db.index.fulltext.queryNodes($index, $query)
YIELD node, score
WHERE score > $minScore
WITH node, score
ORDER BY score DESC
LIMIT $limit
RETURN
    id(node) AS node_id,
    node.name AS name,
    labels(node)[0] AS node_type,
    node.countries AS countries,
    node.jurisdiction AS jurisdiction,
    node.jurisdiction_description AS jurisdiction_description,
    node.incorporation_date AS incorporation_date,
    node.service_provider AS service_provider,
    node.status AS status,
    node.address AS address,
    node.sourceID AS source_dataset,
    score`

// containsCypher is the fallback when the full-text index does not exist.
const containsCypher = `
MATCH (node)
WHERE node.name CONTAINS $query OR node.address CONTAINS $query
WITH node,
     CASE WHEN node.name CONTAINS $query THEN 10.0 ELSE 5.0 END AS score
ORDER BY score DESC
LIMIT $limit
RETURN
    id(node) AS node_id,
    node.name AS name,
    labels(node)[0] AS node_type,
    node.countries AS countries,
    node.jurisdiction AS jurisdiction,
    node.jurisdiction_description AS jurisdiction_description,
    node.incorporation_date AS incorporation_date,
    node.service_provider AS service_provider,
    node.status AS status,
    node.address AS address,
    node.sourceID AS source_dataset,
    score`

// FetchCandidates implements Client using the full-text index, falling back
// to a CONTAINS scan when the index is missing.
func (c *OffshoreLeaksClient) FetchCandidates(ctx context.Context, query string, _ models.SearchMode, limit int) ([]models.EntityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.run(ctx, fulltextCypher, map[string]any{
		"index":    fulltextIndex,
		"query":    query,
		"minScore": fulltextMinScore,
		"limit":    limit,
	})
	if err != nil {
		if !isMissingIndex(err) {
			return nil, AsError(c.ID(), err)
		}
		c.logger.Warn("offshore full-text index missing, falling back to CONTAINS scan", "query", query)
		records, err = c.run(ctx, containsCypher, map[string]any{
			"query": query,
			"limit": limit,
		})
		if err != nil {
			return nil, AsError(c.ID(), err)
		}
	}

	out := make([]models.EntityRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, c.parseRecord(rec))
	}

	c.logger.Debug("offshore search complete", "query", query, "results", len(out))
	return out, nil
}

func (c *OffshoreLeaksClient) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (c *OffshoreLeaksClient) parseRecord(rec *neo4j.Record) models.EntityRecord {
	m := rec.AsMap()

	name, _ := m["name"].(string)
	if name == "" {
		name = "Unknown Entity"
	}
	nodeType, _ := m["node_type"].(string)
	nodeID, _ := m["node_id"].(int64)

	var countries []string
	if raw, _ := m["countries"].(string); raw != "" {
		for _, part := range strings.Split(raw, ";") {
			if part = strings.TrimSpace(part); part != "" {
				countries = append(countries, part)
			}
		}
	}
	if countries == nil {
		countries = []string{}
	}

	incorporated, _ := m["incorporation_date"].(string)

	return models.EntityRecord{
		ID:               strconv.FormatInt(nodeID, 10),
		Name:             name,
		Aliases:          []string{},
		Kind:             kindFromNodeType(nodeType),
		BirthDate:        incorporated,
		Nationalities:    countries,
		IsSanctioned:     false,
		SanctionPrograms: []models.SanctionProgram{},
		Source:           c.ID(),
		Raw:              m,
	}
}

// kindFromNodeType maps ICIJ node labels to entity kinds. Officers are the
// people behind offshore entities; entities and intermediaries are firms.
func kindFromNodeType(label string) models.EntityKind {
	switch label {
	case "Officer":
		return models.KindPerson
	case "Entity", "Intermediary":
		return models.KindOrganization
	default:
		return models.KindUnknown
	}
}

func isMissingIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such index") || strings.Contains(msg, "index not found") ||
		strings.Contains(msg, "there is no such fulltext schema index")
}

var _ Client = (*OffshoreLeaksClient)(nil)
