// Package graph traverses the offshore-leaks relationship graph in Neo4j,
// returning bounded neighborhoods around a node of interest.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bouksibkhalid-create/cleargate/internal/metrics"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

// ErrNodeNotFound is returned when the requested node id does not exist.
var ErrNodeNotFound = errors.New("node not found")

// Service runs connection traversals. The driver is shared with the
// offshore-leaks search client.
type Service struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
	logger  *slog.Logger
}

// NewService wraps an existing Neo4j driver.
func NewService(driver neo4j.DriverWithContext, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{driver: driver, timeout: timeout, logger: logger}
}

// Connections resolves the center node and walks its neighborhood. The only
// error callers see besides infrastructure failures is ErrNodeNotFound or a
// *models.ValidationError.
func (s *Service) Connections(ctx context.Context, req models.ConnectionRequest) (*models.ConnectionResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	metrics.Connections.Add(1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, err := s.nodeName(ctx, req.NodeID)
	if err != nil {
		return nil, err
	}

	graph, err := s.traverse(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("traversal complete",
		"node_id", req.NodeID, "depth", req.Depth,
		"nodes", graph.NodeCount, "edges", graph.EdgeCount)
	return &models.ConnectionResponse{
		NodeID:   req.NodeID,
		NodeName: name,
		Graph:    *graph,
	}, nil
}

func (s *Service) nodeName(ctx context.Context, nodeID int64) (string, error) {
	records, err := s.read(ctx,
		`MATCH (n) WHERE id(n) = $id RETURN n.name AS name LIMIT 1`,
		map[string]any{"id": nodeID})
	if err != nil {
		return "", fmt.Errorf("resolving node %d: %w", nodeID, err)
	}
	if len(records) == 0 {
		return "", ErrNodeNotFound
	}
	name, _ := records[0].AsMap()["name"].(string)
	if name == "" {
		name = "Unknown Entity"
	}
	return name, nil
}

func (s *Service) traverse(ctx context.Context, req models.ConnectionRequest) (*models.ConnectionGraph, error) {
	// Depth cannot be a Cypher parameter inside a variable-length pattern.
	// Normalize caps it at MaxGraphDepth, so interpolating the validated int
	// is safe.
	cypher := fmt.Sprintf(`
MATCH path = (center)-[*1..%d]-(other)
WHERE id(center) = $id
WITH path LIMIT $maxPaths
UNWIND nodes(path) AS n
UNWIND relationships(path) AS r
RETURN collect(DISTINCT {
        id: id(n), name: n.name, label: labels(n)[0],
        countries: n.countries, jurisdiction: n.jurisdiction,
        incorporation_date: n.incorporation_date
    }) AS nodes,
    collect(DISTINCT {
        id: id(r), source: id(startNode(r)), target: id(endNode(r)),
        type: type(r)
    }) AS edges`, req.Depth)

	records, err := s.read(ctx, cypher, map[string]any{
		"id":       req.NodeID,
		"maxPaths": req.MaxNodes * req.Depth,
	})
	if err != nil {
		return nil, fmt.Errorf("traversing from node %d: %w", req.NodeID, err)
	}

	graph := &models.ConnectionGraph{
		Nodes:        []models.GraphNode{},
		Edges:        []models.GraphEdge{},
		CenterNodeID: strconv.FormatInt(req.NodeID, 10),
		Depth:        req.Depth,
	}
	if len(records) == 0 {
		return graph, nil
	}
	m := records[0].AsMap()

	seenNodes := make(map[string]bool)
	if rawNodes, ok := m["nodes"].([]any); ok {
		for _, rn := range rawNodes {
			node, ok := parseNode(rn)
			if !ok || seenNodes[node.ID] {
				continue
			}
			seenNodes[node.ID] = true
			graph.Nodes = append(graph.Nodes, node)
			if len(graph.Nodes) >= req.MaxNodes {
				break
			}
		}
	}

	seenEdges := make(map[string]bool)
	if rawEdges, ok := m["edges"].([]any); ok {
		for _, re := range rawEdges {
			edge, ok := parseEdge(re)
			if !ok || seenEdges[edge.ID] {
				continue
			}
			// Drop edges whose endpoints were cut by the node cap.
			if !seenNodes[edge.Source] || !seenNodes[edge.Target] {
				continue
			}
			seenEdges[edge.ID] = true
			graph.Edges = append(graph.Edges, edge)
		}
	}

	graph.NodeCount = len(graph.Nodes)
	graph.EdgeCount = len(graph.Edges)
	return graph, nil
}

func parseNode(raw any) (models.GraphNode, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return models.GraphNode{}, false
	}
	id, ok := m["id"].(int64)
	if !ok {
		return models.GraphNode{}, false
	}
	label, _ := m["name"].(string)
	if label == "" {
		label = "Unknown"
	}
	nodeType, _ := m["label"].(string)

	props := make(map[string]any)
	if v, ok := m["countries"].(string); ok && v != "" {
		props["countries"] = v
	}
	if v, ok := m["jurisdiction"].(string); ok && v != "" {
		props["jurisdiction"] = v
	}
	if v := isoString(m["incorporation_date"]); v != "" {
		props["incorporation_date"] = v
	}
	return models.GraphNode{
		ID:         strconv.FormatInt(id, 10),
		Label:      label,
		NodeType:   nodeType,
		Properties: props,
	}, true
}

// isoString renders Neo4j temporal property values as ISO strings.
func isoString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case neo4j.Date:
		return t.Time().Format("2006-01-02")
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return ""
	}
}

func parseEdge(raw any) (models.GraphEdge, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return models.GraphEdge{}, false
	}
	id, ok := m["id"].(int64)
	if !ok {
		return models.GraphEdge{}, false
	}
	src, _ := m["source"].(int64)
	dst, _ := m["target"].(int64)
	relType, _ := m["type"].(string)
	return models.GraphEdge{
		ID:               strconv.FormatInt(id, 10),
		Source:           strconv.FormatInt(src, 10),
		Target:           strconv.FormatInt(dst, 10),
		RelationshipType: relType,
	}, true
}

func (s *Service) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
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
