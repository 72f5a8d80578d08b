package models

// GraphNode is one node in a connection graph around an offshore-leaks entity.
type GraphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	NodeType   string         `json:"node_type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphEdge is one relationship between two graph nodes.
type GraphEdge struct {
	ID               string         `json:"id"`
	Source           string         `json:"source"`
	Target           string         `json:"target"`
	RelationshipType string         `json:"relationship_type"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// ConnectionGraph is the bounded-depth neighborhood around one node.
type ConnectionGraph struct {
	Nodes        []GraphNode `json:"nodes"`
	Edges        []GraphEdge `json:"edges"`
	CenterNodeID string      `json:"center_node_id"`
	Depth        int         `json:"depth"`
	NodeCount    int         `json:"node_count"`
	EdgeCount    int         `json:"edge_count"`
}

const (
	// DefaultGraphDepth is the traversal depth when none is given.
	DefaultGraphDepth = 2

	// MaxGraphDepth bounds traversal depth.
	MaxGraphDepth = 3

	// DefaultGraphNodes is the node cap when none is given.
	DefaultGraphNodes = 50

	// MaxGraphNodes is the hard node cap for one traversal.
	MaxGraphNodes = 100
)

// ConnectionRequest asks for the relationship graph around one node.
type ConnectionRequest struct {
	NodeID   int64 `json:"node_id"`
	Depth    int   `json:"depth,omitempty"`
	MaxNodes int   `json:"max_nodes,omitempty"`
}

// Normalize validates the request in place and applies defaults.
func (r *ConnectionRequest) Normalize() error {
	if r.NodeID < 0 {
		return &ValidationError{Field: "node_id", Msg: "must not be negative"}
	}
	if r.Depth == 0 {
		r.Depth = DefaultGraphDepth
	}
	if r.Depth < 1 || r.Depth > MaxGraphDepth {
		return &ValidationError{Field: "depth", Msg: "must be between 1 and 3"}
	}
	if r.MaxNodes == 0 {
		r.MaxNodes = DefaultGraphNodes
	}
	if r.MaxNodes < 1 || r.MaxNodes > MaxGraphNodes {
		return &ValidationError{Field: "max_nodes", Msg: "must be between 1 and 100"}
	}
	return nil
}

// ConnectionResponse pairs the resolved center node with its graph.
type ConnectionResponse struct {
	NodeID   int64           `json:"node_id"`
	NodeName string          `json:"node_name"`
	Graph    ConnectionGraph `json:"graph"`
}
