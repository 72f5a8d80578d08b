package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bouksibkhalid-create/cleargate/internal/models"
)

func connectionsCmd() *cobra.Command {
	var (
		depth    int
		maxNodes int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "connections [node-id]",
		Short: "Show the offshore-leaks relationship graph around a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			if !cfg.Neo4j.Enabled() {
				return fmt.Errorf("connections: neo4j.uri is not configured")
			}

			var nodeID int64
			if _, err := fmt.Sscanf(args[0], "%d", &nodeID); err != nil {
				return fmt.Errorf("connections: node-id must be an integer: %w", err)
			}

			driver, err := newDriver()
			if err != nil {
				return fmt.Errorf("connections: connecting to neo4j: %w", err)
			}
			defer closeDriver(context.Background(), driver, logger)

			svc := newGraphService(driver, logger)
			resp, err := svc.Connections(cmd.Context(), models.ConnectionRequest{
				NodeID:   nodeID,
				Depth:    depth,
				MaxNodes: maxNodes,
			})
			if err != nil {
				return fmt.Errorf("connections: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Printf("Center: %s (node %d), depth %d\n", resp.NodeName, resp.NodeID, resp.Graph.Depth)
			fmt.Printf("Nodes: %d, Edges: %d\n\n", resp.Graph.NodeCount, resp.Graph.EdgeCount)
			for i := range resp.Graph.Edges {
				e := &resp.Graph.Edges[i]
				fmt.Printf("%s -[%s]-> %s\n", nodeLabel(resp.Graph, e.Source), e.RelationshipType, nodeLabel(resp.Graph, e.Target))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "traversal depth 1-3 (default 2)")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "max nodes returned 1-100 (default 50)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full graph as JSON")
	return cmd
}

func nodeLabel(g models.ConnectionGraph, id string) string {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return g.Nodes[i].Label
		}
	}
	return id
}
