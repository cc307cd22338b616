package main

import (
	"fmt"

	"github.com/aretw0/graphlens/internal/presentation/graph"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph FILE",
	Short: "Export the workflow as a Mermaid diagram",
	Long:  `Projects FILE and outputs a Mermaid flowchart of its nodes, links and groups.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, _, app, err := loadSnapshot(cmd, args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.Overlay
		if ids, _ := cmd.Flags().GetInt64Slice("highlight"); len(ids) > 0 {
			overlay = &graph.Overlay{}
			for _, id := range ids {
				overlay.Highlight = append(overlay.Highlight, domain.NodeID(id))
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(snap.Graph, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addProjectFlags(graphCmd)
	graphCmd.Flags().Int64Slice("highlight", nil, "Node ids to highlight")
}
