package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault-go/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node, relationship, and label counts of the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := engine.New(ctx, cfg, nil, engLog)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		status, err := eng.Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Target: %s\n", cfg.Neo4j.URI)
		fmt.Printf("  Nodes:         %d\n", status.Nodes)
		fmt.Printf("  Relationships: %d\n", status.Relationships)

		if len(status.Labels) > 0 {
			fmt.Println("  Labels:")
			labels := make([]string, 0, len(status.Labels))
			for l := range status.Labels {
				labels = append(labels, l)
			}
			sort.Slice(labels, func(i, j int) bool {
				return status.Labels[labels[i]] > status.Labels[labels[j]]
			})
			for _, l := range labels {
				fmt.Printf("    %-24s %d\n", l, status.Labels[l])
			}
		}
		return nil
	},
}
