package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault-go/internal/engine"
)

var backupTag string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a full backup of the target graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := engine.New(ctx, cfg, nil, engLog)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		result, err := eng.CreateBackup(ctx, backupTag)
		if err != nil {
			return err
		}

		fmt.Printf("Backup created\n")
		fmt.Printf("  Data:       %s\n", filepath.Base(result.DataFile))
		fmt.Printf("  Bundle:     %s\n", filepath.Base(result.BundleFile))
		fmt.Printf("  SHA-256:    %s\n", result.Hash)
		fmt.Printf("  Nodes:      %d\n", result.Archive.Metadata.Statistics.TotalNodes)
		fmt.Printf("  Rels:       %d\n", result.Archive.Metadata.Statistics.TotalRelationships)
		fmt.Printf("  Size:       %d bytes (%.1f%% compressed)\n", result.RawSize, result.Ratio())
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupTag, "tag", "", "optional tag embedded in the archive name")
}
