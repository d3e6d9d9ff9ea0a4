package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault-go/internal/archive"
	"github.com/graphvault/graphvault-go/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent backups from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Reading the ledger needs no database connection
		entries, err := historyEntries(historyLimit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No backups recorded")
			return nil
		}

		for _, e := range entries {
			tag := ""
			if e.Tag != "" {
				tag = "  [" + e.Tag + "]"
			}
			fmt.Printf("%s  %-40s  %d nodes, %d rels%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.BundleFile, e.Nodes, e.Relationships, tag)
		}
		return nil
	},
}

// historyEntries returns ledger records newest first.
func historyEntries(limit int) ([]model.LedgerEntry, error) {
	ledger := archive.NewLedger(cfg.Backup.Directory)
	entries, err := ledger.Entries()
	if err != nil {
		return nil, err
	}

	out := make([]model.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of entries to show (0 = all)")
}
