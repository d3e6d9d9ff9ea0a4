package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/graphvault/graphvault-go/internal/engine"
)

var restoreYes bool

var restoreCmd = &cobra.Command{
	Use:   "restore <path-or-name>",
	Short: "Restore a backup archive into the target graph",
	Long: `Restore replays an archive (a .zip bundle or a raw .json data file)
into the configured target. A bare name is resolved against the backup
directory. When the target is not empty, clearing it first requires
confirmation; without a terminal the target is never cleared.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eng, err := engine.New(ctx, cfg, confirmClear, engLog)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		report, err := eng.RestoreBackup(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Restore complete\n")
		fmt.Printf("  Nodes restored:         %d\n", report.NodesRestored)
		fmt.Printf("  Relationships restored: %d\n", report.RelationshipsRestored)
		if report.NodesFailed > 0 {
			fmt.Printf("  Nodes failed:           %d\n", report.NodesFailed)
		}
		if report.RelationshipsFailed > 0 {
			fmt.Printf("  Relationships failed:   %d\n", report.RelationshipsFailed)
		}
		if report.RelationshipsSkipped > 0 {
			fmt.Printf("  Relationships skipped:  %d (dangling endpoints)\n", report.RelationshipsSkipped)
		}
		fmt.Printf("  Target now holds %d nodes, %d relationships\n",
			report.FinalNodes, report.FinalRelationships)
		return nil
	},
}

// confirmClear is the decision the engine consumes before clearing a
// non-empty target. Policy lives here, not in the engine: --yes wins,
// a terminal gets asked, anything else means no.
func confirmClear(nodes, rels int64) bool {
	if restoreYes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}

	fmt.Printf("Target is not empty: %d nodes, %d relationships.\n", nodes, rels)
	fmt.Print("Clear target before restoring? (yes/no): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(line)) == "yes"
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreYes, "yes", false, "clear a non-empty target without prompting")
}
