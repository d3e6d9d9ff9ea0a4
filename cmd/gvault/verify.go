package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphvault/graphvault-go/internal/archive"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <path-or-name>",
	Short: "Check an archive's SHA-256 against its sidecar",
	Long: `Verify recomputes the hash of an archive's data file and compares it
to the recorded sidecar value. No database connection is made.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			// Bare names live in the backup directory
			for _, candidate := range []string{
				filepath.Join(cfg.Backup.Directory, path),
				filepath.Join(cfg.Backup.Directory, path+".zip"),
			} {
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
					break
				}
			}
		}

		reader := archive.NewReader(engLog)
		defer reader.Close()

		result, err := reader.Verify(path)
		if err != nil {
			return err
		}

		if result.Matched {
			fmt.Printf("OK  %s\n", filepath.Base(result.DataFile))
			fmt.Printf("    sha256 %s\n", result.Hash)
			return nil
		}

		fmt.Printf("MISMATCH  %s\n", filepath.Base(result.DataFile))
		fmt.Printf("    recorded %s\n", result.Expected)
		fmt.Printf("    computed %s\n", result.Hash)
		return fmt.Errorf("archive failed integrity check")
	},
}
