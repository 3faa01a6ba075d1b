package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lcbregistry/internal/rebuild"
	"lcbregistry/internal/store"
)

var (
	rebuildOutput string
	rebuildVerify bool
	rebuildForce  bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reconstruct a fresh database from archived diffs and snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		output := rebuildOutput
		if output == "" {
			output = filepath.Join(cfg.DataDir, "rebuilt.db")
		}
		if !rebuildForce {
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("%s already exists, pass --force to overwrite", output)
			}
		} else {
			os.Remove(output)
		}

		res, err := rebuild.FromSources(logger, rebuild.Options{
			OutputPath:  output,
			DiffDir:     filepath.Join(cfg.DataDir, "diffs"),
			SnapshotDir: filepath.Join(cfg.DataDir, "snapshots"),
		})
		if err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Printf("diffs: files=%d inserted=%d skipped=%d\n", res.Diffs.FilesProcessed, res.Diffs.Inserted, res.Diffs.Skipped)
		fmt.Printf("snapshots: files=%d inserted=%d skipped=%d\n", res.Snapshots.FilesProcessed, res.Snapshots.Inserted, res.Snapshots.Skipped)
		fmt.Printf("discovered=%d linked=%d\n", res.Discovered, res.Linked)

		if rebuildVerify {
			rebuilt, err := store.Open(output, logger)
			if err != nil {
				return fmt.Errorf("open rebuilt database for verification: %w", err)
			}
			defer rebuilt.Close()

			comparisons, err := rebuild.CompareDatabases(db.Conn(), rebuilt.Conn())
			if err != nil {
				return fmt.Errorf("compare databases: %w", err)
			}
			mismatch := false
			for _, c := range comparisons {
				fmt.Printf("section=%s countA=%d countB=%d missing_in_rebuilt=%d extra_in_rebuilt=%d\n",
					c.Section, c.CountA, c.CountB, len(c.MissingInB), len(c.ExtraInB))
				if c.CountA != c.CountB || len(c.MissingInB) > 0 || len(c.ExtraInB) > 0 {
					mismatch = true
				}
			}
			if mismatch {
				exitCode = 1
			}
		}
		return nil
	},
}

func init() {
	rebuildCmd.Flags().StringVar(&rebuildOutput, "output", "", "Path for the rebuilt database (default: <data-dir>/rebuilt.db)")
	rebuildCmd.Flags().BoolVar(&rebuildVerify, "verify", false, "Compare the rebuilt database against the live one")
	rebuildCmd.Flags().BoolVar(&rebuildForce, "force", false, "Overwrite the output path if it already exists")
}
