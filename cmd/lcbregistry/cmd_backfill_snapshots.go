package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lcbregistry/internal/archive"
)

var backfillSnapshotsCmd = &cobra.Command{
	Use:   "backfill-snapshots [dir]",
	Short: "Ingest co_archive HTML snapshots from a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Join(cfg.DataDir, "snapshots")
		if len(args) == 1 {
			dir = args[0]
		}
		res, err := archive.BackfillSnapshots(db.Conn(), logger, dir)
		if err != nil {
			return fmt.Errorf("backfill snapshots: %w", err)
		}
		fmt.Printf("files=%d inserted=%d skipped=%d\n", res.FilesProcessed, res.Inserted, res.Skipped)
		return nil
	},
}
