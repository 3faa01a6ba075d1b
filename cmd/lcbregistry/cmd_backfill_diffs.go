package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lcbregistry/internal/archive"
	"lcbregistry/internal/model"
)

var (
	backfillDiffsSection string
	backfillDiffsFile    string
	backfillDiffsLimit   int
	backfillDiffsDryRun  bool
)

var backfillDiffsCmd = &cobra.Command{
	Use:   "backfill-diffs [dir]",
	Short: "Ingest co_diff_archive unified-diff files from a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Join(cfg.DataDir, "diffs")
		if len(args) == 1 {
			dir = args[0]
		}
		res, err := archive.BackfillDiffs(db.Conn(), logger, dir, archive.DiffOptions{
			Section: model.Section(backfillDiffsSection),
			File:    backfillDiffsFile,
			Limit:   backfillDiffsLimit,
			DryRun:  backfillDiffsDryRun,
		})
		if err != nil {
			return fmt.Errorf("backfill diffs: %w", err)
		}
		fmt.Printf("files=%d inserted=%d skipped=%d\n", res.FilesProcessed, res.Inserted, res.Skipped)
		return nil
	},
}

func init() {
	backfillDiffsCmd.Flags().StringVar(&backfillDiffsSection, "section", "", "Restrict to one section (new_application, approved, discontinued)")
	backfillDiffsCmd.Flags().StringVar(&backfillDiffsFile, "file", "", "Process only this file")
	backfillDiffsCmd.Flags().IntVar(&backfillDiffsLimit, "limit", 0, "Stop after this many files (0 = no limit)")
	backfillDiffsCmd.Flags().BoolVar(&backfillDiffsDryRun, "dry-run", false, "Parse and report without writing")
}
