package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/scraper"
)

var cleanupRedundantKeepFiles bool

var cleanupRedundantCmd = &cobra.Command{
	Use:   "cleanup-redundant",
	Short: "Drop snapshot references (and files) of unchanged scrapes superseded by an earlier identical capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := scraper.CleanupRedundantScrapes(db.Conn(), cleanupRedundantKeepFiles)
		if err != nil {
			return fmt.Errorf("cleanup redundant scrapes: %w", err)
		}
		fmt.Printf("removed=%d\n", removed)
		return nil
	},
}

func init() {
	cleanupRedundantCmd.Flags().BoolVar(&cleanupRedundantKeepFiles, "keep-files", false, "Keep snapshot files on disk; only clear their scrape_log snapshot_path")
}
