// Package main implements the lcbregistry CLI — the WSLCB liquor/cannabis
// license registry ingestion, enrichment, and integrity toolkit.
//
// Command implementations live in cmd_*.go files; this file is the entry
// point, root command, and global flag/state wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lcbregistry/internal/config"
	"lcbregistry/internal/logging"
	"lcbregistry/internal/store"
)

var (
	dataDir string
	verbose bool

	cfg    *config.Config
	db     *store.DB
	logger *zap.Logger

	// exitCode lets a RunE signal a nonzero process exit (e.g. "check" found
	// anomalies) without cobra itself treating the run as an error.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:          "lcbregistry",
	Short:        "Ingest, enrich, and audit the WSLCB license registry",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		cfg, err = config.Load(dataDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err = store.Open(cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $DATA_DIR or ./data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		scrapeCmd,
		backfillSnapshotsCmd,
		backfillDiffsCmd,
		backfillProvenanceCmd,
		refreshAddressesCmd,
		rebuildLinksCmd,
		checkCmd,
		cleanupRedundantCmd,
		rebuildCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
