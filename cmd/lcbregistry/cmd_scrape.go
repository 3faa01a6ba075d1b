package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/addressvalidator"
	"lcbregistry/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch the live registry page and ingest any new rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		validator := addressvalidator.NewHTTPValidator(
			cfg.AddressValidatorURL, cfg.AddressValidatorAPIKey, cfg.ValidatorTimeout, cfg.ValidatorThrottle,
		)
		res, err := scraper.Run(ctx, db.Conn(), logger, scraper.Options{
			URL:         cfg.UpstreamURL,
			SnapshotDir: cfg.DataDir,
			Timeout:     cfg.ScrapeTimeout,
			BatchSize:   cfg.BatchSize,
			Validator:   validator,
		})
		if err != nil {
			return fmt.Errorf("scrape: %w", err)
		}
		fmt.Printf("status=%s inserted=%d skipped=%d failed=%d snapshot=%s\n",
			res.Status, res.Ingest.Inserted, res.Ingest.Skipped, res.Ingest.Failed, res.SnapshotPath)
		if res.Ingest.Failed > 0 {
			exitCode = 1
		}
		return nil
	},
}
