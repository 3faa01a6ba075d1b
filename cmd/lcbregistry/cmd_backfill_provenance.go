package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/provenance"
)

var backfillProvenanceCmd = &cobra.Command{
	Use:   "backfill-provenance",
	Short: "Attribute existing records to their originating scrape_log rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := db.Conn().Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		registered, attributed, err := provenance.BackfillFromScrapeLog(tx)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("backfill provenance: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("sources_registered=%d records_attributed=%d\n", registered, attributed)
		return nil
	},
}
