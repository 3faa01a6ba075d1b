package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/outcomes"
)

var rebuildLinksCmd = &cobra.Command{
	Use:   "rebuild-links",
	Short: "Recompute new-application-to-outcome links across the whole database",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := db.Conn().Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		linked, err := outcomes.BuildAllLinks(tx)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("rebuild links: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		fmt.Printf("linked=%d\n", linked)
		return nil
	},
}
