package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/integrity"
)

var checkFix bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit the database for integrity anomalies",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := integrity.RunAll(db.Conn(), checkFix)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		for _, f := range report.Findings {
			status := "open"
			if f.Fixed {
				status = "fixed"
			}
			fmt.Printf("[%s] %s: %s\n", status, f.Check, f.Detail)
		}
		fmt.Printf("%d findings\n", len(report.Findings))
		if len(report.Findings) > 0 {
			exitCode = 1
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "Apply the fix for every finding that has one")
}
