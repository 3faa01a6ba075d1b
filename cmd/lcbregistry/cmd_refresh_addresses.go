package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lcbregistry/internal/addressvalidator"
)

var (
	refreshAddressesConcurrency int
	refreshAddressesAll         bool
)

var refreshAddressesCmd = &cobra.Command{
	Use:     "refresh-addresses",
	Aliases: []string{"backfill-addresses"},
	Short:   "Standardize location addresses against the address validator (use --all to re-validate everything)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var v addressvalidator.Validator = addressvalidator.NoopValidator{}
		if cfg.AddressValidatorAPIKey != "" {
			v = addressvalidator.NewHTTPValidator(cfg.AddressValidatorURL, cfg.AddressValidatorAPIKey, cfg.ValidatorTimeout, cfg.ValidatorThrottle)
		} else {
			logger.Warn("no address validator API key configured, running in no-op mode")
		}

		res, err := addressvalidator.Refresh(context.Background(), db.Conn(), v, addressvalidator.RefreshOptions{
			Concurrency:     refreshAddressesConcurrency,
			OnlyUnvalidated: !refreshAddressesAll,
		})
		if err != nil {
			return fmt.Errorf("refresh addresses: %w", err)
		}
		fmt.Printf("standardized=%d no_match=%d failed=%d\n", res.Standardized, res.NoMatch, res.Failed)
		if res.Failed > 0 {
			exitCode = 1
		}
		return nil
	},
}

func init() {
	refreshAddressesCmd.Flags().IntVar(&refreshAddressesConcurrency, "concurrency", 4, "Number of concurrent validator calls")
	refreshAddressesCmd.Flags().BoolVar(&refreshAddressesAll, "all", false, "Re-validate even already-validated locations")
}
