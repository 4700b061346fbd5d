package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/nft-checkout/internal/app"
	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/prices"
	"github.com/noah-isme/nft-checkout/internal/pricing"
)

type loader func(ctx context.Context) (*app.Dependencies, error)

func newRootCmd(load loader) *cobra.Command {
	var provider string
	root := &cobra.Command{
		Use:           "quote",
		Short:         "Price NFT carts against the configured providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&provider, "provider", "", "price provider (mock, opensea); empty uses the default")
	root.AddCommand(newCheckoutCmd(load, &provider), newPricesCmd(load, &provider))
	return root
}

func newCheckoutCmd(load loader, provider *string) *cobra.Command {
	var strategyName string
	cmd := &cobra.Command{
		Use:   "checkout CODE...",
		Short: "Scan product codes into a cart and print the quote",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cart := catalog.NewCart()
			for _, arg := range args {
				code, err := catalog.Parse(arg)
				if err != nil {
					return err
				}
				if err := cart.Scan(code); err != nil {
					return err
				}
			}

			deps, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()

			strategy := deps.Config.DefaultStrategy
			if strings.TrimSpace(strategyName) != "" {
				if strategy, err = pricing.ParseStrategy(strategyName); err != nil {
					return err
				}
			}
			p, err := deps.Providers.Get(*provider)
			if err != nil {
				return err
			}
			quote, err := deps.Checkout.Quote(cmd.Context(), p, strategy, cart.Lines())
			if err != nil {
				return err
			}
			return printJSON(cmd, quote)
		},
	}
	cmd.Flags().StringVar(&strategyName, "strategy", "", "promotion strategy (MIN, PRIORITY, STACK); empty uses PROMOTION_STRATEGY")
	return cmd
}

func newPricesCmd(load loader, provider *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Print the current price snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()

			p, err := deps.Providers.Get(*provider)
			if err != nil {
				return err
			}
			snap, err := p.Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
			return printJSON(cmd, prices.NewPriceList(p.Name(), snap, deps.Promotions))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
