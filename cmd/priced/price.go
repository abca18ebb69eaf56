package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	pricingApp "github.com/fd1az/token-price-engine/business/pricing/app"
	pricingDI "github.com/fd1az/token-price-engine/business/pricing/di"
	"github.com/fd1az/token-price-engine/internal/asset"
)

func runPrice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	decimals, _ := cmd.Flags().GetInt("decimals")

	chain, err := asset.ParseChain(args[0])
	if err != nil {
		return err
	}

	return withModules(ctx, cmd, func(a *application) error {
		prices := pricingDI.GetPriceService(a.mono.Services())

		res, err := prices.GetPriceUSD(ctx, pricingApp.PriceRequest{
			Chain:      chain,
			Identifier: args[1],
			Decimals:   decimals,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s:%s  $%s\n", chain, args[1], res.PriceUSD.String())
		fmt.Fprintf(out, "  source:   %s (%s, %s)\n", res.Source, res.Provider, res.Stage)
		if res.MarketCapUSD != nil {
			fmt.Fprintf(out, "  mcap:     $%s\n", res.MarketCapUSD.StringFixed(0))
		}
		fmt.Fprintf(out, "  observed: %s\n", res.ObservedAt.UTC().Format("2006-01-02T15:04:05Z"))
		return nil
	})
}

func runPrime(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	decimals, _ := cmd.Flags().GetInt("decimals")
	tokenID, _ := cmd.Flags().GetString("token-id")

	chain, err := asset.ParseChain(args[0])
	if err != nil {
		return err
	}

	return withModules(ctx, cmd, func(a *application) error {
		prices := pricingDI.GetPriceService(a.mono.Services())

		pool, err := prices.FindAndPersistBestPool(ctx, tokenID, chain, args[1], decimals)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if pool == nil {
			fmt.Fprintf(out, "no venue found for %s:%s\n", chain, args[1])
			return nil
		}
		fmt.Fprintf(out, "primed %s\n", pool.String())
		return nil
	})
}

// withModules runs fn against started modules in CLI mode.
func withModules(ctx context.Context, cmd *cobra.Command, fn func(a *application) error) error {
	a, err := bootstrap(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.mono.StartModules(ctx, a.modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	return fn(a)
}
