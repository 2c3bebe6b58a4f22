package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/logging"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func cacheFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "Directory holding the market and pool snapshots",
			EnvVars: []string{"CACHE_DIR"},
			Value:   "../cache/",
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "devnet or mainnet; selects the file prefix",
			EnvVars: []string{"SOLANA_NETWORK"},
			Value:   "devnet",
		},
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "Override the snapshot file prefix",
			EnvVars: []string{"CACHE_PREFIX"},
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq filter applied to the raw snapshot document",
		},
	}
}

func cacheMarketCommand() *cli.Command {
	return &cli.Command{
		Name:  "market",
		Usage: "Show the cached market snapshot",
		Flags: cacheFlags(),
		Action: func(c *cli.Context) error {
			r, err := cacheResolver(c)
			if err != nil {
				return err
			}
			if q := c.String("jq"); q != "" {
				return queryDocument(c.Context, os.Stdout, r, r.MarketPath(), q)
			}

			m, err := r.ResolveMarket(c.Context)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(m)
			}
			fmt.Printf("File:        %s\n", r.MarketPath())
			fmt.Printf("Market:      %s\n", m.MarketID)
			fmt.Printf("Base Mint:   %s\n", m.BaseMint)
			fmt.Printf("Quote Mint:  %s\n", m.QuoteMint)
			fmt.Printf("Base Vault:  %s\n", m.BaseVault)
			fmt.Printf("Quote Vault: %s\n", m.QuoteVault)
			fmt.Printf("Bids:        %s\n", m.Bids)
			fmt.Printf("Asks:        %s\n", m.Asks)
			fmt.Printf("Event Queue: %s\n", m.EventQueue)
			return nil
		},
	}
}

func cachePoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "pool",
		Usage: "Show the cached pool snapshot, checked against the market",
		Flags: cacheFlags(),
		Action: func(c *cli.Context) error {
			r, err := cacheResolver(c)
			if err != nil {
				return err
			}
			if q := c.String("jq"); q != "" {
				return queryDocument(c.Context, os.Stdout, r, r.PoolPath(), q)
			}

			_, p, err := r.Resolve(c.Context)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(p)
			}
			fmt.Printf("File:        %s\n", r.PoolPath())
			fmt.Printf("Pool:        %s\n", p.AmmID)
			fmt.Printf("Program:     %s\n", p.ProgramID)
			fmt.Printf("Market:      %s\n", p.MarketID)
			fmt.Printf("LP Mint:     %s\n", p.LPMint)
			fmt.Printf("Coin Mint:   %s\n", p.CoinMint)
			fmt.Printf("Pc Mint:     %s\n", p.PcMint)
			fmt.Printf("Coin Vault:  %s\n", p.CoinVault)
			fmt.Printf("Pc Vault:    %s\n", p.PcVault)
			return nil
		},
	}
}

func cacheResolver(c *cli.Context) (*cache.Resolver, error) {
	prefix := c.String("prefix")
	if !c.IsSet("prefix") {
		prefix = cache.PrefixForNetwork(c.String("network"))
	}
	return cache.NewResolver(c.String("cache-dir"), prefix, logging.Discard())
}

// queryDocument runs a jq filter over the snapshot at path and writes each
// result as indented JSON.
func queryDocument(ctx context.Context, w io.Writer, r *cache.Resolver, path, filter string) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("invalid jq filter: %w", err)
	}

	doc, err := r.Raw(ctx, path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	iter := query.RunWithContext(ctx, doc)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}
