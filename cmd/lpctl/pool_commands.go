package main

import (
	"fmt"
	"os"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func poolStateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show live AMM state for the pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pool",
				Usage: "Pool id; must match the cached pool (defaults to it)",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.Service.PoolState(c.Context, c.String("pool"))
			if err != nil {
				return fmt.Errorf("failed to fetch pool state: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(state)
			}

			fmt.Printf("Pool:           %s\n", state.PoolID)
			fmt.Printf("LP Mint:        %s\n", state.LPMint)
			fmt.Printf("Coin Mint:      %s (%d decimals)\n", state.CoinMint, state.CoinDecimals)
			fmt.Printf("Pc Mint:        %s (%d decimals)\n", state.PcMint, state.PcDecimals)
			fmt.Printf("LP Supply:      %d\n", state.LPTotal)
			fmt.Printf("Coin Vault:     %d\n", state.CoinVaultBalance)
			fmt.Printf("Pc Vault:       %d\n", state.PcVaultBalance)
			fmt.Printf("Decimal Factor: %d\n", state.SysDecimalValue)
			return nil
		},
	}
}

func poolBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Show the wallet's LP position, or its balance of any mint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pool",
				Usage: "Pool id; must match the cached pool (defaults to it)",
			},
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Read the wallet's associated token account for this mint instead",
			},
		},
		Action: func(c *cli.Context) error {
			a, err := loadApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if mintStr := c.String("mint"); mintStr != "" {
				mint, err := solanago.PublicKeyFromBase58(mintStr)
				if err != nil {
					return fmt.Errorf("invalid mint %q: %w", mintStr, err)
				}
				owner := a.Service.Owner()
				amount, err := a.Inspector.FetchTokenBalance(c.Context, owner, mint)
				if err != nil {
					return fmt.Errorf("failed to fetch balance: %w", err)
				}
				if c.Bool("json") {
					return outputJSON(map[string]interface{}{
						"owner":  owner.String(),
						"mint":   mint.String(),
						"amount": amount,
					})
				}
				fmt.Printf("Owner:  %s\n", owner)
				fmt.Printf("Mint:   %s\n", mint)
				fmt.Printf("Amount: %d\n", amount)
				return nil
			}

			pos, err := a.Service.Snapshot(c.Context, c.String("pool"))
			if err != nil {
				return fmt.Errorf("failed to read position: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(pos)
			}

			fmt.Printf("Pool:       %s\n", pos.PoolID)
			fmt.Printf("User LP:    %d\n", pos.UserLP)
			fmt.Printf("Pool LP:    %d\n", pos.LPTotal)
			fmt.Printf("Coin Vault: %d\n", pos.CoinVault)
			fmt.Printf("Pc Vault:   %d\n", pos.PcVault)
			fmt.Fprintf(os.Stderr, "\nRead at %s\n", pos.TakenAt.Format(time.RFC3339))
			return nil
		},
	}
}
