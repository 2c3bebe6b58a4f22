package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/lpctl/service/app"
	"github.com/brojonat/lpctl/service/db"
	"github.com/urfave/cli/v2"
)

func listOperationsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List journaled liquidity operations, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pool",
				Usage: "Only operations on this pool",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of operations",
				Value:   20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Skip this many operations",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ops, err := store.ListOperations(c.Context, db.ListOperationsParams{
				PoolID: c.String("pool"),
				Limit:  int32(c.Int("limit")),
				Offset: int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list operations: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(ops)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tPOOL\tADD\tREMOVE\tOUTCOME\tSIGNATURE\tCREATED")
			for _, op := range ops {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					op.ID,
					op.Type,
					truncate(op.PoolID, 12),
					op.AddAmount,
					op.RemoveAmount,
					op.Outcome(),
					truncate(op.Signature, 16),
					op.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d operations\n", len(ops))
			return nil
		},
	}
}

func getOperationCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one journaled operation",
		ArgsUsage: "<operation-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: operation id")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			op, err := store.GetOperation(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get operation: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(op)
			}
			printReport(os.Stdout, &operationReport{Operation: op})
			fmt.Printf("Created:     %s\n", op.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		// Try environment variable directly if flag not found
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return app.OpenStore(context.Background(), dbURL, nil)
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens long ids for table output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
