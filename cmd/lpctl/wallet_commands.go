package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/brojonat/lpctl/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

func walletCommand() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Show the signing wallet and a funding QR code",
		Description: `Prints the fee payer / LP owner address and a Solana Pay transfer URL
for it, rendered as a QR code so the wallet can be funded from a phone.`,
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "amount",
				Usage: "SOL amount to request in the transfer URL",
			},
			&cli.StringFlag{
				Name:  "png",
				Usage: "Also write the QR code as a PNG to this path",
			},
			&cli.BoolFlag{
				Name:  "no-qr",
				Usage: "Skip the terminal QR code",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			key, err := solana.LoadSigner(cfg.WalletPath, cfg.WalletPrivateKey)
			if err != nil {
				return err
			}
			owner := key.PublicKey()
			payURL := fundingURL(owner, c.Float64("amount"))

			if c.Bool("json") {
				return outputJSON(map[string]string{
					"address": owner.String(),
					"network": cfg.SolanaNetwork,
					"url":     payURL,
				})
			}

			fmt.Printf("Address: %s\n", owner)
			fmt.Printf("Network: %s\n", cfg.SolanaNetwork)
			fmt.Printf("URL:     %s\n", payURL)

			qr, err := qrcode.New(payURL, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("failed to create QR code: %w", err)
			}
			if !c.Bool("no-qr") {
				fmt.Println()
				renderQR(os.Stdout, qr.Bitmap())
			}
			if path := c.String("png"); path != "" {
				png, err := qr.PNG(256)
				if err != nil {
					return fmt.Errorf("failed to encode QR code as PNG: %w", err)
				}
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(os.Stderr, "wrote %s\n", path)
			}
			return nil
		},
	}
}

// fundingURL builds a Solana Pay transfer request to owner.
func fundingURL(owner solanago.PublicKey, amountSOL float64) string {
	params := url.Values{}
	if amountSOL > 0 {
		params.Set("amount", fmt.Sprintf("%.9f", amountSOL))
	}
	params.Set("label", "lpctl wallet")
	return fmt.Sprintf("solana:%s?%s", owner, params.Encode())
}

// renderQR draws the bitmap with two characters per module so it stays square.
func renderQR(w io.Writer, bitmap [][]bool) {
	var b strings.Builder
	for _, row := range bitmap {
		for _, dark := range row {
			if dark {
				b.WriteString("██")
			} else {
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	io.WriteString(w, b.String())
}
