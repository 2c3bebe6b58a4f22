package main

import (
	"bytes"
	"net/url"
	"path/filepath"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundingURL(t *testing.T) {
	owner := solanago.NewWallet().PublicKey()

	u, err := url.Parse(fundingURL(owner, 0.5))
	require.NoError(t, err)
	assert.Equal(t, "solana", u.Scheme)
	assert.Equal(t, owner.String(), u.Opaque)
	assert.Equal(t, "0.500000000", u.Query().Get("amount"))

	u, err = url.Parse(fundingURL(owner, 0))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("amount"))
}

func TestRenderQR(t *testing.T) {
	var buf bytes.Buffer
	renderQR(&buf, [][]bool{{true, false}, {false, true}})
	assert.Equal(t, "██  \n  ██\n", buf.String())
}

func TestWalletCommand(t *testing.T) {
	wallet := solanago.NewWallet()
	t.Setenv("WALLET_PRIVATE_KEY", wallet.PrivateKey.String())
	t.Setenv("CACHE_DIR", t.TempDir())
	png := filepath.Join(t.TempDir(), "wallet.png")

	err := newApp().Run([]string{"lpctl", "--env-file", filepath.Join(t.TempDir(), "none.env"), "wallet", "--no-qr", "--png", png})
	require.NoError(t, err)
	assert.FileExists(t, png)
}
