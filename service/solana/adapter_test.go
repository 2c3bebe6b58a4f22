package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("single endpoint is always chosen", func(t *testing.T) {
		selected, err := SelectRandomEndpoint([]string{"https://api.devnet.solana.com"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.devnet.solana.com", selected)
	})

	t.Run("empty pool is an error", func(t *testing.T) {
		for _, endpoints := range [][]string{nil, {}} {
			_, err := SelectRandomEndpoint(endpoints)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no RPC endpoints configured")
		}
	})

	t.Run("selections spread across the pool", func(t *testing.T) {
		endpoints := []string{
			"https://rpc-a.example.com",
			"https://rpc-b.example.com",
			"https://rpc-c.example.com",
		}

		// Probabilistic: 50 draws from 3 endpoints landing on one is vanishingly unlikely.
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			selected, err := SelectRandomEndpoint(endpoints)
			require.NoError(t, err)
			assert.Contains(t, endpoints, selected)
			seen[selected] = true
		}
		assert.GreaterOrEqual(t, len(seen), 2)
	})
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"https://api.mainnet-beta.solana.com":               "mainnet",
		"https://api.devnet.solana.com":                     "devnet",
		"https://mainnet.helius-rpc.com/?api-key=secret":    "helius",
		"https://some-endpoint.solana-mainnet.quiknode.pro/": "quiknode",
		"http://127.0.0.1:8899":                             "localhost",
		"https://rpc.example.com":                           "rpc.example.com",
	}
	for rpcURL, want := range tests {
		assert.Equal(t, want, EndpointLabel(rpcURL), rpcURL)
	}
}
