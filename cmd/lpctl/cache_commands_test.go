package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketFixture = `{"address": {"marketId": "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT", "bids": "14ivtgssEBoBjuZJtSAPKYgpUK7DmnSwuPMqJoVTSgKJ"}}`

const poolFixture = `{"address": {"ammId": "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2", "marketId": "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT", "lpMint": "8HoQnePLqPj4M7PUDzfw8e3Ymdwgc7NLGnaTUapubyvu"}}`

func writeCache(t *testing.T, prefix string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, prefix+"market.json"), []byte(marketFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, prefix+"pool.json"), []byte(poolFixture), 0o644))
	return dir
}

func TestQueryDocument(t *testing.T) {
	dir := writeCache(t, "")
	r, err := cache.NewResolver(dir, "", logging.Discard())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, queryDocument(context.Background(), &buf, r, r.PoolPath(), ".address.ammId"))
	assert.Equal(t, `"58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"`, strings.TrimSpace(buf.String()))

	buf.Reset()
	require.NoError(t, queryDocument(context.Background(), &buf, r, r.MarketPath(), ".address | keys[]"))
	assert.Equal(t, "\"bids\"\n\"marketId\"\n", buf.String())
}

func TestQueryDocument_Errors(t *testing.T) {
	dir := writeCache(t, "")
	r, err := cache.NewResolver(dir, "", logging.Discard())
	require.NoError(t, err)

	var buf bytes.Buffer
	err = queryDocument(context.Background(), &buf, r, r.PoolPath(), ".address[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jq filter")

	err = queryDocument(context.Background(), &buf, r, filepath.Join(dir, "missing.json"), ".")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheCommands_DevnetPrefix(t *testing.T) {
	dir := writeCache(t, cache.DevnetPrefix)

	err := newApp().Run([]string{"lpctl", "--json", "cache", "pool", "--cache-dir", dir, "--network", "devnet"})
	require.NoError(t, err)

	err = newApp().Run([]string{"lpctl", "cache", "market", "--cache-dir", dir, "--network", "mainnet"})
	require.ErrorIs(t, err, cache.ErrNotFound)
}
