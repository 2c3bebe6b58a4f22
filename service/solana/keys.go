package solana

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// LoadSigner returns the wallet key. A base58 secret takes precedence over
// the keygen file at path.
func LoadSigner(path, base58Secret string) (solana.PrivateKey, error) {
	if base58Secret != "" {
		raw, err := base58.Decode(base58Secret)
		if err != nil {
			return nil, fmt.Errorf("decode base58 private key: %w", err)
		}
		if len(raw) != 64 {
			return nil, fmt.Errorf("private key must be 64 bytes, got %d", len(raw))
		}
		key := solana.PrivateKey(raw)
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	}

	if path == "" {
		return nil, fmt.Errorf("no wallet configured")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", path, err)
	}
	return key, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
