package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/raydium"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string
	LogFormat   string

	// Solana configuration. SolanaClusterURL may be a comma-separated pool.
	SolanaClusterURL   string
	SolanaWebsocketURL string
	SolanaNetwork      string
	Commitment         rpc.CommitmentType

	// Wallet configuration. WalletPrivateKey wins over WalletPath.
	WalletPath       string
	WalletPrivateKey string

	// Snapshot cache
	CacheDir    string
	CachePrefix string

	// Raydium configuration
	AmmProgramID solana.PublicKey
	SlippageBps  uint64

	// Confirmation and settling
	ConfirmTimeout       time.Duration
	ConfirmPollInterval  time.Duration
	WaitAfterTransaction time.Duration

	// Optional journal and event stream
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// LoadDotEnv loads variables from the given files, or ./.env when none are
// given. Variables already set in the environment win. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error listing every problem found.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "json")

	// Solana configuration
	cfg.SolanaClusterURL = getEnvOrDefault("SOLANA_CLUSTER_URL", rpc.DevNet_RPC)
	cfg.SolanaWebsocketURL = getEnvOrDefault("SOLANA_WEBSOCKET_URL", rpc.DevNet_WS)
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	if cfg.SolanaNetwork != "devnet" && cfg.SolanaNetwork != "mainnet" {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be devnet or mainnet, got %q", cfg.SolanaNetwork))
	}
	cfg.Commitment = rpc.CommitmentType(getEnvOrDefault("COMMITMENT", string(rpc.CommitmentConfirmed)))
	switch cfg.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		errs = append(errs, fmt.Errorf("COMMITMENT must be processed, confirmed or finalized, got %q", cfg.Commitment))
	}

	// Wallet configuration
	cfg.WalletPath = getEnvOrDefault("WALLET_PATH", defaultWalletPath())
	cfg.WalletPrivateKey = os.Getenv("WALLET_PRIVATE_KEY")

	// Snapshot cache
	cfg.CacheDir = getEnvOrDefault("CACHE_DIR", "../cache/")
	if prefix, ok := os.LookupEnv("CACHE_PREFIX"); ok {
		cfg.CachePrefix = prefix
	} else {
		cfg.CachePrefix = cache.PrefixForNetwork(cfg.SolanaNetwork)
	}

	// Raydium configuration
	cfg.AmmProgramID = raydium.AmmProgramID(cfg.SolanaNetwork)
	if v := os.Getenv("RAYDIUM_AMM_PROGRAM_ID"); v != "" {
		id, err := solana.PublicKeyFromBase58(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAYDIUM_AMM_PROGRAM_ID: invalid public key %q: %w", v, err))
		} else {
			cfg.AmmProgramID = id
		}
	}
	bps, err := parseUint("RAYDIUM_SLIPPAGE_BPS", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SlippageBps = bps
	}

	// Confirmation and settling
	if cfg.ConfirmTimeout, err = parseDuration("CONFIRM_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmPollInterval, err = parseDuration("CONFIRM_POLL_INTERVAL", "2s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.WaitAfterTransaction, err = parseDuration("WAIT_AFTER_TRANSACTION", "15s"); err != nil {
		errs = append(errs, err)
	}

	// Optional journal and event stream
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "lpctl-liquidity")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaClusterURL == "" {
		errs = append(errs, fmt.Errorf("SolanaClusterURL is required"))
	}
	if c.WalletPath == "" && c.WalletPrivateKey == "" {
		errs = append(errs, fmt.Errorf("one of WalletPath or WalletPrivateKey is required"))
	}
	if c.CacheDir == "" {
		errs = append(errs, fmt.Errorf("CacheDir is required"))
	}
	if c.AmmProgramID.IsZero() {
		errs = append(errs, fmt.Errorf("AmmProgramID is required"))
	}
	if c.SlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("SlippageBps cannot exceed 10000, got %d", c.SlippageBps))
	}
	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}
	if c.ConfirmTimeout < c.ConfirmPollInterval {
		errs = append(errs, fmt.Errorf("ConfirmTimeout (%v) cannot be less than ConfirmPollInterval (%v)",
			c.ConfirmTimeout, c.ConfirmPollInterval))
	}
	if c.WaitAfterTransaction < 0 {
		errs = append(errs, fmt.Errorf("WaitAfterTransaction cannot be negative"))
	}
	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func defaultWalletPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
