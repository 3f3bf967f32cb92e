package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// DefaultContract is the WavePortal deployment the client talks to.
const DefaultContract = "0x441a46f993FD3629f08Ec6d092D85F456DCDFAB6"

type Config struct {
	// Node
	RPCURL     string // http(s) endpoint for reads and writes
	WSURL      string // websocket endpoint for the NewWave subscription
	ChainID    *big.Int
	RPCTimeout time.Duration

	// Contract
	ContractAddress common.Address
	WaveGasLimit    uint64

	// Wallet
	KeystoreDir      string
	WalletPrivateKey string // hex, dev networks only
	WalletPassphrase string // optional, skips the unlock prompt

	// Local state
	DBPath string

	// Dashboard
	DashboardAddr string

	// Count reconciliation, cron spec
	ReconcileSchedule string

	// Logging
	LogLevel zerolog.Level
	LogFile  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RPCURL:     envOr("RPC_URL", "http://127.0.0.1:8545"),
		WSURL:      os.Getenv("WS_URL"),
		RPCTimeout: envDuration("RPC_TIMEOUT", 30*time.Second),

		WaveGasLimit: uint64(envInt("WAVE_GAS_LIMIT", 300000)),

		KeystoreDir:      os.Getenv("KEYSTORE_DIR"),
		WalletPrivateKey: strings.TrimPrefix(os.Getenv("WALLET_PRIVATE_KEY"), "0x"),
		WalletPassphrase: os.Getenv("WALLET_PASSPHRASE"),

		DBPath:            envOr("DB_PATH", "waveportal.db"),
		DashboardAddr:     envOr("DASHBOARD_ADDR", "127.0.0.1:8080"),
		ReconcileSchedule: envOr("RECONCILE_SCHEDULE", "@every 1m"),

		LogFile: os.Getenv("LOG_FILE"),
	}

	if err := cfg.SetContract(envOr("CONTRACT_ADDRESS", DefaultContract)); err != nil {
		return nil, err
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("CHAIN_ID %q is not a number", v)
		}
		cfg.ChainID = id
	}

	lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = lvl

	// The subscription needs a push transport; derive it from an http RPC URL
	// when none is given.
	if cfg.WSURL == "" {
		cfg.WSURL = deriveWSURL(cfg.RPCURL)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	for name, raw := range map[string]string{"RPC_URL": c.RPCURL, "WS_URL": c.WSURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%s %q is not a valid url", name, raw)
		}
	}
	if c.ContractAddress == (common.Address{}) {
		return fmt.Errorf("contract address is zero")
	}
	if c.WaveGasLimit == 0 {
		return fmt.Errorf("WAVE_GAS_LIMIT must be positive")
	}
	return nil
}

// SetContract parses and sets the contract address.
func (c *Config) SetContract(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("contract address %q is not a hex address", addr)
	}
	c.ContractAddress = common.HexToAddress(addr)
	return nil
}

// HasWallet reports whether any wallet provider is configured.
func (c *Config) HasWallet() bool {
	return c.KeystoreDir != "" || c.WalletPrivateKey != ""
}

func deriveWSURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
