package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"RPC_URL", "WS_URL", "RPC_TIMEOUT", "WAVE_GAS_LIMIT", "KEYSTORE_DIR",
		"WALLET_PRIVATE_KEY", "WALLET_PASSPHRASE", "DB_PATH", "DASHBOARD_ADDR",
		"RECONCILE_SCHEDULE", "LOG_FILE", "CONTRACT_ADDRESS", "CHAIN_ID", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	require.Equal(t, "ws://127.0.0.1:8545", cfg.WSURL)
	require.Equal(t, common.HexToAddress(DefaultContract), cfg.ContractAddress)
	require.EqualValues(t, 300000, cfg.WaveGasLimit)
	require.Equal(t, 30*time.Second, cfg.RPCTimeout)
	require.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	require.Nil(t, cfg.ChainID)
	require.False(t, cfg.HasWallet())
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL", "https://rpc.example.org")
	t.Setenv("WAVE_GAS_LIMIT", "120000")
	t.Setenv("RPC_TIMEOUT", "5")
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("WALLET_PRIVATE_KEY", "0xabc")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "wss://rpc.example.org", cfg.WSURL)
	require.EqualValues(t, 120000, cfg.WaveGasLimit)
	require.Equal(t, 5*time.Second, cfg.RPCTimeout)
	require.Equal(t, "11155111", cfg.ChainID.String())
	require.Equal(t, "abc", cfg.WalletPrivateKey)
	require.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	require.True(t, cfg.HasWallet())
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTRACT_ADDRESS", "not-an-address")
	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("CHAIN_ID", "sepolia")
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.WaveGasLimit = 0
	require.Error(t, cfg.Validate())

	cfg.WaveGasLimit = 1
	cfg.WSURL = "::bad"
	require.Error(t, cfg.Validate())
}
