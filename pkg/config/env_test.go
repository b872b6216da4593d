package config

import (
	"testing"

	"github.com/payrun-hq/payrunner/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvChainAllowlist(t *testing.T) {
	t.Run("default is every supported chain", func(t *testing.T) {
		t.Setenv("CHAIN_ALLOWLIST", "")
		got, err := GetEnvChainAllowlist()
		require.NoError(t, err)
		assert.Equal(t, chains.ChainList(), got)
	})

	t.Run("parses a csv of chain ids", func(t *testing.T) {
		t.Setenv("CHAIN_ALLOWLIST", "84532, 11155111")
		got, err := GetEnvChainAllowlist()
		require.NoError(t, err)
		assert.Equal(t, []int{84532, 11155111}, got)
	})

	t.Run("rejects unsupported chains", func(t *testing.T) {
		t.Setenv("CHAIN_ALLOWLIST", "84532,999")
		_, err := GetEnvChainAllowlist()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported CHAIN_ALLOWLIST entry")
	})
}

func TestGetEnvSettlementChainID(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("SETTLEMENT_CHAIN_ID", "")
		got, err := GetEnvSettlementChainID()
		require.NoError(t, err)
		assert.Equal(t, chains.DefaultSettlementChainID, got)
	})

	t.Run("rejects unsupported chain", func(t *testing.T) {
		t.Setenv("SETTLEMENT_CHAIN_ID", "1")
		_, err := GetEnvSettlementChainID()
		require.Error(t, err)
	})
}
