package walletapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnifiedBalances_WrappedAndBare(t *testing.T) {
	wrapped := `{"balances": [{"token": "USDC", "breakdown": [{"chain_id": 84532, "balance": "120.5"}]}]}`
	bare := `[{"token": "ETH", "breakdown": [{"chain_id": 11155111, "balance": "0.02"}]}]`

	for name, body := range map[string]string{"wrapped": wrapped, "bare": bare} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/balances", r.URL.Path)
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			client := New(server.URL, &logger.EmptyLogger{})
			snapshots, err := client.GetUnifiedBalances(context.Background())
			require.NoError(t, err)
			require.Len(t, snapshots, 1)
			require.Len(t, snapshots[0].Breakdown, 1)
		})
	}
}

func TestSwitchChain(t *testing.T) {
	var gotChain atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/wallet/chain", r.URL.Path)
		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotChain.Store(int64(payload["chain_id"]))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	require.NoError(t, client.SwitchChain(context.Background(), 84532))
	assert.Equal(t, int64(84532), gotChain.Load())
}

func TestSendContractCall_PollsUntilConfirmed(t *testing.T) {
	var polls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/wallet/calls":
			_, _ = w.Write([]byte(`{"call_id": "call-7"}`))
		case "/api/v1/wallet/calls/call-7":
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"status": "pending"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status": "confirmed", "tx_hash": "0xabc"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	client.SetPollInterval(time.Millisecond)

	handle, err := client.SendContractCall(context.Background(), provider.ContractCall{
		Kind:    provider.CallKindSwap,
		ChainID: 84532,
	})
	require.NoError(t, err)

	hash, err := handle.AwaitConfirmation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)
	assert.GreaterOrEqual(t, polls.Load(), int64(3))
}

func TestAwaitConfirmation_FailedCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/wallet/calls":
			_, _ = w.Write([]byte(`{"call_id": "call-9"}`))
		default:
			_, _ = w.Write([]byte(`{"status": "failed", "error": "out of gas"}`))
		}
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	client.SetPollInterval(time.Millisecond)

	handle, err := client.SendContractCall(context.Background(), provider.ContractCall{Kind: provider.CallKindApprove})
	require.NoError(t, err)

	_, err = handle.AwaitConfirmation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of gas")
}

func TestTransfer_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	_, err := client.Transfer(context.Background(), provider.TransferRequest{Token: "USDC", Amount: "10"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 401")
}

func TestIsReady(t *testing.T) {
	ready := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/ready", r.URL.Path)
		if ready {
			_, _ = w.Write([]byte(`{"ready": true}`))
			return
		}
		_, _ = w.Write([]byte(`{"ready": false}`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	assert.False(t, client.IsReady())
	ready = true
	assert.True(t, client.IsReady())
}
