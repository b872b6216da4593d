package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/provider/mocks"
	"github.com/payrun-hq/payrunner/pkg/swap"
)

const settlementChain = 84532

func ethBalances() []models.BalanceSnapshot {
	return []models.BalanceSnapshot{
		{
			Token: "ETH",
			Breakdown: []models.ChainBalance{
				{ChainID: 11155111, Balance: "0.01"},
				{ChainID: 421614, Balance: "0.02"},
				{ChainID: settlementChain, Balance: "0.5"},
			},
		},
	}
}

func TestBridgeableAmountNativeGasBuffer(t *testing.T) {
	o := NewOrchestrator(&mocks.MockBridge{}, nil, settlementChain, nil)

	// 0.03 across two nonzero source chains minus 0.002 * 2
	amount, sourceChains := o.BridgeableAmount(ethBalances(), "ETH")
	assert.True(t, amount.Equal(decimal.RequireFromString("0.026")),
		"expected 0.026, got %s", amount)
	assert.Equal(t, []int{11155111, 421614}, sourceChains)
}

func TestBridgeableAmountBuffersPerNativeSourceChain(t *testing.T) {
	// POL is native on Amoy only; the reserve pays gas on the source side,
	// so one buffer is held back even though POL is not native on the
	// settlement chain
	balances := []models.BalanceSnapshot{
		{
			Token: "POL",
			Breakdown: []models.ChainBalance{
				{ChainID: 80002, Balance: "5"},
			},
		},
	}
	o := NewOrchestrator(&mocks.MockBridge{}, nil, settlementChain, nil)

	amount, sourceChains := o.BridgeableAmount(balances, "POL")
	assert.True(t, amount.Equal(decimal.RequireFromString("4.998")),
		"expected 4.998, got %s", amount)
	assert.Equal(t, []int{80002}, sourceChains)
}

func TestBridgeableAmountERC20NoBuffer(t *testing.T) {
	balances := []models.BalanceSnapshot{
		{
			Token: "USDC",
			Breakdown: []models.ChainBalance{
				{ChainID: 11155111, Balance: "40"},
				{ChainID: settlementChain, Balance: "10"},
			},
		},
	}
	o := NewOrchestrator(&mocks.MockBridge{}, nil, settlementChain, nil)

	amount, sourceChains := o.BridgeableAmount(balances, "USDC")
	assert.True(t, amount.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, []int{11155111}, sourceChains)
}

func TestConsolidateInvokesBridge(t *testing.T) {
	mb := &mocks.MockBridge{Result: provider.BridgeResult{Success: true, ExplorerURL: "https://bridge.example/tx/1"}}
	o := NewOrchestrator(mb, nil, settlementChain, nil)

	outcome := o.Consolidate(context.Background(), "ETH", ethBalances(), nil)

	require.True(t, outcome.Success, "unexpected error: %s", outcome.Error)
	assert.Equal(t, "https://bridge.example/tx/1", outcome.ExplorerURL)
	require.Len(t, mb.Requests, 1)
	assert.Equal(t, "0.026", mb.Requests[0].Amount)
	assert.Equal(t, settlementChain, mb.Requests[0].ChainID)
	assert.Equal(t, []int{11155111, 421614}, mb.Requests[0].SourceChains)
}

func TestConsolidateNothingToBridge(t *testing.T) {
	mb := &mocks.MockBridge{Result: provider.BridgeResult{Success: true}}
	o := NewOrchestrator(mb, nil, settlementChain, nil)

	balances := []models.BalanceSnapshot{
		{
			Token: "ETH",
			Breakdown: []models.ChainBalance{
				{ChainID: settlementChain, Balance: "0.5"},
			},
		},
	}

	outcome := o.Consolidate(context.Background(), "ETH", balances, nil)
	assert.False(t, outcome.Success)
	assert.Empty(t, mb.Requests)
}

func TestConsolidateBridgeFailure(t *testing.T) {
	tests := []struct {
		name string
		mock *mocks.MockBridge
	}{
		{
			name: "capability error",
			mock: &mocks.MockBridge{Err: errors.New("relay unavailable")},
		},
		{
			name: "capability reports failure",
			mock: &mocks.MockBridge{Result: provider.BridgeResult{Success: false}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(tc.mock, nil, settlementChain, nil)
			outcome := o.Consolidate(context.Background(), "ETH", ethBalances(), nil)
			assert.False(t, outcome.Success)
			assert.Contains(t, outcome.Error, ErrBridgeFailed.Error())
		})
	}
}

func TestConsolidateWithPostSwap(t *testing.T) {
	mb := &mocks.MockBridge{Result: provider.BridgeResult{Success: true}}
	wallet := &mocks.MockWallet{ChainID: settlementChain}
	swapper := swap.NewOrchestrator(wallet, settlementChain,
		"0x1111111111111111111111111111111111111111", nil, swap.WithSleep(mocks.NoSleep))
	o := NewOrchestrator(mb, swapper, settlementChain, nil)

	outcome := o.Consolidate(context.Background(), "ETH", ethBalances(), &PostSwap{
		DonorToken:   "ETH",
		TargetToken:  "USDC",
		TargetAmount: decimal.NewFromInt(50),
	})

	require.True(t, outcome.Success, "unexpected error: %s", outcome.Error)
	assert.Len(t, mb.Requests, 1)
	assert.Len(t, wallet.CallsOfKind(provider.CallKindSwap), 1)
}
