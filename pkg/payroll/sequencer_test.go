package payroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrun-hq/payrunner/pkg/balance"
	"github.com/payrun-hq/payrunner/pkg/bridge"
	"github.com/payrun-hq/payrunner/pkg/circuitbreaker"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
	"github.com/payrun-hq/payrunner/pkg/provider/mocks"
	"github.com/payrun-hq/payrunner/pkg/swap"
)

const (
	settlementChain = 84532
	addrA           = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB           = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC           = "0xcccccccccccccccccccccccccccccccccccccccc"
	routerAddr      = "0x1111111111111111111111111111111111111111"
)

var testAllowlist = []int{11155111, 421614, 84532, 11155420, 80002}

// seqBalanceProvider serves a different snapshot set per fetch so tests can
// model balances changing after a cure
type seqBalanceProvider struct {
	mu   sync.Mutex
	sets [][]models.BalanceSnapshot
	idx  int
}

func (p *seqBalanceProvider) IsReady() bool { return true }

func (p *seqBalanceProvider) GetUnifiedBalances(_ context.Context) ([]models.BalanceSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.idx
	if i >= len(p.sets) {
		i = len(p.sets) - 1
	}
	p.idx++
	return p.sets[i], nil
}

func settlementBalance(token, amount string) models.BalanceSnapshot {
	return models.BalanceSnapshot{
		Token: token,
		Breakdown: []models.ChainBalance{
			{ChainID: settlementChain, Balance: amount},
		},
	}
}

type testRig struct {
	provider *seqBalanceProvider
	wallet   *mocks.MockWallet
	bridge   *mocks.MockBridge
	transfer *mocks.MockTransfer
	ledger   *mocks.MockLedger
	pauses   int
}

func newTestSequencer(t *testing.T, sets [][]models.BalanceSnapshot, opts ...SequencerOption) (*Sequencer, *testRig) {
	t.Helper()
	rig := &testRig{
		provider: &seqBalanceProvider{sets: sets},
		wallet:   &mocks.MockWallet{ChainID: settlementChain},
		bridge:   &mocks.MockBridge{Result: provider.BridgeResult{Success: true}},
		transfer: &mocks.MockTransfer{},
		ledger:   &mocks.MockLedger{},
	}

	aggregator := balance.NewAggregator(rig.provider, nil)
	swapper := swap.NewOrchestrator(rig.wallet, settlementChain, routerAddr, nil, swap.WithSleep(mocks.NoSleep))
	bridger := bridge.NewOrchestrator(rig.bridge, swapper, settlementChain, nil)

	countingSleep := func(ctx context.Context, d time.Duration) error {
		rig.pauses++
		return nil
	}

	cfg := SequencerConfig{
		SettlementChainID: settlementChain,
		ChainAllowlist:    testAllowlist,
		Buffers: map[string]decimal.Decimal{
			"USDC": dec("3"),
			"ETH":  dec("0.001"),
		},
		TransferPause: time.Second,
	}

	opts = append(opts, WithSleep(countingSleep))
	seq := NewSequencer(aggregator, swapper, bridger, rig.transfer, rig.ledger, cfg, nil, opts...)
	return seq, rig
}

func TestRunGroupSufficientFunds(t *testing.T) {
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{
		{settlementBalance("USDC", "100")},
	})

	obligations := []models.Obligation{
		{ID: "ob-1", Recipient: "alice", RecipientAddress: addrA, Amount: "50", Token: "USDC", DestinationChain: settlementChain},
		{ID: "ob-2", Recipient: "bob", RecipientAddress: addrB, Amount: "50", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.False(t, result.Blocked)

	// Exactly two transfers, in input order, with a pause between them
	require.Len(t, rig.transfer.Requests, 2)
	assert.Equal(t, addrA, rig.transfer.Requests[0].Recipient)
	assert.Equal(t, addrB, rig.transfer.Requests[1].Recipient)
	assert.Equal(t, 1, rig.pauses)

	// One ledger row per successful transfer
	require.Len(t, rig.ledger.Records, 2)
	assert.Equal(t, "ob-1", rig.ledger.Records[0].ObligationID)
	assert.Equal(t, models.PaymentStatusPending, rig.ledger.Records[0].Status)
	assert.NotEmpty(t, rig.ledger.Records[0].TxHash)
}

func TestRunGroupInvalidObligationsSkipped(t *testing.T) {
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{
		{settlementBalance("USDC", "100")},
	})

	obligations := []models.Obligation{
		{ID: "bad-addr", Recipient: "eve", RecipientAddress: "not-an-address", Amount: "10", Token: "USDC", DestinationChain: settlementChain},
		{ID: "bad-amount", Recipient: "mallory", RecipientAddress: addrB, Amount: "0", Token: "USDC", DestinationChain: settlementChain},
		{ID: "ok", Recipient: "alice", RecipientAddress: addrA, Amount: "10", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, rig.transfer.Requests, 1)
	assert.Equal(t, addrA, rig.transfer.Requests[0].Recipient)
}

func TestRunGroupPartialFailureIsolated(t *testing.T) {
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{
		{settlementBalance("USDC", "300")},
	})
	// Second transfer fails, the rest succeed
	rig.transfer.Results = []provider.TransferResult{
		{Success: true, TxHash: "0x01"},
		{Success: false},
		{Success: true, TxHash: "0x03"},
	}

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
		{ID: "2", RecipientAddress: addrB, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
		{ID: "3", RecipientAddress: addrC, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	// All three were attempted despite the middle failure
	assert.Len(t, rig.transfer.Requests, 3)
	assert.Equal(t, StatusFailed, result.Results[1].Status)
	assert.Contains(t, result.Results[1].Error, ErrTransferFailed.Error())
	// Only successful transfers reach the ledger
	assert.Len(t, rig.ledger.Records, 2)
}

func TestRunGroupMultiTokenShortfallBlocks(t *testing.T) {
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{
		{settlementBalance("USDC", "1"), settlementBalance("ETH", "0.001")},
	})

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
		{ID: "2", RecipientAddress: addrB, Amount: "1", Token: "ETH", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Contains(t, result.Message, ErrMultiTokenShortfall.Error())
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Missing, 2)
	// The transfer capability must not be touched at all
	assert.Empty(t, rig.transfer.Requests)
	assert.Empty(t, rig.transfer.Simulated)
}

func TestRunGroupSwapCure(t *testing.T) {
	// USDC shortfall with nothing to bridge; ETH on the settlement chain
	// funds the swap. The post-cure fetch sees the topped-up balance.
	before := []models.BalanceSnapshot{
		settlementBalance("USDC", "90"),
		settlementBalance("ETH", "1"),
	}
	after := []models.BalanceSnapshot{
		settlementBalance("USDC", "103"),
		settlementBalance("ETH", "0.99"),
	}
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{before, after})

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.False(t, result.Blocked)
	assert.Equal(t, 1, result.Succeeded)
	// Cure swapped ETH into USDC: deficit 10 + buffer 3 at rate 2000
	swaps := rig.wallet.CallsOfKind(provider.CallKindSwap)
	require.Len(t, swaps, 1)
	assert.Equal(t, "6500000000000000", swaps[0].AmountUnits) // 13/2000 ETH in wei
	assert.Empty(t, rig.bridge.Requests)
}

func TestRunGroupBridgeCure(t *testing.T) {
	// ETH shortfall on the settlement chain while other chains hold ETH
	before := []models.BalanceSnapshot{
		settlementBalance("USDC", "50"),
		{
			Token: "ETH",
			Breakdown: []models.ChainBalance{
				{ChainID: settlementChain, Balance: "0.05"},
				{ChainID: 11155111, Balance: "0.1"},
				{ChainID: 421614, Balance: "0.1"},
			},
		},
	}
	after := []models.BalanceSnapshot{
		settlementBalance("USDC", "50"),
		settlementBalance("ETH", "0.246"),
	}
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{before, after})

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "0.2", Token: "ETH", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.False(t, result.Blocked)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, rig.bridge.Requests, 1)
	// 0.2 total minus 0.002 gas buffer on each of the two nonzero chains
	assert.Equal(t, "0.196", rig.bridge.Requests[0].Amount)
	assert.Equal(t, []int{11155111, 421614}, rig.bridge.Requests[0].SourceChains)
	// No swap involved in a pure consolidation cure
	assert.Empty(t, rig.wallet.CallsOfKind(provider.CallKindSwap))
}

func TestRunGroupCureFailureBlocksOnlyAffectedToken(t *testing.T) {
	// USDC short, swap rejected; the ETH obligation is covered and must
	// still be paid
	snapshots := []models.BalanceSnapshot{
		settlementBalance("USDC", "10"),
		settlementBalance("ETH", "1"),
	}
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{snapshots})
	rig.wallet.SendErr = errors.New("execution reverted")

	obligations := []models.Obligation{
		{ID: "usdc-ob", RecipientAddress: addrA, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
		{ID: "eth-ob", RecipientAddress: addrB, Amount: "0.5", Token: "ETH", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, rig.transfer.Requests, 1)
	assert.Equal(t, "ETH", rig.transfer.Requests[0].Token)
	assert.Contains(t, result.Missing, "USDC")
}

func TestRunGroupInsufficientDonorBalance(t *testing.T) {
	// 100 USDC short needs 0.0515 ETH donor; only 0.01 ETH held
	snapshots := []models.BalanceSnapshot{
		settlementBalance("USDC", "1"),
		settlementBalance("ETH", "0.01"),
	}
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{snapshots})

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "100", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Empty(t, rig.transfer.Requests)
	assert.Empty(t, rig.wallet.CallsOfKind(provider.CallKindSwap))
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Error, ErrInsufficientDonorBalance.Error())
}

func TestRunGroupPersistenceFailureIsWarningOnly(t *testing.T) {
	seq, rig := newTestSequencer(t, [][]models.BalanceSnapshot{
		{settlementBalance("USDC", "100")},
	})
	rig.ledger.SaveErr = errors.New("connection refused")

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "50", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	// The transfer already happened on-chain; a failed write cannot
	// retroactively fail it
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
}

func TestRunGroupOpenBreakerFailsWithoutTransfer(t *testing.T) {
	breaker := circuitbreaker.NewCircuitBreaker(true, 1, time.Minute, time.Minute, nil)
	breaker.RecordFailure()

	seq, rig := newTestSequencer(t,
		[][]models.BalanceSnapshot{{settlementBalance("USDC", "100")}},
		WithBreakers(map[int]*circuitbreaker.CircuitBreaker{settlementChain: breaker}),
	)

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "50", Token: "USDC", DestinationChain: settlementChain},
	}

	result, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, rig.transfer.Requests)
}

func TestRunGroupEmitsEvents(t *testing.T) {
	events := make(chan Event, 32)
	seq, _ := newTestSequencer(t,
		[][]models.BalanceSnapshot{{settlementBalance("USDC", "100")}},
		WithEvents(events),
	)

	obligations := []models.Obligation{
		{ID: "1", RecipientAddress: addrA, Amount: "50", Token: "USDC", DestinationChain: settlementChain},
	}

	_, err := seq.RunGroup(context.Background(), obligations)
	require.NoError(t, err)
	close(events)

	var stages []EventStage
	for event := range events {
		stages = append(stages, event.Stage)
	}
	assert.Equal(t, []EventStage{StageShortfallCheck, StageTransferring, StageSucceeded}, stages)
}
