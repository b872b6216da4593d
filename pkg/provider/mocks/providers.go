// Package mocks contains hand-written fakes for the capability interfaces.
// Each fake records the calls it receives and lets tests script outcomes.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
)

// MockBalanceProvider serves a scripted set of balance snapshots
type MockBalanceProvider struct {
	mu        sync.Mutex
	Ready     bool
	Snapshots []models.BalanceSnapshot
	Err       error
	Calls     int
}

var _ provider.BalanceProvider = (*MockBalanceProvider)(nil)

func (m *MockBalanceProvider) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Ready
}

func (m *MockBalanceProvider) GetUnifiedBalances(_ context.Context) ([]models.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Snapshots, nil
}

// SetSnapshots replaces the scripted snapshots
func (m *MockBalanceProvider) SetSnapshots(snapshots []models.BalanceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = snapshots
}

// MockTxHandle resolves immediately with a fixed hash or error
type MockTxHandle struct {
	Hash string
	Err  error
}

var _ provider.TxHandle = (*MockTxHandle)(nil)

func (m *MockTxHandle) AwaitConfirmation(_ context.Context) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Hash, nil
}

// MockWallet is a scriptable wallet session
type MockWallet struct {
	mu         sync.Mutex
	ChainID    int
	SwitchErr  error
	SendErr    error
	ConfirmErr error
	SwitchedTo []int
	SentCalls  []provider.ContractCall
	hashSeq    int
}

var _ provider.WalletOperations = (*MockWallet)(nil)

func (m *MockWallet) ActiveChainID(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ChainID, nil
}

func (m *MockWallet) SwitchChain(_ context.Context, chainID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SwitchErr != nil {
		return m.SwitchErr
	}
	m.SwitchedTo = append(m.SwitchedTo, chainID)
	m.ChainID = chainID
	return nil
}

func (m *MockWallet) SendContractCall(_ context.Context, call provider.ContractCall) (provider.TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.SentCalls = append(m.SentCalls, call)
	m.hashSeq++
	return &MockTxHandle{
		Hash: fmt.Sprintf("0x%064x", m.hashSeq),
		Err:  m.ConfirmErr,
	}, nil
}

// CallsOfKind returns the sent calls matching kind, in order
func (m *MockWallet) CallsOfKind(kind provider.CallKind) []provider.ContractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []provider.ContractCall
	for _, call := range m.SentCalls {
		if call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}

// MockTransfer is a scriptable transfer capability. Results are consumed in
// order; once exhausted every call succeeds with a generated hash.
type MockTransfer struct {
	mu        sync.Mutex
	Results   []provider.TransferResult
	Errs      []error
	Requests  []provider.TransferRequest
	Simulated []provider.TransferRequest
	hashSeq   int
}

var _ provider.TransferCapability = (*MockTransfer)(nil)

func (m *MockTransfer) Transfer(_ context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.Requests)
	m.Requests = append(m.Requests, req)
	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return provider.TransferResult{}, m.Errs[idx]
	}
	if idx < len(m.Results) {
		return m.Results[idx], nil
	}
	m.hashSeq++
	return provider.TransferResult{
		Success: true,
		TxHash:  fmt.Sprintf("0x%064x", m.hashSeq),
	}, nil
}

func (m *MockTransfer) SimulateTransfer(_ context.Context, req provider.TransferRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Simulated = append(m.Simulated, req)
	return nil
}

// MockBridge is a scriptable bridge capability
type MockBridge struct {
	mu       sync.Mutex
	Result   provider.BridgeResult
	Err      error
	Requests []provider.BridgeRequest
}

var _ provider.BridgeCapability = (*MockBridge)(nil)

func (m *MockBridge) Bridge(_ context.Context, req provider.BridgeRequest) (provider.BridgeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return provider.BridgeResult{}, m.Err
	}
	return m.Result, nil
}

// MockLedger is an in-memory Ledger
type MockLedger struct {
	mu      sync.Mutex
	Records []*models.PaymentRecord
	SaveErr error
	Patches map[string][]models.PaymentPatch
}

var _ provider.Ledger = (*MockLedger)(nil)

func (m *MockLedger) SavePaymentRecord(_ context.Context, record *models.PaymentRecord) (provider.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return provider.SaveResult{}, m.SaveErr
	}
	m.Records = append(m.Records, record)
	return provider.SaveResult{Success: true, Record: record}, nil
}

func (m *MockLedger) GetPaymentByIntentID(_ context.Context, intentID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.Records {
		if record.IntentID == intentID {
			return record, nil
		}
	}
	return nil, nil
}

func (m *MockLedger) UpdatePayment(_ context.Context, id string, patch models.PaymentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Patches == nil {
		m.Patches = make(map[string][]models.PaymentPatch)
	}
	m.Patches[id] = append(m.Patches[id], patch)
	for _, record := range m.Records {
		if record.ID.String() == id {
			applyPatch(record, patch)
		}
	}
	return nil
}

func applyPatch(record *models.PaymentRecord, patch models.PaymentPatch) {
	if patch.TxHash != nil {
		record.TxHash = *patch.TxHash
	}
	if patch.DepositTxHash != nil {
		record.DepositTxHash = *patch.DepositTxHash
	}
	if patch.SolverTxHash != nil {
		record.SolverTxHash = *patch.SolverTxHash
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
}

// MockIntentSource serves scripted intents, one page only
type MockIntentSource struct {
	mu      sync.Mutex
	Intents []models.Intent
	Err     error
}

var _ provider.IntentSource = (*MockIntentSource)(nil)

func (m *MockIntentSource) GetMyIntents(_ context.Context, page int) ([]models.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if page > 1 {
		return nil, nil
	}
	return m.Intents, nil
}

// NoSleep is a SleepFunc that returns immediately
func NoSleep(_ context.Context, _ time.Duration) error { return nil }
