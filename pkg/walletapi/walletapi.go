// Package walletapi implements the capability interfaces over the wallet
// sidecar's HTTP API. The sidecar owns keys, wallet sessions, and the
// bridge/swap SDK; this client only relays requests and reports outcomes.
package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/models"
	"github.com/payrun-hq/payrunner/pkg/provider"
)

// DefaultConfirmPollInterval is how often an in-flight contract call is
// polled for confirmation.
const DefaultConfirmPollInterval = 2 * time.Second

// Client is a wallet sidecar API client. It implements BalanceProvider,
// WalletOperations, TransferCapability, and BridgeCapability.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	logger       logger.Logger
	pollInterval time.Duration
}

var (
	_ provider.BalanceProvider    = (*Client)(nil)
	_ provider.WalletOperations   = (*Client)(nil)
	_ provider.TransferCapability = (*Client)(nil)
	_ provider.BridgeCapability   = (*Client)(nil)
)

// New creates a new wallet sidecar client
func New(endpoint string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:     endpoint,
		httpClient:   createHTTPClient(),
		logger:       log,
		pollInterval: DefaultConfirmPollInterval,
	}
}

// SetPollInterval overrides the confirmation poll interval
func (c *Client) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

// IsReady reports whether the sidecar has an initialized wallet session
func (c *Client) IsReady() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var status struct {
		Ready bool `json:"ready"`
	}
	if err := c.getJSON(ctx, "/api/v1/ready", &status); err != nil {
		return false
	}
	return status.Ready
}

// balancesResponse represents the structure of the balances API response
type balancesResponse struct {
	Balances []models.BalanceSnapshot `json:"balances,omitempty"`
	Data     []models.BalanceSnapshot `json:"data,omitempty"`
}

// GetUnifiedBalances gets the cross-chain balance snapshot from the sidecar
func (c *Client) GetUnifiedBalances(ctx context.Context) ([]models.BalanceSnapshot, error) {
	bodyBytes, err := c.get(ctx, "/api/v1/balances")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %v", err)
	}

	// Try to unmarshal into our wrapper struct first
	var apiResp balancesResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		// If that fails, try directly as an array
		var snapshots []models.BalanceSnapshot
		if err := json.Unmarshal(bodyBytes, &snapshots); err != nil {
			return nil, fmt.Errorf("failed to decode balances: %v, body: %s", err, string(bodyBytes))
		}
		return snapshots, nil
	}
	if len(apiResp.Balances) > 0 {
		return apiResp.Balances, nil
	}
	return apiResp.Data, nil
}

// ActiveChainID gets the wallet session's current chain
func (c *Client) ActiveChainID(ctx context.Context) (int, error) {
	var session struct {
		ChainID int `json:"chain_id"`
	}
	if err := c.getJSON(ctx, "/api/v1/wallet/chain", &session); err != nil {
		return 0, fmt.Errorf("failed to fetch active chain: %v", err)
	}
	return session.ChainID, nil
}

// SwitchChain asks the sidecar to move the wallet session to chainID
func (c *Client) SwitchChain(ctx context.Context, chainID int) error {
	payload := map[string]int{"chain_id": chainID}
	if _, err := c.post(ctx, "/api/v1/wallet/chain", payload); err != nil {
		return fmt.Errorf("failed to switch to chain %d: %v", chainID, err)
	}
	return nil
}

// SendContractCall submits a contract call and returns a handle that polls
// the sidecar until the transaction confirms
func (c *Client) SendContractCall(ctx context.Context, call provider.ContractCall) (provider.TxHandle, error) {
	bodyBytes, err := c.post(ctx, "/api/v1/wallet/calls", call)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s call: %v", call.Kind, err)
	}

	var submitted struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(bodyBytes, &submitted); err != nil || submitted.CallID == "" {
		return nil, fmt.Errorf("failed to decode call submission, body: %s", string(bodyBytes))
	}

	return &callHandle{client: c, callID: submitted.CallID}, nil
}

// callHandle polls one submitted contract call until it leaves the pending
// state
type callHandle struct {
	client *Client
	callID string
}

func (h *callHandle) AwaitConfirmation(ctx context.Context) (string, error) {
	ticker := time.NewTicker(h.client.pollInterval)
	defer ticker.Stop()

	for {
		var status struct {
			Status string `json:"status"`
			TxHash string `json:"tx_hash"`
			Error  string `json:"error"`
		}
		if err := h.client.getJSON(ctx, "/api/v1/wallet/calls/"+h.callID, &status); err != nil {
			return "", fmt.Errorf("failed to poll call %s: %v", h.callID, err)
		}

		switch status.Status {
		case "confirmed":
			if status.TxHash == "" {
				return "", fmt.Errorf("call %s confirmed without a transaction hash", h.callID)
			}
			return status.TxHash, nil
		case "failed":
			return "", fmt.Errorf("call %s failed: %s", h.callID, status.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Transfer asks the sidecar to execute one payout transfer
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	bodyBytes, err := c.post(ctx, "/api/v1/transfers", req)
	if err != nil {
		return provider.TransferResult{}, fmt.Errorf("failed to execute transfer: %v", err)
	}

	var result provider.TransferResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return provider.TransferResult{}, fmt.Errorf("failed to decode transfer result, body: %s", string(bodyBytes))
	}
	return result, nil
}

// SimulateTransfer asks the sidecar to dry-run a transfer
func (c *Client) SimulateTransfer(ctx context.Context, req provider.TransferRequest) error {
	if _, err := c.post(ctx, "/api/v1/transfers/simulate", req); err != nil {
		return fmt.Errorf("transfer simulation failed: %v", err)
	}
	return nil
}

// Bridge asks the sidecar to consolidate funds onto the destination chain
func (c *Client) Bridge(ctx context.Context, req provider.BridgeRequest) (provider.BridgeResult, error) {
	bodyBytes, err := c.post(ctx, "/api/v1/bridge", req)
	if err != nil {
		return provider.BridgeResult{}, fmt.Errorf("failed to execute bridge: %v", err)
	}

	var result provider.BridgeResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return provider.BridgeResult{}, fmt.Errorf("failed to decode bridge result, body: %s", string(bodyBytes))
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	bodyBytes, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(bodyBytes, out)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
