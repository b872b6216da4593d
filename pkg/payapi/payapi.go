// Package payapi provides a client for the payroll dashboard API.
package payapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/payrun-hq/payrunner/pkg/models"
)

// GroupResponse represents the structure of the payment group API response
type GroupResponse struct {
	Groups     []models.PaymentGroup `json:"groups,omitempty"`
	Data       []models.PaymentGroup `json:"data,omitempty"`    // Some APIs use "data" as the key
	Results    []models.PaymentGroup `json:"results,omitempty"` // Some APIs use "results" as the key
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalCount int                   `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
}

// IntentResponse represents the structure of the intent API response
type IntentResponse struct {
	Intents    []models.Intent `json:"intents,omitempty"`
	Data       []models.Intent `json:"data,omitempty"`
	Results    []models.Intent `json:"results,omitempty"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// Client represents a payroll API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new payroll API client
func New(endpoint string, logger logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     logger,
	}
}

// FetchPendingGroups gets payment groups awaiting settlement from the API
func (c *Client) FetchPendingGroups(ctx context.Context) ([]models.PaymentGroup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1/payment-groups?status=pending", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pending groups request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending groups: %v", err)
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

	// Try to unmarshal into our wrapper struct first
	var apiResp GroupResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		// If that fails, try directly as an array of groups
		var groups []models.PaymentGroup
		if err := json.Unmarshal(bodyBytes, &groups); err == nil {
			return groups, nil
		}
		// Some deployments serve the obligations flat and leave grouping to us
		var obligations []models.Obligation
		if err := json.Unmarshal(bodyBytes, &obligations); err != nil {
			return nil, fmt.Errorf("failed to decode payment groups: %v, body: %s", err, string(bodyBytes))
		}
		return groupObligations(obligations), nil
	}

	// Handle paginated response with no data
	if apiResp.TotalCount == 0 {
		c.logger.Debug("No pending payment groups found (page %d/%d, total count: %d)",
			apiResp.Page, apiResp.TotalPages, apiResp.TotalCount)
		return []models.PaymentGroup{}, nil
	}

	// Get groups from whatever field is populated
	var groups []models.PaymentGroup
	if len(apiResp.Groups) > 0 {
		groups = apiResp.Groups
	} else if len(apiResp.Data) > 0 {
		groups = apiResp.Data
	} else if len(apiResp.Results) > 0 {
		groups = apiResp.Results
	} else {
		c.logger.Debug("No pending payment groups found in API response")
		return []models.PaymentGroup{}, nil
	}
	return groups, nil
}

// groupObligations folds a flat obligation list into per-group batches,
// ordered by group ID so runs stay deterministic
func groupObligations(obligations []models.Obligation) []models.PaymentGroup {
	byGroup := make(map[string][]models.Obligation)
	for _, obligation := range obligations {
		byGroup[obligation.GroupID] = append(byGroup[obligation.GroupID], obligation)
	}

	ids := make([]string, 0, len(byGroup))
	for id := range byGroup {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([]models.PaymentGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, models.PaymentGroup{ID: id, Obligations: byGroup[id]})
	}
	return groups
}

// IntentClient represents a client for the intent status API
type IntentClient struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// NewIntentClient creates a new intent API client
func NewIntentClient(endpoint string, logger logger.Logger) *IntentClient {
	return &IntentClient{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     logger,
	}
}

// GetMyIntents gets one page of this account's intents from the API.
// An empty page means the listing is exhausted.
func (ic *IntentClient) GetMyIntents(ctx context.Context, page int) ([]models.Intent, error) {
	url := fmt.Sprintf("%s/api/v1/intents?page=%d", ic.endpoint, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build intents request: %v", err)
	}

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch intents: %v", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			ic.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp IntentResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		var intents []models.Intent
		if err := json.Unmarshal(bodyBytes, &intents); err != nil {
			return nil, fmt.Errorf("failed to decode intents: %v, body: %s", err, string(bodyBytes))
		}
		return intents, nil
	}

	if len(apiResp.Intents) > 0 {
		return apiResp.Intents, nil
	}
	if len(apiResp.Data) > 0 {
		return apiResp.Data, nil
	}
	if len(apiResp.Results) > 0 {
		return apiResp.Results, nil
	}
	ic.logger.Debug("No intents found on page %d", page)
	return nil, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
