package payapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/payrun-hq/payrunner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPendingGroups_WrappedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment-groups", r.URL.Path)
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"groups": [
				{"id": "grp-1", "obligations": [
					{"id": "ob-1", "group_id": "grp-1", "recipient": "alice", "recipient_address": "0x1111111111111111111111111111111111111111", "amount": "150", "token": "USDC", "destination_chain": 84532}
				]}
			],
			"page": 1, "total_count": 1, "total_pages": 1
		}`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	groups, err := client.FetchPendingGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "grp-1", groups[0].ID)
	require.Len(t, groups[0].Obligations, 1)
	assert.Equal(t, "150", groups[0].Obligations[0].Amount)
}

func TestFetchPendingGroups_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "grp-9", "obligations": []}]`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	groups, err := client.FetchPendingGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "grp-9", groups[0].ID)
}

func TestFetchPendingGroups_FlatObligations(t *testing.T) {
	// Flat obligation lists are folded into groups ordered by group ID
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id": "ob-2", "group_id": "grp-b", "recipient": "bob", "amount": "1", "token": "ETH", "destination_chain": 84532},
			{"id": "ob-1", "group_id": "grp-a", "recipient": "alice", "amount": "150", "token": "USDC", "destination_chain": 84532},
			{"id": "ob-3", "group_id": "grp-a", "recipient": "carol", "amount": "200", "token": "USDC", "destination_chain": 84532}
		]`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	groups, err := client.FetchPendingGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "grp-a", groups[0].ID)
	assert.Len(t, groups[0].Obligations, 2)
	assert.Equal(t, "grp-b", groups[1].ID)
	assert.Len(t, groups[1].Obligations, 1)
}

func TestFetchPendingGroups_EmptyPaginated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"groups": [], "page": 1, "total_count": 0, "total_pages": 0}`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	groups, err := client.FetchPendingGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFetchPendingGroups_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	_, err := client.FetchPendingGroups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
}

func TestGetMyIntents_Paging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/intents", r.URL.Path)
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"intents": [{"id": "intent-1", "deposited": true, "fulfilled": true}], "page": 1, "total_count": 1, "total_pages": 1}`))
			return
		}
		_, _ = w.Write([]byte(`{"intents": [], "page": 2, "total_count": 1, "total_pages": 1}`))
	}))
	defer server.Close()

	client := NewIntentClient(server.URL, &logger.EmptyLogger{})

	first, err := client.GetMyIntents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "intent-1", first[0].ID)

	second, err := client.GetMyIntents(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, second)
}
