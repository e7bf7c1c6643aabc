package xumm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "test-secret", nil, nil)
}

func TestCreatePayload_SendsCredentials(t *testing.T) {
	var gotKey, gotSecret string
	var gotBody CreatePayloadRequest

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/payload", r.URL.Path)
		gotKey = r.Header.Get("X-API-Key")
		gotSecret = r.Header.Get("X-API-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(CreatedPayload{
			UUID: "11111111-2222-3333-4444-555555555555",
			Next: PayloadNext{Always: "https://xumm.app/sign/1111"},
			Refs: PayloadRefs{
				QRPng:           "https://xumm.app/sign/1111_q.png",
				WebsocketStatus: "wss://xumm.app/sign/1111",
			},
		})
	}))

	created, err := client.CreatePayload(context.Background(), &CreatePayloadRequest{
		TxJSON:  map[string]any{"TransactionType": "SignIn"},
		Options: &PayloadOptions{ForceNetwork: "MAINNET"},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "test-secret", gotSecret)
	assert.Equal(t, "MAINNET", gotBody.Options.ForceNetwork)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", created.UUID)
	assert.NotEmpty(t, created.Refs.WebsocketStatus)
}

func TestCreatePayload_RequiresCredentials(t *testing.T) {
	client := NewClient("http://localhost:0", "", "", nil, nil)
	_, err := client.CreatePayload(context.Background(), &CreatePayloadRequest{
		TxJSON: map[string]any{"TransactionType": "SignIn"},
	})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreatePayload_UpstreamErrorPassthrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"message": "invalid api credentials"})
	}))

	_, err := client.CreatePayload(context.Background(), &CreatePayloadRequest{
		TxJSON: map[string]any{"TransactionType": "SignIn"},
	})
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
	assert.Contains(t, upstream.Message, "invalid api credentials")
}

func TestGetPayload_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetPayload(context.Background(), "missing-id")
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing-id", notFound.PayloadID)
}

func TestGetPayload_DecodesMeta(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payload/abc", r.URL.Path)
		json.NewEncoder(w).Encode(Payload{
			Meta: PayloadMeta{UUID: "abc", Exists: true, Resolved: true, Signed: true},
			Response: PayloadResponse{
				Hex:     "DEADBEEF",
				Account: "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh",
				TxID:    "F00D",
			},
		})
	}))

	payload, err := client.GetPayload(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, payload.Meta.Signed)
	assert.True(t, payload.Meta.Terminal())
	assert.Equal(t, "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", payload.Response.Account)
}

func TestPayloadMeta_Terminal(t *testing.T) {
	assert.False(t, PayloadMeta{}.Terminal())
	assert.True(t, PayloadMeta{Signed: true}.Terminal())
	assert.True(t, PayloadMeta{Cancelled: true}.Terminal())
	assert.True(t, PayloadMeta{Expired: true}.Terminal())
}
