package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abroadly/xamanlink/service/xumm"
)

func newTestGateway(t *testing.T, handler http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(srv.URL, nil, nil)
}

func TestGateway_CreatePayload(t *testing.T) {
	var gotBody map[string]any
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/api/wallets/xaman/createpayload", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"payload": xumm.CreatedPayload{UUID: "payload-1"},
		})
	}))

	created, err := g.CreatePayload(context.Background(), &xumm.CreatePayloadRequest{
		TxJSON:  map[string]any{"TransactionType": "SignIn"},
		Options: &xumm.PayloadOptions{Submit: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "payload-1", created.UUID)

	tx := gotBody["transaction"].(map[string]any)
	assert.Equal(t, "SignIn", tx["TransactionType"])
	assert.Contains(t, gotBody, "options")
}

func TestGateway_GetPayloadNotFound(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := g.GetPayload(context.Background(), "missing")
	var notFound *xumm.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGateway_CheckSignRejection(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid signature"})
	}))

	_, err := g.CheckSign(context.Background(), "DEADBEEF")
	require.ErrorIs(t, err, ErrVerificationFailed)
	assert.Contains(t, err.Error(), "Invalid signature")
}

func TestGateway_CheckSignSuccess(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/wallets/xaman/checksign", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("hex"))
		json.NewEncoder(w).Encode(CheckSignResult{XRPAddress: "rSigner", Token: "tok"})
	}))

	result, err := g.CheckSign(context.Background(), "DEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, "rSigner", result.XRPAddress)
	assert.Equal(t, "tok", result.Token)
}
