package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abroadly/xamanlink/service/xumm"
)

func newTestReconciler(t *testing.T, svc PayloadService) (*Reconciler, *SessionStore) {
	t.Helper()
	store, err := NewSessionStore(sessionFile(t), nil)
	require.NoError(t, err)
	return NewReconciler(svc, store, nil), store
}

func TestReconcile_IgnoresUnrelatedURL(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeService{})

	result, err := r.Reconcile(context.Background(), "https://app.example.com/dashboard?tab=2")
	require.NoError(t, err)
	assert.False(t, result.Handled)
	assert.Equal(t, "https://app.example.com/dashboard?tab=2", result.CleanURL)
}

func TestReconcile_SignedConnectWritesSession(t *testing.T) {
	svc := &fakeService{
		getFn: func(id string) (*xumm.Payload, error) { return signedPayload(id), nil },
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?payloadId=payload-1&journey=connect")
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.True(t, result.Signed)
	assert.Equal(t, JourneyConnect, result.Journey)
	assert.Equal(t, "rVerified", result.Account)
	assert.Equal(t, "TX123", result.TxID)
	assert.Equal(t, "https://app.example.com/wallet", result.CleanURL)

	session := store.Current()
	require.NotNil(t, session)
	assert.Equal(t, "rVerified", session.Address)
}

func TestReconcile_SignedTransactionWritesNoSession(t *testing.T) {
	svc := &fakeService{
		getFn: func(id string) (*xumm.Payload, error) { return signedPayload(id), nil },
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?payloadId=payload-1&journey=transaction")
	require.NoError(t, err)

	assert.True(t, result.Signed)
	assert.Equal(t, JourneyTransaction, result.Journey)
	assert.Nil(t, store.Current())
}

func TestReconcile_UnsignedPayload(t *testing.T) {
	svc := &fakeService{
		getFn: func(id string) (*xumm.Payload, error) {
			return &xumm.Payload{Meta: xumm.PayloadMeta{UUID: id, Exists: true, Cancelled: true}}, nil
		},
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?payloadId=payload-1&journey=connect")
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.False(t, result.Signed)
	assert.Nil(t, store.Current())
	// The journey parameters are stripped even without a signature.
	assert.Equal(t, "https://app.example.com/wallet", result.CleanURL)
}

func TestReconcile_LookupFailureStillCleansURL(t *testing.T) {
	svc := &fakeService{
		getFn: func(string) (*xumm.Payload, error) { return nil, errors.New("upstream down") },
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?tab=1&payloadId=payload-1&journey=connect")
	require.Error(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Handled)
	assert.NotContains(t, result.CleanURL, "payloadId")
	assert.NotContains(t, result.CleanURL, "journey")
	assert.Contains(t, result.CleanURL, "tab=1")
	assert.Nil(t, store.Current())
}

func TestReconcile_SignedWithoutHexWritesNoSession(t *testing.T) {
	svc := &fakeService{
		getFn: func(id string) (*xumm.Payload, error) {
			p := signedPayload(id)
			p.Response.Hex = ""
			return p, nil
		},
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?payloadId=payload-1&journey=connect")
	require.ErrorIs(t, err, ErrVerificationFailed)
	assert.False(t, result.Signed)
	assert.Equal(t, int32(0), svc.checkCalls.Load())
	assert.Nil(t, store.Current())
}

func TestReconcile_VerificationFailureWritesNoSession(t *testing.T) {
	svc := &fakeService{
		getFn:   func(id string) (*xumm.Payload, error) { return signedPayload(id), nil },
		checkFn: func(string) (*CheckSignResult, error) { return nil, ErrVerificationFailed },
	}
	r, store := newTestReconciler(t, svc)

	result, err := r.Reconcile(context.Background(),
		"https://app.example.com/wallet?payloadId=payload-1&journey=connect")
	require.ErrorIs(t, err, ErrVerificationFailed)
	assert.False(t, result.Signed)
	assert.Nil(t, store.Current())
	assert.Equal(t, "https://app.example.com/wallet", result.CleanURL)
}

func TestReconcile_InvalidURL(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeService{})
	_, err := r.Reconcile(context.Background(), "://not-a-url")
	require.Error(t, err)
}
