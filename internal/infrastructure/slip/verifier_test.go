package slip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPVerifier_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(Result{Valid: true, Amount: req.Amount, Ref: req.SlipRef})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "key", srv.Client())
	res, err := v.Verify(context.Background(), "SLIP1", 100000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "SLIP1", res.Ref)
}

func TestHTTPVerifier_AmountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Valid: true, Amount: 500})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "", srv.Client())
	res, err := v.Verify(context.Background(), "SLIP1", 100000)
	assert.ErrorIs(t, err, ErrSlipRejected)
	assert.False(t, res.Valid)
}

func TestHTTPVerifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "", srv.Client())
	_, err := v.Verify(context.Background(), "SLIP1", 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlipRejected)
}

func TestManualVerifier(t *testing.T) {
	res, err := ManualVerifier{}.Verify(context.Background(), "x", 42)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(42), res.Amount)
}
