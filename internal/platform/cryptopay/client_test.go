package cryptopay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "access-bot-backend/internal/common/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", WithBackoff(time.Millisecond)), &calls
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("hijack unsupported")
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func TestCreateInvoice(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/createInvoice", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("Crypto-Pay-API-Token"))

		var body map[string]string
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "USDT", body["asset"])
		assert.Equal(t, "3", body["amount"])
		assert.Equal(t, "42", body["payload"])

		_, _ = w.Write([]byte(`{"ok":true,"result":{"invoice_id":777,"status":"active","bot_invoice_url":"https://t.me/CryptoBot?start=IV777"}}`))
	})

	inv, err := c.CreateInvoice(context.Background(), CreateInvoiceRequest{
		Asset: "USDT", Amount: decimal.RequireFromString("3.0"), Description: "access", Payload: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "777", inv.ID())
	assert.Equal(t, InvoiceActive, inv.Status)
	assert.Equal(t, "https://t.me/CryptoBot?start=IV777", inv.URL())
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestGetInvoiceUnknownReturnsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[]}}`))
	})

	inv, err := c.GetInvoice(context.Background(), "5")
	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestGetInvoiceFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[{"invoice_id":5,"status":"paid","pay_url":"https://pay/5"}]}}`))
	})

	inv, err := c.GetInvoice(context.Background(), "5")
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, InvoicePaid, inv.Status)
	assert.Equal(t, "https://pay/5", inv.URL())
}

func TestHTTPErrorIsNotRetried(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":401,"name":"UNAUTHORIZED"}}`))
	})

	_, err := c.GetInvoice(context.Background(), "5")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderAPI(err))
	assert.Contains(t, err.Error(), "UNAUTHORIZED")
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestNonJSONIsAPIError(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.GetInvoice(context.Background(), "5")
	assert.True(t, apperrors.IsProviderAPI(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestEnvelopeNotOkIsAPIError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":{"code":400,"name":"ASSET_INVALID"}}`))
	})

	_, err := c.CreateInvoice(context.Background(), CreateInvoiceRequest{Asset: "XXX", Amount: decimal.NewFromInt(1)})
	assert.True(t, apperrors.IsProviderAPI(err))
	assert.Contains(t, err.Error(), "ASSET_INVALID")
}

func TestNetworkErrorRetriedThreeTimes(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		dropConnection(w)
	})

	_, err := c.GetInvoice(context.Background(), "5")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderNetwork(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestNetworkErrorRecovers(t *testing.T) {
	var n int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			dropConnection(w)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[{"invoice_id":5,"status":"active"}]}}`))
	})

	inv, err := c.GetInvoice(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, InvoiceActive, inv.Status)
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestObserverSeesOutcome(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"items":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", WithObserver(func(method, outcome string) {
		seen = append(seen, method+":"+outcome)
	}), WithRateLimit(100))
	_, err := c.GetInvoice(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"getInvoices:ok"}, seen)
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"update_id":1,"update_type":"invoice_paid","request_date":"2025-01-01T00:00:00Z","payload":{"invoice_id":9,"status":"paid","payload":"42"}}`)
	sig := Sign("tok", body)

	assert.True(t, VerifySignature("tok", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("tok", append(body, ' '), sig))
	assert.False(t, VerifySignature("tok", body, "zz"))

	u, err := ParseUpdate(body)
	require.NoError(t, err)
	assert.Equal(t, UpdateInvoicePaid, u.UpdateType)
	assert.Equal(t, "9", u.Payload.ID())

	_, err = ParseUpdate([]byte(`{"update_type":"invoice_paid"}`))
	assert.Error(t, err)
}
