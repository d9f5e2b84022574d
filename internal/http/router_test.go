package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "access-bot-backend/internal/common/errors"
	domain "access-bot-backend/internal/domain/account"
	mw "access-bot-backend/internal/http/middleware"
	"access-bot-backend/internal/platform/cryptopay"
	"access-bot-backend/internal/service/staff"
)

const (
	botToken   = "123456:test-token"
	cryptoTok  = "crypto-token"
	staffActor = int64(2)
)

type recordingSink struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (s *recordingSink) Accept(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	return s.err
}

type fakeStaff struct {
	handled map[int64]bool
	method  domain.PaymentMethod
}

func (f *fakeStaff) Queue(_ context.Context, actorID int64, offset, limit int) (*staff.Page, error) {
	if actorID != staffActor {
		return nil, apperrors.NewForbiddenError("staff only")
	}
	return &staff.Page{
		Items:  []domain.Account{{ID: 100, PaymentStatus: domain.StatusReceiptSent, PaidMethod: domain.MethodRub}},
		Total:  1,
		Offset: offset,
		Limit:  limit,
	}, nil
}

func (f *fakeStaff) Approve(_ context.Context, actorID, userID int64, method domain.PaymentMethod) (*staff.Result, error) {
	f.method = method
	return f.decide(actorID, userID, domain.StatusPaid)
}

func (f *fakeStaff) Deny(_ context.Context, actorID, userID int64) (*staff.Result, error) {
	return f.decide(actorID, userID, domain.StatusFailed)
}

func (f *fakeStaff) decide(actorID, userID int64, status domain.PaymentStatus) (*staff.Result, error) {
	if actorID != staffActor {
		return nil, apperrors.NewForbiddenError("staff only")
	}
	if userID == 404 {
		return nil, apperrors.NewNotFoundError("account", userID)
	}
	acc := &domain.Account{ID: userID, PaymentStatus: status}
	if f.handled[userID] {
		return &staff.Result{Outcome: staff.AlreadyHandled, Account: acc}, nil
	}
	f.handled[userID] = true
	return &staff.Result{Outcome: staff.Won, Account: acc}, nil
}

func newTestRouter(t *testing.T, checks ...HealthCheck) (*gin.Engine, *recordingSink, *fakeStaff) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sink := &recordingSink{}
	fs := &fakeStaff{handled: map[int64]bool{}}
	r := NewRouter(Deps{
		Debug:        true,
		Checks:       checks,
		Gatherer:     prometheus.NewRegistry(),
		WebhookToken: cryptoTok,
		Webhooks:     sink,
		BotToken:     botToken,
		InitDataTTL:  time.Hour,
		Staff:        fs,
	})
	return r, sink, fs
}

// signInitData builds Mini App init-data the way Telegram signs it.
func signInitData(t *testing.T, userID int64) string {
	t.Helper()
	user, err := json.Marshal(map[string]interface{}{"id": userID, "first_name": "Staff"})
	require.NoError(t, err)

	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":  "AAH",
		"user":      string(user),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return q.Encode()
}

func do(r *gin.Engine, req *nethttp.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, path := range []string{"/health", "/live", "/ready"} {
		w := do(r, httptest.NewRequest(nethttp.MethodGet, path, nil))
		assert.Equal(t, nethttp.StatusOK, w.Code, path)
	}
	w := do(r, httptest.NewRequest(nethttp.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))
}

func TestReadyReportsFailedChecks(t *testing.T) {
	r, _, _ := newTestRouter(t,
		HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return fmt.Errorf("connection refused") }},
	)

	w := do(r, httptest.NewRequest(nethttp.MethodGet, "/ready", nil))
	require.Equal(t, nethttp.StatusServiceUnavailable, w.Code)

	var body struct {
		Failed map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"redis": "connection refused"}, body.Failed)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(r, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	assert.Equal(t, nethttp.StatusOK, w.Code)
}

func webhookBody(invoiceID int64) []byte {
	return []byte(fmt.Sprintf(`{"update_id":1,"update_type":"invoice_paid","request_date":"2024-01-01T00:00:00Z","payload":{"invoice_id":%d,"status":"paid","payload":"100"}}`, invoiceID))
}

func TestCryptoPayWebhook(t *testing.T) {
	r, sink, _ := newTestRouter(t)
	body := webhookBody(77)

	t.Run("valid signature is accepted", func(t *testing.T) {
		req := httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
		req.Header.Set(cryptopay.SignatureHeader, cryptopay.Sign(cryptoTok, body))
		w := do(r, req)
		assert.Equal(t, nethttp.StatusOK, w.Code)
		require.Len(t, sink.bodies, 1)
		assert.Equal(t, body, sink.bodies[0])
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
		req.Header.Set(cryptopay.SignatureHeader, cryptopay.Sign("other", body))
		w := do(r, req)
		assert.Equal(t, nethttp.StatusUnauthorized, w.Code)
		assert.Len(t, sink.bodies, 1)
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
		w := do(r, req)
		assert.Equal(t, nethttp.StatusUnauthorized, w.Code)
	})

	t.Run("malformed update is a bad request", func(t *testing.T) {
		bad := []byte(`{"update_type":"invoice_paid"}`)
		req := httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(bad))
		req.Header.Set(cryptopay.SignatureHeader, cryptopay.Sign(cryptoTok, bad))
		w := do(r, req)
		assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	})

	t.Run("sink error maps to status", func(t *testing.T) {
		sink.err = apperrors.NewConflictError("invoice", "foreign payload")
		defer func() { sink.err = nil }()
		req := httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(body))
		req.Header.Set(cryptopay.SignatureHeader, cryptopay.Sign(cryptoTok, body))
		w := do(r, req)
		assert.Equal(t, nethttp.StatusConflict, w.Code)
	})
}

func TestWebhookDisabledWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Webhooks: &recordingSink{}})
	w := do(r, httptest.NewRequest(nethttp.MethodPost, "/webhooks/cryptopay", bytes.NewReader(webhookBody(1))))
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestStaffAPIRequiresInitData(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, httptest.NewRequest(nethttp.MethodGet, "/api/v1/staff/queue", nil))
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/staff/queue", nil)
	req.Header.Set(mw.InitDataHeader, "user=%7B%22id%22%3A2%7D&auth_date=1&hash=00")
	w = do(r, req)
	assert.Equal(t, nethttp.StatusUnauthorized, w.Code)
}

func TestStaffQueue(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/staff/queue?offset=0&limit=5", nil)
	req.Header.Set(mw.InitDataHeader, signInitData(t, staffActor))
	w := do(r, req)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())

	var page queueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(100), page.Items[0].ID)
	assert.Equal(t, domain.MethodRub, page.Items[0].PaidMethod)
	assert.Equal(t, domain.StatusReceiptSent, page.Items[0].PaymentStatus)
}

func TestStaffQueueForbidsUsers(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/v1/staff/queue", nil)
	req.Header.Set(mw.InitDataHeader, signInitData(t, 100))
	w := do(r, req)
	assert.Equal(t, nethttp.StatusForbidden, w.Code)
}

func TestStaffDecisions(t *testing.T) {
	r, _, fs := newTestRouter(t)
	auth := signInitData(t, staffActor)

	post := func(path, body string) *httptest.ResponseRecorder {
		var req *nethttp.Request
		if body == "" {
			req = httptest.NewRequest(nethttp.MethodPost, path, nil)
		} else {
			req = httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set(mw.InitDataHeader, auth)
		return do(r, req)
	}

	w := post("/api/v1/staff/accounts/100/approve", `{"method":"rub"}`)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	var res decisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "won", res.Outcome)
	assert.Equal(t, domain.MethodRub, fs.method)

	w = post("/api/v1/staff/accounts/100/deny", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "already_handled", res.Outcome)

	assert.Equal(t, nethttp.StatusBadRequest, post("/api/v1/staff/accounts/abc/approve", "").Code)
	assert.Equal(t, nethttp.StatusBadRequest, post("/api/v1/staff/accounts/101/approve", `{"method":"ton"}`).Code)
	assert.Equal(t, nethttp.StatusNotFound, post("/api/v1/staff/accounts/404/deny", "").Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[apperrors.ErrorCode]int{
		apperrors.ErrCodeValidation:      nethttp.StatusBadRequest,
		apperrors.ErrCodeNotFound:        nethttp.StatusNotFound,
		apperrors.ErrCodeUserBanned:      nethttp.StatusForbidden,
		apperrors.ErrCodeConflict:        nethttp.StatusConflict,
		apperrors.ErrCodeProviderNetwork: nethttp.StatusBadGateway,
		apperrors.ErrCodeConfiguration:   nethttp.StatusServiceUnavailable,
		apperrors.ErrCodeDatabaseError:   nethttp.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, mw.HTTPStatus(code), string(code))
	}
}
