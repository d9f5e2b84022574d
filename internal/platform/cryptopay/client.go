package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// InvoiceStatus is the provider-side invoice state.
type InvoiceStatus string

const (
	InvoiceActive  InvoiceStatus = "active"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceExpired InvoiceStatus = "expired"
	InvoiceFailed  InvoiceStatus = "failed"
)

// Invoice is the subset of the Crypto Pay invoice object the bot uses.
type Invoice struct {
	InvoiceID     int64         `json:"invoice_id"`
	Status        InvoiceStatus `json:"status"`
	Asset         string        `json:"asset,omitempty"`
	Amount        string        `json:"amount,omitempty"`
	PayURL        string        `json:"pay_url,omitempty"`
	BotInvoiceURL string        `json:"bot_invoice_url,omitempty"`
	Payload       string        `json:"payload,omitempty"`
}

// ID returns the invoice id in the string form stored on accounts.
func (i *Invoice) ID() string {
	return strconv.FormatInt(i.InvoiceID, 10)
}

// URL returns the link the user opens to pay.
func (i *Invoice) URL() string {
	if i.BotInvoiceURL != "" {
		return i.BotInvoiceURL
	}
	return i.PayURL
}

// CreateInvoiceRequest describes a new invoice.
type CreateInvoiceRequest struct {
	Asset       string
	Amount      decimal.Decimal
	Description string
	Payload     string
}

type createInvoiceBody struct {
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

type getInvoicesBody struct {
	InvoiceIDs string `json:"invoice_ids"`
}

type invoiceList struct {
	Items []Invoice `json:"items"`
}

type apiError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type apiResponse[T any] struct {
	Ok     bool      `json:"ok"`
	Error  *apiError `json:"error,omitempty"`
	Result T         `json:"result"`
}

// Client talks to the Crypto Pay API. Network failures are retried with
// linear backoff; HTTP and envelope errors are returned at once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	attempts   int
	backoff    time.Duration
	observe    func(method, outcome string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with a per-call timeout of 10s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the total timeout of one HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit paces outgoing requests; rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n*base before retrying.
func WithBackoff(base time.Duration) Option {
	return func(c *Client) { c.backoff = base }
}

// WithObserver receives one (method, outcome) pair per finished call.
func WithObserver(fn func(method, outcome string)) Option {
	return func(c *Client) { c.observe = fn }
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		attempts:   defaultAttempts,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateInvoice issues a new invoice.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	body := createInvoiceBody{
		Asset:       req.Asset,
		Amount:      req.Amount.String(),
		Description: req.Description,
		Payload:     req.Payload,
	}
	var inv Invoice
	if err := c.call(ctx, "createInvoice", body, &inv); err != nil {
		return nil, err
	}
	if inv.InvoiceID == 0 {
		return nil, apperrors.NewProviderAPIError("createInvoice", http.StatusOK, "response without invoice_id")
	}
	return &inv, nil
}

// GetInvoice fetches one invoice. Returns nil if the provider does not know it.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	var list invoiceList
	if err := c.call(ctx, "getInvoices", getInvoicesBody{InvoiceIDs: invoiceID}, &list); err != nil {
		return nil, err
	}
	for i := range list.Items {
		if list.Items[i].ID() == invoiceID {
			return &list.Items[i], nil
		}
	}
	return nil, nil
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		status, raw, err := c.do(ctx, method, payload)
		if err == nil {
			err = decode(method, status, raw, out)
			c.finish(method, outcomeOf(err))
			return err
		}

		lastErr = err
		logger.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("Crypto Pay request failed")
		if ctx.Err() != nil || attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}

	c.finish(method, "network_error")
	return apperrors.NewProviderNetworkError(method, c.attempts, lastErr)
}

func (c *Client) do(ctx context.Context, method string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func decode(method string, status int, raw []byte, out any) error {
	var env apiResponse[json.RawMessage]
	jsonErr := json.Unmarshal(raw, &env)

	if status >= http.StatusBadRequest {
		reason := fmt.Sprintf("http status %d", status)
		if jsonErr == nil && env.Error != nil && env.Error.Name != "" {
			reason = env.Error.Name
		}
		return apperrors.NewProviderAPIError(method, status, reason)
	}
	if jsonErr != nil {
		return apperrors.NewProviderAPIError(method, status, "non-JSON response")
	}
	if !env.Ok {
		reason := "ok=false"
		if env.Error != nil && env.Error.Name != "" {
			reason = env.Error.Name
		}
		return apperrors.NewProviderAPIError(method, status, reason)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return apperrors.NewProviderAPIError(method, status, "malformed result")
		}
	}
	return nil
}

func outcomeOf(err error) string {
	if err != nil {
		return "api_error"
	}
	return "ok"
}

func (c *Client) finish(method, outcome string) {
	if c.observe != nil {
		c.observe(method, outcome)
	}
}
