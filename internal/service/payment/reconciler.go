package payment

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/metrics"
	"access-bot-backend/internal/platform/cryptopay"
)

const defaultPollBatch = 50

// InvoiceProvider is the slice of the Crypto Pay API the reconciler needs.
type InvoiceProvider interface {
	CreateInvoice(ctx context.Context, req cryptopay.CreateInvoiceRequest) (*cryptopay.Invoice, error)
	// GetInvoice returns nil when the provider does not know the invoice.
	GetInvoice(ctx context.Context, invoiceID string) (*cryptopay.Invoice, error)
}

// Outcome is what a crypto payment looks like after reconciliation.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeActive  Outcome = "active"
	OutcomeCreated Outcome = "created"
	OutcomeExpired Outcome = "expired"
	OutcomeFailed  Outcome = "failed"
)

// Source names what triggered a reconciliation.
const (
	SourceUser    = "user"
	SourceResume  = "resume"
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

// InvoiceResult describes the invoice the user should see.
type InvoiceResult struct {
	Outcome   Outcome
	InvoiceID string
	PayURL    string
	Account   *domain.Account
}

// SettlementListener hears about provider-driven settlements nobody is
// waiting on interactively (poller, webhook).
type SettlementListener interface {
	InvoiceSettled(ctx context.Context, acc *domain.Account, outcome Outcome)
}

// Reconciler bridges the payment state machine to the invoice provider.
// Provider calls never run inside a storage transaction.
type Reconciler struct {
	repo        domain.Repository
	provider    InvoiceProvider
	asset       string
	description string
	listener    SettlementListener
	metrics     *metrics.Metrics
	now         func() time.Time

	// last account id covered by ReconcileOpen; 0 restarts from the beginning
	pollCursor atomic.Int64
}

// NewReconciler builds a reconciler. A nil provider disables the crypto rail.
func NewReconciler(repo domain.Repository, provider InvoiceProvider, asset, description string, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		repo:        repo,
		provider:    provider,
		asset:       asset,
		description: description,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetListener registers who hears about background settlements.
func (r *Reconciler) SetListener(l SettlementListener) {
	r.listener = l
}

// Enabled reports whether the crypto rail is configured.
func (r *Reconciler) Enabled() bool {
	return r.provider != nil
}

// CreateOrResumeInvoice returns the open invoice of userID when it is still
// payable, settles it when the provider already resolved it, and otherwise
// opens a fresh attempt with a new invoice.
func (r *Reconciler) CreateOrResumeInvoice(ctx context.Context, userID int64, amount decimal.Decimal) (*InvoiceResult, error) {
	if r.provider == nil {
		return nil, apperrors.NewConfigurationError("CRYPTO_PAY_TOKEN")
	}
	acc, err := r.repo.CreateIfAbsent(ctx, domain.Profile{ID: userID})
	if err != nil {
		return nil, err
	}
	if acc.PaymentStatus == domain.StatusPaid {
		return &InvoiceResult{Outcome: OutcomePaid, Account: acc}, nil
	}

	if acc.HasOpenInvoice() {
		inv, err := r.provider.GetInvoice(ctx, acc.InvoiceID)
		if err != nil {
			// unknown remote state: never stack a second invoice on top
			return nil, err
		}
		res, err := r.apply(ctx, acc, acc.InvoiceID, inv, SourceResume)
		if err != nil {
			return nil, err
		}
		if res.Outcome == OutcomeActive || res.Outcome == OutcomePaid {
			return res, nil
		}
		acc = res.Account
	}

	return r.createInvoice(ctx, acc, amount)
}

func (r *Reconciler) createInvoice(ctx context.Context, acc *domain.Account, amount decimal.Decimal) (*InvoiceResult, error) {
	tr, err := domain.StartAttempt(acc, domain.MethodCrypto)
	if err != nil {
		return nil, err
	}
	started, err := r.repo.ConditionalUpdate(ctx, acc.ID, tr)
	if err != nil {
		return nil, err
	}
	if started == nil {
		return nil, apperrors.NewConflictError("account", "payment attempt changed concurrently").WithUserID(acc.ID)
	}

	inv, err := r.provider.CreateInvoice(ctx, cryptopay.CreateInvoiceRequest{
		Asset:       r.asset,
		Amount:      amount,
		Description: r.description,
		Payload:     strconv.FormatInt(acc.ID, 10),
	})
	if err != nil {
		r.abandon(ctx, started)
		return nil, err
	}

	tr, err = domain.AttachInvoice(started, inv.ID())
	if err != nil {
		return nil, err
	}
	attached, err := r.repo.ConditionalUpdate(ctx, acc.ID, tr)
	if err != nil {
		return nil, err
	}
	if attached == nil {
		logger.Warn().Int64("user_id", acc.ID).Str("invoice_id", inv.ID()).Msg("Attempt resolved while invoice was being created")
		return nil, apperrors.NewConflictError("account", "payment attempt resolved concurrently").WithUserID(acc.ID)
	}

	logger.Info().Int64("user_id", acc.ID).Str("invoice_id", inv.ID()).Msg("Crypto invoice created")
	return &InvoiceResult{Outcome: OutcomeCreated, InvoiceID: inv.ID(), PayURL: inv.URL(), Account: attached}, nil
}

func (r *Reconciler) abandon(ctx context.Context, acc *domain.Account) {
	tr, err := domain.AbandonAttempt(acc, r.now())
	if err != nil {
		return
	}
	if _, err := r.repo.ConditionalUpdate(ctx, acc.ID, tr); err != nil {
		logger.Error().Err(err).Int64("user_id", acc.ID).Msg("Failed to settle attempt after invoice creation error")
		return
	}
	r.metrics.Reconciliation(SourceUser, string(OutcomeFailed))
}

// CheckInvoice re-reads the provider status of invoiceID for userID. The id
// must be the account's current invoice; anything else is not found.
// Provider errors are returned without touching the account.
func (r *Reconciler) CheckInvoice(ctx context.Context, userID int64, invoiceID string) (*InvoiceResult, error) {
	if r.provider == nil {
		return nil, apperrors.NewConfigurationError("CRYPTO_PAY_TOKEN")
	}
	acc, err := r.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperrors.NewNotFoundError("account", userID)
	}
	if invoiceID == "" || acc.InvoiceID != invoiceID {
		return nil, apperrors.NewNotFoundError("invoice", invoiceID).WithUserID(userID)
	}

	inv, err := r.provider.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return r.apply(ctx, acc, invoiceID, inv, SourceUser)
}

// ApplyWebhook settles the account owning a pushed invoice update.
func (r *Reconciler) ApplyWebhook(ctx context.Context, u *cryptopay.Update) (*InvoiceResult, error) {
	if u.UpdateType != cryptopay.UpdateInvoicePaid {
		logger.Debug().Str("update_type", u.UpdateType).Msg("Ignoring provider update")
		return nil, nil
	}
	invoiceID := u.Payload.ID()
	acc, err := r.repo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		logger.Info().Str("invoice_id", invoiceID).Msg("Webhook for unknown or already settled invoice")
		return nil, nil
	}
	if u.Payload.Payload != "" && u.Payload.Payload != strconv.FormatInt(acc.ID, 10) {
		logger.Warn().Str("invoice_id", invoiceID).Int64("user_id", acc.ID).Msg("Webhook payload does not match invoice owner")
		return nil, apperrors.NewConflictError("invoice", "payload does not match owner")
	}
	inv := u.Payload
	return r.apply(ctx, acc, invoiceID, &inv, SourceWebhook)
}

// ReconcileOpen checks up to limit outstanding invoices and returns how many
// were settled. Successive calls walk all open invoices by id and wrap
// around, so a large backlog is covered over several calls. Per-invoice
// provider errors are logged and skipped.
func (r *Reconciler) ReconcileOpen(ctx context.Context, limit int) (int, error) {
	if r.provider == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = defaultPollBatch
	}
	after := r.pollCursor.Load()
	open, err := r.repo.ListOpenInvoices(ctx, after, limit)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 && after > 0 {
		open, err = r.repo.ListOpenInvoices(ctx, 0, limit)
		if err != nil {
			return 0, err
		}
	}
	if len(open) < limit {
		r.pollCursor.Store(0)
	} else {
		r.pollCursor.Store(open[len(open)-1].ID)
	}
	settled := 0
	for i := range open {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		acc := &open[i]
		inv, err := r.provider.GetInvoice(ctx, acc.InvoiceID)
		if err != nil {
			logger.Warn().Err(err).Int64("user_id", acc.ID).Str("invoice_id", acc.InvoiceID).Msg("Invoice poll failed")
			continue
		}
		res, err := r.apply(ctx, acc, acc.InvoiceID, inv, SourcePoll)
		if err != nil {
			logger.Error().Err(err).Int64("user_id", acc.ID).Msg("Failed to apply polled invoice status")
			continue
		}
		if res.Outcome != OutcomeActive {
			settled++
		}
	}
	return settled, nil
}

// apply maps the provider status onto the account through a guarded
// settlement. A lost race reports whatever state the winner left.
func (r *Reconciler) apply(ctx context.Context, acc *domain.Account, invoiceID string, inv *cryptopay.Invoice, source string) (*InvoiceResult, error) {
	var target domain.PaymentStatus
	switch {
	case inv == nil:
		target = domain.StatusFailed
	case inv.Status == cryptopay.InvoicePaid:
		target = domain.StatusPaid
	case inv.Status == cryptopay.InvoiceExpired:
		target = domain.StatusExpired
	case inv.Status == cryptopay.InvoiceFailed:
		target = domain.StatusFailed
	default:
		if inv.Status != cryptopay.InvoiceActive {
			logger.Warn().Str("status", string(inv.Status)).Str("invoice_id", invoiceID).Msg("Unknown invoice status treated as active")
		}
		return &InvoiceResult{Outcome: OutcomeActive, InvoiceID: invoiceID, PayURL: inv.URL(), Account: acc}, nil
	}

	tr, err := domain.Settle(acc, target, domain.Resolution{InvoiceID: invoiceID, At: r.now()})
	if err != nil {
		if apperrors.IsConflict(err) {
			return r.current(ctx, acc.ID)
		}
		return nil, err
	}
	got, err := r.repo.ConditionalUpdate(ctx, acc.ID, tr)
	if err != nil {
		return nil, err
	}
	if got == nil {
		logger.Info().Int64("user_id", acc.ID).Str("invoice_id", invoiceID).Str("source", source).Msg("Invoice already handled")
		return r.current(ctx, acc.ID)
	}

	outcome := outcomeOf(got)
	r.metrics.Reconciliation(source, string(outcome))
	logger.Info().Int64("user_id", got.ID).Str("invoice_id", invoiceID).Str("source", source).Str("outcome", string(outcome)).Msg("Invoice settled")

	if r.listener != nil && (source == SourcePoll || source == SourceWebhook) {
		r.listener.InvoiceSettled(ctx, got, outcome)
	}
	return &InvoiceResult{Outcome: outcome, InvoiceID: invoiceID, Account: got}, nil
}

func (r *Reconciler) current(ctx context.Context, userID int64) (*InvoiceResult, error) {
	acc, err := r.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperrors.NewNotFoundError("account", userID)
	}
	return &InvoiceResult{Outcome: outcomeOf(acc), InvoiceID: acc.InvoiceID, Account: acc}, nil
}

func outcomeOf(acc *domain.Account) Outcome {
	switch acc.PaymentStatus {
	case domain.StatusPaid:
		return OutcomePaid
	case domain.StatusExpired:
		return OutcomeExpired
	case domain.StatusPending, domain.StatusReceiptSent:
		return OutcomeActive
	}
	return OutcomeFailed
}
