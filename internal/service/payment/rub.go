package payment

import (
	"context"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
)

// ReceiptListener hears about rub receipts that need a staff decision.
type ReceiptListener interface {
	ReceiptSent(ctx context.Context, acc *domain.Account)
}

// ReceiptForwarder copies a user's receipt message to the staff chats.
type ReceiptForwarder interface {
	ForwardReceipt(ctx context.Context, acc *domain.Account, messageID int)
}

// ReceiptOutcome tells the caller what happened to an uploaded receipt.
type ReceiptOutcome int

const (
	// ReceiptIgnored means there is no rub attempt waiting for a receipt.
	ReceiptIgnored ReceiptOutcome = iota
	// ReceiptForwarded means staff received a copy of the receipt.
	ReceiptForwarded
)

// ManualRail drives the rub transfer flow: link, receipt, staff decision.
type ManualRail struct {
	repo      domain.Repository
	payURL    string
	listener  ReceiptListener
	forwarder ReceiptForwarder
}

// NewManualRail builds the rub rail. An empty payURL disables it.
func NewManualRail(repo domain.Repository, payURL string) *ManualRail {
	return &ManualRail{repo: repo, payURL: payURL}
}

// SetListener registers who is told about receipts awaiting review.
func (m *ManualRail) SetListener(l ReceiptListener) {
	m.listener = l
}

// SetForwarder registers how receipt files reach the staff.
func (m *ManualRail) SetForwarder(f ReceiptForwarder) {
	m.forwarder = f
}

// Enabled reports whether the rail has a payment link.
func (m *ManualRail) Enabled() bool {
	return m.payURL != ""
}

// PayURL returns the configured transfer link.
func (m *ManualRail) PayURL() string {
	return m.payURL
}

// Start opens a rub attempt for the user, reusing one that is already open.
// The returned account is paid when access was bought before.
func (m *ManualRail) Start(ctx context.Context, p domain.Profile) (*domain.Account, error) {
	if !m.Enabled() {
		return nil, apperrors.NewConfigurationError("RUB_PAY_URL")
	}
	acc, err := m.repo.CreateIfAbsent(ctx, p)
	if err != nil {
		return nil, err
	}
	if acc.PaymentStatus == domain.StatusPaid {
		return acc, nil
	}
	if acc.PaidMethod == domain.MethodRub && acc.Unresolved() {
		return acc, nil
	}

	tr, err := domain.StartAttempt(acc, domain.MethodRub)
	if err != nil {
		return nil, err
	}
	started, err := m.repo.ConditionalUpdate(ctx, acc.ID, tr)
	if err != nil {
		return nil, err
	}
	if started == nil {
		// paid in between
		return m.repo.GetByID(ctx, acc.ID)
	}
	logger.Info().Int64("user_id", acc.ID).Msg("Rub payment attempt started")
	return started, nil
}

// MarkReceiptSent records that the user reports a completed transfer. Staff
// are notified only when the state actually changed, so repeated presses stay
// quiet. changed is false for the idempotent repeat.
func (m *ManualRail) MarkReceiptSent(ctx context.Context, userID int64) (acc *domain.Account, changed bool, err error) {
	acc, err = m.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if acc == nil {
		return nil, false, apperrors.NewNotFoundError("account", userID)
	}
	tr, noop, err := domain.MarkReceiptSent(acc)
	if err != nil {
		return acc, false, err
	}
	if noop {
		return acc, false, nil
	}
	updated, err := m.repo.ConditionalUpdate(ctx, userID, tr)
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		current, err := m.repo.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		if current != nil && current.PaymentStatus == domain.StatusReceiptSent {
			return current, false, nil
		}
		return current, false, apperrors.NewConflictError("account", "rub attempt changed concurrently").WithUserID(userID)
	}

	logger.Info().Int64("user_id", userID).Msg("Rub receipt reported")
	if m.listener != nil {
		m.listener.ReceiptSent(ctx, updated)
	}
	return updated, true, nil
}

// SubmitReceipt handles a photo or document sent by the user. It is copied
// to staff only while a rub attempt is open, and moves the attempt to
// receipt_sent when it was still pending.
func (m *ManualRail) SubmitReceipt(ctx context.Context, userID int64, messageID int) (ReceiptOutcome, error) {
	acc, err := m.repo.GetByID(ctx, userID)
	if err != nil {
		return ReceiptIgnored, err
	}
	if acc == nil || acc.PaidMethod != domain.MethodRub || !acc.Unresolved() {
		return ReceiptIgnored, nil
	}
	if m.forwarder != nil {
		m.forwarder.ForwardReceipt(ctx, acc, messageID)
	}
	if acc.PaymentStatus == domain.StatusPending {
		if _, _, err := m.MarkReceiptSent(ctx, userID); err != nil && !apperrors.IsConflict(err) {
			return ReceiptForwarded, err
		}
	}
	return ReceiptForwarded, nil
}
