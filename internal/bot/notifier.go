package bot

import (
	"context"
	"strconv"

	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/render"
	"access-bot-backend/internal/service/notifications"
	"access-bot-backend/internal/service/payment"
	"access-bot-backend/internal/texts"
)

// Notifier renders service events into chat messages. It implements the
// listener interfaces of the payment and staff services.
type Notifier struct {
	notify *notifications.Service
	texts  *texts.Catalog
	h      *Handler
}

func NewNotifier(notify *notifications.Service, h *Handler) *Notifier {
	return &Notifier{notify: notify, texts: h.texts, h: h}
}

// InvoiceSettled tells the user about a settlement found by the poller or webhook.
func (n *Notifier) InvoiceSettled(ctx context.Context, acc *domain.Account, outcome payment.Outcome) {
	id := texts.PaymentFailed
	switch outcome {
	case payment.OutcomePaid:
		id = texts.Access
	case payment.OutcomeExpired:
		id = texts.PaymentExpired
	case payment.OutcomeActive:
		return
	}
	n.notify.ToUser(ctx, acc.ID, render.Reply{Text: n.texts.Text(id)})
}

// ReceiptSent asks staff to review a reported rub transfer.
func (n *Notifier) ReceiptSent(ctx context.Context, acc *domain.Account) {
	n.notify.ToStaff(ctx, render.Reply{
		Text:   n.texts.Format(texts.StaffNewReceipt, n.userVars(acc)),
		Inline: [][]render.Button{n.h.decisionRow(acc.ID)},
	})
}

// ForwardReceipt copies a receipt file to staff after a short header.
func (n *Notifier) ForwardReceipt(ctx context.Context, acc *domain.Account, messageID int) {
	n.notify.ToStaff(ctx, render.Reply{Text: n.texts.Format(texts.StaffReceiptFile, n.userVars(acc))})
	n.notify.CopyToStaff(ctx, acc.ID, messageID)
}

// Decided tells the user the outcome of a staff decision.
func (n *Notifier) Decided(ctx context.Context, acc *domain.Account, approved bool) {
	id := texts.UserDenied
	if approved {
		id = texts.UserApproved
	}
	n.notify.ToUser(ctx, acc.ID, render.Reply{Text: n.texts.Text(id)})
}

// BanChanged tells the user about a ban or unban.
func (n *Notifier) BanChanged(ctx context.Context, acc *domain.Account, banned bool) {
	id := texts.UserUnbannedNotice
	if banned {
		id = texts.UserBannedNotice
	}
	n.notify.ToUser(ctx, acc.ID, render.Reply{Text: n.texts.Text(id)})
}

// AccessRevoked tells the user their access was withdrawn.
func (n *Notifier) AccessRevoked(ctx context.Context, acc *domain.Account) {
	n.notify.ToUser(ctx, acc.ID, render.Reply{Text: n.texts.Text(texts.UserAccessRevoked)})
}

func (n *Notifier) userVars(acc *domain.Account) texts.Vars {
	return texts.Vars{"name": acc.DisplayName(), "id": strconv.FormatInt(acc.ID, 10)}
}
