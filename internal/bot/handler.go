package bot

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/render"
	"access-bot-backend/internal/service/access"
	"access-bot-backend/internal/service/payment"
	"access-bot-backend/internal/service/staff"
	"access-bot-backend/internal/texts"
)

// QREncoder renders a payment link as a PNG image.
type QREncoder func(content string) ([]byte, error)

// Deps are the collaborators of the handler.
type Deps struct {
	Texts     *texts.Catalog
	Repo      domain.Repository
	Resolver  *access.Resolver
	Payments  *payment.Reconciler
	Rail      *payment.ManualRail
	Staff     *staff.Service
	PriceUSDT decimal.Decimal
	QR        QREncoder
}

// Handler routes updates by command name, callback prefix or attachment.
type Handler struct {
	texts     *texts.Catalog
	repo      domain.Repository
	resolver  *access.Resolver
	payments  *payment.Reconciler
	rail      *payment.ManualRail
	staff     *staff.Service
	priceUSDT decimal.Decimal
	qr        QREncoder

	commands  map[string]func(context.Context, *session) render.Reply
	callbacks map[string]func(context.Context, *session, string) render.Reply
}

// session is the per-update view of the caller.
type session struct {
	update  Update
	role    access.Role
	account *domain.Account
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		texts:     d.Texts,
		repo:      d.Repo,
		resolver:  d.Resolver,
		payments:  d.Payments,
		rail:      d.Rail,
		staff:     d.Staff,
		priceUSDT: d.PriceUSDT,
		qr:        d.QR,
	}
	h.commands = map[string]func(context.Context, *session) render.Reply{
		"start":        h.start,
		"help":         h.help,
		"support":      h.support,
		"info":         h.info,
		"pay":          h.choosePayment,
		"approve":      h.approveCommand,
		"deny":         h.denyCommand,
		"ban":          h.banCommand,
		"unban":        h.unbanCommand,
		"revoke":       h.revokeCommand,
		"queue":        h.queueCommand,
		"admin_add":    h.roleCommand(domain.RoleAdmin, true),
		"admin_remove": h.roleCommand(domain.RoleAdmin, false),
		"mod_add":      h.roleCommand(domain.RoleModerator, true),
		"mod_remove":   h.roleCommand(domain.RoleModerator, false),
	}
	h.callbacks = map[string]func(context.Context, *session, string) render.Reply{
		CallbackPay:          func(ctx context.Context, s *session, _ string) render.Reply { return h.choosePayment(ctx, s) },
		CallbackPayRub:       func(ctx context.Context, s *session, _ string) render.Reply { return h.payRub(ctx, s) },
		CallbackPayUSDT:      func(ctx context.Context, s *session, _ string) render.Reply { return h.payUSDT(ctx, s) },
		CallbackReceiptSent:  func(ctx context.Context, s *session, _ string) render.Reply { return h.receiptSent(ctx, s) },
		CallbackCheckInvoice: h.checkInvoice,
		CallbackApprove:      h.approveCallback,
		CallbackDeny:         h.denyCallback,
		CallbackBan:          h.banCallback,
		CallbackQueue:        h.queueCallback,
	}
	return h
}

// Handle processes one update and returns what to send back. An empty reply
// means nothing should be sent.
func (h *Handler) Handle(ctx context.Context, u Update) render.Reply {
	role, acc, err := h.resolver.Resolve(ctx, u.SenderID)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", u.SenderID).Msg("Failed to resolve role")
		return h.reply(texts.PaymentError)
	}
	if role == access.Banned {
		logger.Debug().Int64("user_id", u.SenderID).Msg("Update from banned user")
		return h.reply(texts.Banned)
	}
	s := &session{update: u, role: role, account: acc}

	switch {
	case u.Callback != "":
		action, arg := splitCallback(u.Callback)
		if fn, ok := h.callbacks[action]; ok {
			return fn(ctx, s, arg)
		}
		logger.Debug().Str("callback", u.Callback).Msg("Unknown callback")
		return render.Reply{}
	case u.Command != "":
		if fn, ok := h.commands[u.Command]; ok {
			return fn(ctx, s)
		}
		return h.fallback(s)
	case u.HasAttachment:
		return h.receiptFile(ctx, s)
	default:
		return h.menuText(ctx, s)
	}
}

// menuText maps reply-keyboard button labels to their actions.
func (h *Handler) menuText(ctx context.Context, s *session) render.Reply {
	switch strings.TrimSpace(s.update.Text) {
	case h.texts.Text(texts.ButtonPay):
		return h.choosePayment(ctx, s)
	case h.texts.Text(texts.ButtonSupport):
		return h.support(ctx, s)
	case h.texts.Text(texts.ButtonInfo):
		return h.info(ctx, s)
	case h.texts.Text(texts.ButtonQueue):
		if s.role.IsStaff() {
			return h.queuePage(ctx, s, 0, false)
		}
	}
	return h.fallback(s)
}

func (h *Handler) fallback(s *session) render.Reply {
	r := h.reply(texts.Fallback)
	r.Menu = h.mainMenu(s.role)
	r.Placeholder = h.texts.Text(texts.Placeholder)
	return r
}

func (h *Handler) reply(id texts.MessageID) render.Reply {
	return render.Reply{Text: h.texts.Text(id)}
}

func (h *Handler) format(id texts.MessageID, vars texts.Vars) render.Reply {
	return render.Reply{Text: h.texts.Format(id, vars)}
}

// paymentError maps a payment failure to the message the user sees.
func (h *Handler) paymentError(err error, disabled texts.MessageID) render.Reply {
	switch {
	case apperrors.IsNotFound(err):
		return h.reply(texts.InvoiceNotFound)
	case apperrors.IsProviderNetwork(err):
		return h.reply(texts.PaymentCheckLater)
	case apperrors.IsConfiguration(err):
		return h.reply(disabled)
	case apperrors.IsConflict(err):
		return h.reply(texts.PaymentPending)
	case apperrors.IsProviderAPI(err):
		logger.Warn().Err(err).Msg("Payment provider rejected request")
		return h.reply(texts.PaymentError)
	}
	logger.Error().Err(err).Msg("Payment flow failed")
	return h.reply(texts.PaymentError)
}
