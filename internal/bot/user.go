package bot

import (
	"context"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/render"
	"access-bot-backend/internal/service/access"
	"access-bot-backend/internal/service/payment"
	"access-bot-backend/internal/texts"
)

func (h *Handler) start(ctx context.Context, s *session) render.Reply {
	acc, err := h.repo.CreateIfAbsent(ctx, s.update.Profile())
	if err != nil {
		logger.Error().Err(err).Int64("user_id", s.update.SenderID).Msg("Failed to register account")
		return h.reply(texts.PaymentError)
	}
	s.account = acc

	r := h.reply(texts.Welcome)
	if acc.PaymentStatus == domain.StatusPaid {
		r = h.reply(texts.Access)
	}
	r.Menu = h.mainMenu(s.role)
	r.Placeholder = h.texts.Text(texts.Placeholder)
	return r
}

func (h *Handler) help(_ context.Context, s *session) render.Reply {
	if s.role.IsStaff() {
		return h.format(texts.AdminWelcome, texts.Vars{"commands": staffCommands(s.role)})
	}
	r := h.reply(texts.Help)
	r.Menu = h.mainMenu(s.role)
	return r
}

func (h *Handler) support(context.Context, *session) render.Reply {
	return h.reply(texts.Support)
}

func (h *Handler) info(context.Context, *session) render.Reply {
	r := h.reply(texts.Info)
	r.Inline = [][]render.Button{render.Row(render.Callback(h.texts.Text(texts.ButtonPay), CallbackPay))}
	return r
}

func (h *Handler) choosePayment(_ context.Context, s *session) render.Reply {
	if s.account != nil && s.account.PaymentStatus == domain.StatusPaid {
		return h.reply(texts.Access)
	}
	r := h.reply(texts.ChooseMethod)
	r.Inline = [][]render.Button{
		render.Row(render.Callback(h.texts.Text(texts.ButtonPayRub), CallbackPayRub)),
		render.Row(render.Callback(h.texts.Text(texts.ButtonPayUSDT), CallbackPayUSDT)),
	}
	return r
}

func (h *Handler) payRub(ctx context.Context, s *session) render.Reply {
	acc, err := h.rail.Start(ctx, s.update.Profile())
	if err != nil {
		return h.paymentError(err, texts.RubDisabled)
	}
	if acc.PaymentStatus == domain.StatusPaid {
		return h.reply(texts.Access)
	}

	r := h.reply(texts.PayRub)
	r.Inline = [][]render.Button{
		render.Row(render.Link(h.texts.Text(texts.ButtonPayQR), h.rail.PayURL())),
		render.Row(render.Callback(h.texts.Text(texts.ButtonReceiptSent), CallbackReceiptSent)),
	}
	if h.qr != nil {
		png, err := h.qr(h.rail.PayURL())
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to render payment QR")
		} else {
			r.Photo = png
		}
	}
	return r
}

func (h *Handler) receiptSent(ctx context.Context, s *session) render.Reply {
	acc, _, err := h.rail.MarkReceiptSent(ctx, s.update.SenderID)
	if err != nil {
		if acc != nil && acc.PaymentStatus == domain.StatusPaid {
			return h.reply(texts.Access)
		}
		return h.receiptError(err)
	}
	return h.reply(texts.ReceiptSent)
}

func (h *Handler) receiptError(err error) render.Reply {
	if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
		return h.reply(texts.ReceiptIgnored)
	}
	return h.paymentError(err, texts.RubDisabled)
}

func (h *Handler) receiptFile(ctx context.Context, s *session) render.Reply {
	outcome, err := h.rail.SubmitReceipt(ctx, s.update.SenderID, s.update.MessageID)
	if err != nil {
		return h.receiptError(err)
	}
	if outcome == payment.ReceiptIgnored {
		if s.role.IsStaff() {
			return render.Reply{}
		}
		return h.reply(texts.ReceiptIgnored)
	}
	return h.reply(texts.ReceiptSent)
}

func (h *Handler) payUSDT(ctx context.Context, s *session) render.Reply {
	if s.account != nil && s.account.PaymentStatus == domain.StatusPaid {
		return h.reply(texts.Access)
	}
	res, err := h.payments.CreateOrResumeInvoice(ctx, s.update.SenderID, h.priceUSDT)
	if err != nil {
		return h.paymentError(err, texts.CryptoDisabled)
	}
	switch res.Outcome {
	case payment.OutcomePaid:
		return h.reply(texts.Access)
	case payment.OutcomeActive, payment.OutcomeCreated:
		if res.PayURL == "" {
			return h.reply(texts.PaymentPending)
		}
		r := h.reply(texts.PayUSDT)
		r.Inline = [][]render.Button{
			render.Row(render.Link(h.texts.Text(texts.ButtonPayCrypto), res.PayURL)),
			render.Row(render.Callback(h.texts.Text(texts.ButtonCheckPayment), callbackData(CallbackCheckInvoice, res.InvoiceID))),
		}
		return r
	case payment.OutcomeExpired:
		return h.reply(texts.PaymentExpired)
	}
	return h.reply(texts.PaymentFailed)
}

func (h *Handler) checkInvoice(ctx context.Context, s *session, invoiceID string) render.Reply {
	// a paid caller gets access without another provider round trip
	if s.account != nil && s.account.PaymentStatus == domain.StatusPaid {
		return h.reply(texts.Access)
	}
	res, err := h.payments.CheckInvoice(ctx, s.update.SenderID, invoiceID)
	if err != nil {
		return h.paymentError(err, texts.CryptoDisabled)
	}
	switch res.Outcome {
	case payment.OutcomePaid:
		return h.reply(texts.Access)
	case payment.OutcomeActive:
		return h.reply(texts.PaymentPending)
	case payment.OutcomeExpired:
		return h.reply(texts.PaymentExpired)
	}
	return h.reply(texts.PaymentFailed)
}

func (h *Handler) mainMenu(role access.Role) [][]string {
	menu := [][]string{
		{h.texts.Text(texts.ButtonPay)},
		{h.texts.Text(texts.ButtonSupport), h.texts.Text(texts.ButtonInfo)},
	}
	if role.IsStaff() {
		menu = append(menu, []string{h.texts.Text(texts.ButtonQueue)})
	}
	return menu
}
