package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"access-bot-backend/internal/bot"
	"access-bot-backend/internal/common/logger"
	"access-bot-backend/internal/metrics"
	"access-bot-backend/internal/render"
)

// Limiter decides whether an update from userID may be processed.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// UpdateHandler turns a parsed update into a reply.
type UpdateHandler interface {
	Handle(ctx context.Context, u bot.Update) render.Reply
}

const defaultUpdateTimeout = 30 * time.Second

// Bot connects telebot to the transport-neutral handler.
type Bot struct {
	bot           *tele.Bot
	handler       UpdateHandler
	limiter       Limiter
	metrics       *metrics.Metrics
	updateTimeout time.Duration
}

// Options tune the telebot instance.
type Options struct {
	Token       string
	PollTimeout time.Duration
	// UpdateTimeout bounds the handling of a single update.
	UpdateTimeout time.Duration
	// URL overrides the Bot API endpoint.
	URL string
	// Offline skips the getMe call, used in tests.
	Offline bool
}

func NewBot(opts Options, handler UpdateHandler, limiter Limiter, m *metrics.Metrics) (*Bot, error) {
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = defaultUpdateTimeout
	}
	pref := tele.Settings{
		URL:     opts.URL,
		Token:   opts.Token,
		Poller:  &tele.LongPoller{Timeout: opts.PollTimeout},
		Offline: opts.Offline,
		OnError: func(err error, c tele.Context) {
			ev := logger.Error().Err(err)
			if c != nil && c.Sender() != nil {
				ev = ev.Int64("user_id", c.Sender().ID)
			}
			ev.Msg("Telegram handler error")
		},
	}
	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{bot: tb, handler: handler, limiter: limiter, metrics: m, updateTimeout: opts.UpdateTimeout}
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Use(b.throttle)
	b.bot.Handle(tele.OnText, b.handleMessage)
	b.bot.Handle(tele.OnPhoto, b.handleMessage)
	b.bot.Handle(tele.OnDocument, b.handleMessage)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// Start long-polls until ctx is cancelled. It must be called once.
func (b *Bot) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	logger.Info().Str("username", b.bot.Me.Username).Msg("Starting Telegram long polling")
	b.bot.Start()
}

func (b *Bot) throttle(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || sender.IsBot {
			return nil
		}
		if b.limiter == nil {
			return next(c)
		}
		ok, err := b.limiter.Allow(context.Background(), sender.ID)
		if err != nil {
			// fail open when redis is unavailable
			logger.Warn().Err(err).Msg("Throttle check failed")
			return next(c)
		}
		if !ok {
			b.metrics.Throttled()
			logger.Debug().Int64("user_id", sender.ID).Msg("Update dropped by throttle")
			if c.Callback() != nil {
				return c.Respond()
			}
			return nil
		}
		return next(c)
	}
}

func (b *Bot) handleMessage(c tele.Context) error {
	msg := c.Message()
	if msg == nil || !msg.Private() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.updateTimeout)
	defer cancel()
	reply := b.handler.Handle(ctx, toUpdate(c))
	return b.deliver(c, reply)
}

// handleCallback answers the query before handling so the client spinner
// stops even when the handler is slow.
func (b *Bot) handleCallback(c tele.Context) error {
	if err := c.Respond(); err != nil {
		logger.Debug().Err(err).Msg("Failed to answer callback")
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.updateTimeout)
	defer cancel()
	reply := b.handler.Handle(ctx, toUpdate(c))
	return b.deliver(c, reply)
}

func (b *Bot) deliver(c tele.Context, reply render.Reply) error {
	if reply.Empty() {
		return nil
	}
	what, opts := content(reply)
	if reply.Edit && c.Callback() != nil && len(reply.Photo) == 0 {
		if err := c.Edit(reply.Text, opts...); err != nil && !errors.Is(err, tele.ErrSameMessageContent) {
			logger.Debug().Err(err).Msg("Edit failed, sending a new message")
			return c.Send(what, opts...)
		}
		return nil
	}
	return c.Send(what, opts...)
}

// toUpdate extracts the handler's view of a telebot update.
func toUpdate(c tele.Context) bot.Update {
	u := bot.Update{}
	if s := c.Sender(); s != nil {
		u.SenderID = s.ID
		u.Username = s.Username
		u.FirstName = s.FirstName
		u.LastName = s.LastName
	}
	if cb := c.Callback(); cb != nil {
		u.Callback = strings.TrimPrefix(cb.Data, "\f")
		if cb.Message != nil {
			u.MessageID = cb.Message.ID
		}
		return u
	}
	msg := c.Message()
	if msg == nil {
		return u
	}
	u.MessageID = msg.ID
	u.Text = msg.Text
	u.HasAttachment = msg.Photo != nil || msg.Document != nil
	if name, args, ok := bot.ParseCommand(msg.Text); ok {
		u.Command = name
		u.Args = args
	}
	return u
}

// content converts a reply into a telebot sendable and its options.
func content(r render.Reply) (interface{}, []interface{}) {
	var opts []interface{}
	if m := markup(r); m != nil {
		opts = append(opts, m)
	}
	if len(r.Photo) > 0 {
		return &tele.Photo{File: tele.FromReader(bytes.NewReader(r.Photo)), Caption: r.Text}, opts
	}
	return r.Text, opts
}

func markup(r render.Reply) *tele.ReplyMarkup {
	switch {
	case len(r.Inline) > 0:
		rows := make([][]tele.InlineButton, 0, len(r.Inline))
		for _, row := range r.Inline {
			buttons := make([]tele.InlineButton, 0, len(row))
			for _, btn := range row {
				buttons = append(buttons, tele.InlineButton{Text: btn.Text, Data: btn.Data, URL: btn.URL})
			}
			rows = append(rows, buttons)
		}
		return &tele.ReplyMarkup{InlineKeyboard: rows}
	case r.Menu != nil:
		rows := make([][]tele.ReplyButton, 0, len(r.Menu))
		for _, row := range r.Menu {
			buttons := make([]tele.ReplyButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tele.ReplyButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &tele.ReplyMarkup{ReplyKeyboard: rows, ResizeKeyboard: true, Placeholder: r.Placeholder}
	}
	return nil
}
