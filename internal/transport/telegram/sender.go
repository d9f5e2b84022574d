package telegram

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"access-bot-backend/internal/render"
)

// Send delivers a reply to chatID outside of an update.
func (b *Bot) Send(ctx context.Context, chatID int64, r render.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	what, opts := content(r)
	_, err := b.bot.Send(tele.ChatID(chatID), what, opts...)
	return err
}

// Copy copies message messageID of chat fromChatID to toChatID.
func (b *Bot) Copy(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.bot.Copy(tele.ChatID(toChatID), &tele.Message{ID: messageID, Chat: &tele.Chat{ID: fromChatID}})
	return err
}
