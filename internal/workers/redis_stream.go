package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"access-bot-backend/internal/common/logger"
	"access-bot-backend/internal/platform/cryptopay"
	"access-bot-backend/internal/platform/redis"
	"access-bot-backend/internal/service/payment"
)

const (
	eventField     = "type"
	bodyField      = "body"
	eventInvoice   = "cryptopay_update"
	readBlock      = 5 * time.Second
	readBatch      = 10
	errorBackoff   = time.Second
	busyGroupError = "BUSYGROUP"
)

// WebhookApplier applies a verified provider update.
type WebhookApplier interface {
	ApplyWebhook(ctx context.Context, u *cryptopay.Update) (*payment.InvoiceResult, error)
}

// PaymentStream moves provider webhooks through a redis stream so the HTTP
// handler can acknowledge the provider before the update is applied.
type PaymentStream struct {
	rdb      *redis.Client
	applier  WebhookApplier
	stream   string
	group    string
	consumer string
}

func NewPaymentStream(rdb *redis.Client, applier WebhookApplier, stream, group, consumer string) *PaymentStream {
	return &PaymentStream{rdb: rdb, applier: applier, stream: stream, group: group, consumer: consumer}
}

// Publish appends a raw, already verified webhook body to the stream.
func (w *PaymentStream) Publish(ctx context.Context, body []byte) error {
	return w.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: w.stream,
		Values: map[string]interface{}{eventField: eventInvoice, bodyField: string(body)},
	}).Err()
}

// EnsureGroup creates the consumer group and the stream when missing.
func (w *PaymentStream) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), busyGroupError) {
		return err
	}
	return nil
}

// Start consumes the stream until ctx is cancelled.
func (w *PaymentStream) Start(ctx context.Context) {
	if err := w.EnsureGroup(ctx); err != nil {
		logger.Error().Err(err).Str("stream", w.stream).Msg("Failed to create consumer group")
	}
	logger.Info().Str("stream", w.stream).Str("group", w.group).Msg("Starting payment stream worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Payment stream worker stopped")
			return
		default:
		}
		if _, err := w.ReadOnce(ctx, readBlock); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading payment stream")
			time.Sleep(errorBackoff)
		}
	}
}

// ReadOnce reads and applies one batch. It returns the number of messages
// handled; an empty read is not an error.
func (w *PaymentStream) ReadOnce(ctx context.Context, block time.Duration) (int, error) {
	entries, err := w.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumer,
		Streams:  []string{w.stream, ">"},
		Count:    readBatch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	handled := 0
	for _, stream := range entries {
		for _, msg := range stream.Messages {
			w.process(ctx, msg)
			// failed updates are acked too; the poller picks the invoice up later
			if err := w.rdb.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
				logger.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack payment event")
			}
			handled++
		}
	}
	return handled, nil
}

func (w *PaymentStream) process(ctx context.Context, msg goredis.XMessage) {
	if t, _ := msg.Values[eventField].(string); t != eventInvoice {
		logger.Warn().Str("id", msg.ID).Interface("type", msg.Values[eventField]).Msg("Unknown payment event")
		return
	}
	body, _ := msg.Values[bodyField].(string)
	update, err := cryptopay.ParseUpdate([]byte(body))
	if err != nil {
		logger.Warn().Err(err).Str("id", msg.ID).Msg("Malformed payment event")
		return
	}
	if _, err := w.applier.ApplyWebhook(ctx, update); err != nil {
		logger.Error().Err(err).Str("id", msg.ID).Int64("invoice_id", update.Payload.InvoiceID).Msg("Failed to apply payment event")
	}
}
