package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access-bot-backend/internal/platform/cryptopay"
	"access-bot-backend/internal/platform/redis"
	"access-bot-backend/internal/service/payment"
)

type countingReconciler struct {
	calls int32
	limit int
	err   error
}

func (c *countingReconciler) ReconcileOpen(_ context.Context, limit int) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	c.limit = limit
	return 1, c.err
}

func TestInvoicePollerTicks(t *testing.T) {
	rec := &countingReconciler{}
	p := NewInvoicePoller(rec, 10*time.Millisecond, 7)
	p.Start(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&rec.calls) >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()

	calls := atomic.LoadInt32(&rec.calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&rec.calls), "no ticks after Stop")
	assert.Equal(t, 7, rec.limit)
}

func TestInvoicePollerSurvivesErrors(t *testing.T) {
	rec := &countingReconciler{err: errors.New("db down")}
	p := NewInvoicePoller(rec, time.Hour, 0)
	p.Tick(context.Background())
	p.Tick(context.Background())
	assert.EqualValues(t, 2, rec.calls)
	assert.Equal(t, 50, rec.limit)
}

type recordingApplier struct {
	mu      sync.Mutex
	applied []int64
	err     error
}

func (a *recordingApplier) ApplyWebhook(_ context.Context, u *cryptopay.Update) (*payment.InvoiceResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, u.Payload.InvoiceID)
	return nil, a.err
}

func newStream(t *testing.T, applier WebhookApplier) (*PaymentStream, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	w := NewPaymentStream(&redis.Client{Client: c}, applier, "payments:events", "access-bot", "test")
	require.NoError(t, w.EnsureGroup(context.Background()))
	return w, c
}

func TestPaymentStreamAppliesPublishedUpdates(t *testing.T) {
	applier := &recordingApplier{}
	w, c := newStream(t, applier)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, []byte(`{"update_id":1,"update_type":"invoice_paid","payload":{"invoice_id":11,"status":"paid"}}`)))
	require.NoError(t, w.Publish(ctx, []byte(`not json`)))
	require.NoError(t, w.Publish(ctx, []byte(`{"update_id":2,"update_type":"invoice_paid","payload":{"invoice_id":12,"status":"paid"}}`)))

	n, err := w.ReadOnce(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{11, 12}, applier.applied)

	pending, err := c.XPending(ctx, "payments:events", "access-bot").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Count)

	n, err = w.ReadOnce(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPaymentStreamAcksFailedUpdates(t *testing.T) {
	applier := &recordingApplier{err: errors.New("conflict")}
	w, c := newStream(t, applier)
	ctx := context.Background()

	require.NoError(t, w.Publish(ctx, []byte(`{"update_id":1,"update_type":"invoice_paid","payload":{"invoice_id":11}}`)))
	_, err := w.ReadOnce(ctx, -1)
	require.NoError(t, err)

	pending, err := c.XPending(ctx, "payments:events", "access-bot").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Count)
}

func TestEnsureGroupIsIdempotent(t *testing.T) {
	w, _ := newStream(t, &recordingApplier{})
	assert.NoError(t, w.EnsureGroup(context.Background()))
}
