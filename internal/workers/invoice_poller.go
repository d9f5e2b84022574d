package workers

import (
	"context"
	"sync"
	"time"

	"access-bot-backend/internal/common/logger"
)

// InvoiceReconciler checks outstanding invoices against the provider.
type InvoiceReconciler interface {
	ReconcileOpen(ctx context.Context, limit int) (int, error)
}

// InvoicePoller periodically reconciles outstanding crypto attempts.
type InvoicePoller struct {
	reconciler InvoiceReconciler
	interval   time.Duration
	batch      int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewInvoicePoller(reconciler InvoiceReconciler, interval time.Duration, batch int) *InvoicePoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &InvoicePoller{reconciler: reconciler, interval: interval, batch: batch}
}

// Start runs the poll loop until Stop or ctx cancellation.
func (p *InvoicePoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	logger.Info().Dur("interval", p.interval).Int("batch", p.batch).Msg("Starting invoice poller")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Tick runs one reconciliation pass.
func (p *InvoicePoller) Tick(ctx context.Context) {
	settled, err := p.reconciler.ReconcileOpen(ctx, p.batch)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error().Err(err).Msg("Invoice reconciliation failed")
		}
		return
	}
	if settled > 0 {
		logger.Info().Int("settled", settled).Msg("Invoices reconciled")
	}
}

// Stop cancels the loop and waits for the current pass to finish.
func (p *InvoicePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	logger.Info().Msg("Invoice poller stopped")
}
