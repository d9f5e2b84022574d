package staff

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/platform/cryptopay"
	"access-bot-backend/internal/service/payment"
)

// paidProvider issues invoices and reports every one of them as paid.
type paidProvider struct {
	mu     sync.Mutex
	nextID int64
}

func (p *paidProvider) CreateInvoice(_ context.Context, req cryptopay.CreateInvoiceRequest) (*cryptopay.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return &cryptopay.Invoice{
		InvoiceID: p.nextID,
		Status:    cryptopay.InvoiceActive,
		PayURL:    "https://pay.example/" + strconv.FormatInt(p.nextID, 10),
		Payload:   req.Payload,
	}, nil
}

func (p *paidProvider) GetInvoice(_ context.Context, id string) (*cryptopay.Invoice, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}
	return &cryptopay.Invoice{InvoiceID: n, Status: cryptopay.InvoicePaid}, nil
}

type settlementCounter struct {
	mu      sync.Mutex
	settled map[int64]int
}

func (c *settlementCounter) InvoiceSettled(_ context.Context, acc *domain.Account, _ payment.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled[acc.ID]++
}

func (c *settlementCounter) count(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled[id]
}

func TestStaffDecisionRacingProviderSettlement(t *testing.T) {
	for _, approve := range []bool{true, false} {
		name := "deny"
		if approve {
			name = "approve"
		}
		t.Run(name, func(t *testing.T) {
			svc, repo, listener := setup(t)
			rec := payment.NewReconciler(repo, &paidProvider{}, "USDT", "Access", nil)
			counter := &settlementCounter{settled: map[int64]int{}}
			rec.SetListener(counter)
			ctx := context.Background()

			for i := int64(0); i < 10; i++ {
				user := userID + i
				res, err := rec.CreateOrResumeInvoice(ctx, user, decimal.RequireFromString("3"))
				require.NoError(t, err)
				require.Equal(t, payment.OutcomeCreated, res.Outcome)

				listener.mu.Lock()
				before := len(listener.decisions)
				listener.mu.Unlock()

				var (
					wg       sync.WaitGroup
					staffRes *Result
				)
				wg.Add(3)
				go func() {
					defer wg.Done()
					var err error
					if approve {
						staffRes, err = svc.Approve(ctx, adminID, user, domain.MethodNone)
					} else {
						staffRes, err = svc.Deny(ctx, adminID, user)
					}
					assert.NoError(t, err)
				}()
				go func() {
					defer wg.Done()
					_, err := rec.ReconcileOpen(ctx, 10)
					assert.NoError(t, err)
				}()
				go func() {
					defer wg.Done()
					// losing the race surfaces as not found once the invoice is cleared
					_, _ = rec.CheckInvoice(ctx, user, res.InvoiceID)
				}()
				wg.Wait()

				require.NotNil(t, staffRes)
				acc, err := repo.GetByID(ctx, user)
				require.NoError(t, err)
				require.NoError(t, acc.CheckInvariants())
				require.NotNil(t, acc.DecisionAt)
				assert.Empty(t, acc.InvoiceID)

				listener.mu.Lock()
				staffNotified := len(listener.decisions) - before
				listener.mu.Unlock()

				if staffRes.Outcome == Won {
					require.NotNil(t, acc.DecisionBy)
					assert.Equal(t, adminID, *acc.DecisionBy)
					assert.Equal(t, 1, staffNotified)
					assert.Equal(t, 0, counter.count(user))
				} else {
					assert.Nil(t, acc.DecisionBy)
					assert.Equal(t, domain.StatusPaid, acc.PaymentStatus)
					assert.Equal(t, 0, staffNotified)
					assert.LessOrEqual(t, counter.count(user), 1)
				}
			}
		})
	}
}
