package account

import (
	"fmt"
	"time"

	apperrors "access-bot-backend/internal/common/errors"
)

// Guard is the predicate a transition requires of the stored row. The
// repository evaluates it inside the UPDATE, never from a previous read.
type Guard struct {
	Statuses  []PaymentStatus // payment_status IN (...)
	Method    PaymentMethod   // paid_method = Method, any when empty
	InvoiceID string          // invoice_id = InvoiceID, any when empty
	NoInvoice bool            // invoice_id IS NULL
	Undecided bool            // decision_at IS NULL
}

// Matches evaluates the guard against an in-memory snapshot.
func (g Guard) Matches(a *Account) bool {
	if len(g.Statuses) > 0 && !statusIn(a.PaymentStatus, g.Statuses) {
		return false
	}
	if g.Method != MethodNone && a.PaidMethod != g.Method {
		return false
	}
	if g.InvoiceID != "" && a.InvoiceID != g.InvoiceID {
		return false
	}
	if g.NoInvoice && a.InvoiceID != "" {
		return false
	}
	if g.Undecided && a.DecisionAt != nil {
		return false
	}
	return true
}

// Patch lists the columns a transition writes. Groups whose Set flag is
// false are left untouched.
type Patch struct {
	Status PaymentStatus

	SetMethod bool
	Method    PaymentMethod

	SetInvoice bool
	InvoiceID  string

	SetOutcome bool
	PaidAt     *time.Time
	DecisionBy *int64
	DecisionAt *time.Time
}

// Apply writes the patch onto a.
func (p Patch) Apply(a *Account) {
	a.PaymentStatus = p.Status
	if p.SetMethod {
		a.PaidMethod = p.Method
	}
	if p.SetInvoice {
		a.InvoiceID = p.InvoiceID
	}
	if p.SetOutcome {
		a.PaidAt = p.PaidAt
		a.DecisionBy = p.DecisionBy
		a.DecisionAt = p.DecisionAt
	}
}

// Transition is a named, guarded change of payment state.
type Transition struct {
	Name  string
	Guard Guard
	Patch Patch
}

// Resolution describes who settles an attempt and on what grounds.
type Resolution struct {
	// StaffID is zero for provider-driven settlement.
	StaffID int64
	// InvoiceID pins a provider settlement to the invoice it was observed on.
	InvoiceID string
	// Method overrides paid_method, staff decisions only.
	Method PaymentMethod
	At     time.Time
}

// ByStaff reports whether a human made the decision.
func (r Resolution) ByStaff() bool { return r.StaffID != 0 }

var (
	notPaid = []PaymentStatus{StatusNone, StatusPending, StatusReceiptSent, StatusExpired, StatusFailed}
	open    = []PaymentStatus{StatusPending, StatusReceiptSent}
)

// StartAttempt opens a new attempt on method m. Allowed from every state but paid.
func StartAttempt(a *Account, m PaymentMethod) (Transition, error) {
	if !m.Valid() {
		return Transition{}, apperrors.NewValidationError("method", fmt.Sprintf("unknown payment method %q", m))
	}
	if a.PaymentStatus == StatusPaid {
		return Transition{}, conflict(a, "start_attempt", "already paid")
	}
	return Transition{
		Name:  "start_attempt",
		Guard: Guard{Statuses: notPaid},
		Patch: Patch{
			Status:     StatusPending,
			SetMethod:  true,
			Method:     m,
			SetInvoice: true,
			SetOutcome: true,
		},
	}, nil
}

// AttachInvoice records the provider invoice of a pending crypto attempt.
func AttachInvoice(a *Account, invoiceID string) (Transition, error) {
	if invoiceID == "" {
		return Transition{}, apperrors.NewValidationError("invoice_id", "must not be empty")
	}
	g := Guard{Statuses: []PaymentStatus{StatusPending}, Method: MethodCrypto, NoInvoice: true, Undecided: true}
	if !g.Matches(a) {
		return Transition{}, conflict(a, "attach_invoice", "no pending crypto attempt without invoice")
	}
	return Transition{
		Name:  "attach_invoice",
		Guard: g,
		Patch: Patch{Status: StatusPending, SetInvoice: true, InvoiceID: invoiceID},
	}, nil
}

// MarkReceiptSent moves a pending rub attempt to receipt_sent. The second
// return value is true when the account already is in receipt_sent, in which
// case there is nothing to apply.
func MarkReceiptSent(a *Account) (Transition, bool, error) {
	if a.PaymentStatus == StatusReceiptSent && a.PaidMethod == MethodRub && a.DecisionAt == nil {
		return Transition{}, true, nil
	}
	g := Guard{Statuses: []PaymentStatus{StatusPending}, Method: MethodRub, Undecided: true}
	if !g.Matches(a) {
		return Transition{}, false, conflict(a, "mark_receipt_sent", "no pending rub attempt")
	}
	return Transition{
		Name:  "mark_receipt_sent",
		Guard: g,
		Patch: Patch{Status: StatusReceiptSent},
	}, false, nil
}

// Settle resolves an open, undecided attempt into paid, expired or failed.
// Every settlement clears invoice_id and stamps decision_at; decision_by is
// set only for staff decisions.
func Settle(a *Account, outcome PaymentStatus, r Resolution) (Transition, error) {
	statuses := open
	switch outcome {
	case StatusPaid, StatusFailed:
	case StatusExpired:
		// only an invoice can expire; a sent receipt waits for staff
		statuses = []PaymentStatus{StatusPending}
	default:
		return Transition{}, apperrors.NewValidationError("outcome", fmt.Sprintf("cannot settle into %q", outcome))
	}
	if r.Method != MethodNone && !r.Method.Valid() {
		return Transition{}, apperrors.NewValidationError("method", fmt.Sprintf("unknown payment method %q", r.Method))
	}
	if !r.ByStaff() && r.InvoiceID == "" {
		return Transition{}, apperrors.NewValidationError("invoice_id", "provider settlement needs an invoice")
	}
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}

	g := Guard{Statuses: statuses, InvoiceID: r.InvoiceID, Undecided: true}
	if !g.Matches(a) {
		return Transition{}, conflict(a, "settle", fmt.Sprintf("cannot settle %s attempt into %s", a.PaymentStatus, outcome))
	}

	at := r.At
	p := Patch{
		Status:     outcome,
		SetInvoice: true,
		SetOutcome: true,
		DecisionAt: &at,
	}
	if r.ByStaff() {
		staff := r.StaffID
		p.DecisionBy = &staff
	}
	if r.Method != MethodNone && r.ByStaff() {
		p.SetMethod = true
		p.Method = r.Method
	}
	if outcome == StatusPaid {
		if !p.SetMethod {
			if a.PaidMethod == MethodNone {
				return Transition{}, conflict(a, "settle", "paid without a payment method")
			}
			g.Method = a.PaidMethod
		}
		p.PaidAt = &at
	}
	return Transition{Name: "settle_" + string(outcome), Guard: g, Patch: p}, nil
}

// AbandonAttempt fails a pending crypto attempt that never got an invoice,
// used when the provider refuses to create one.
func AbandonAttempt(a *Account, at time.Time) (Transition, error) {
	g := Guard{Statuses: []PaymentStatus{StatusPending}, Method: MethodCrypto, NoInvoice: true, Undecided: true}
	if !g.Matches(a) {
		return Transition{}, conflict(a, "abandon_attempt", "no invoiceless crypto attempt")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Transition{
		Name:  "abandon_attempt",
		Guard: g,
		Patch: Patch{Status: StatusFailed, SetOutcome: true, DecisionAt: &at},
	}, nil
}

// Revoke returns a paid account to none so a new purchase cycle can start.
func Revoke(a *Account) (Transition, error) {
	if a.PaymentStatus != StatusPaid {
		return Transition{}, conflict(a, "revoke", "account is not paid")
	}
	return Transition{
		Name:  "revoke",
		Guard: Guard{Statuses: []PaymentStatus{StatusPaid}},
		Patch: Patch{
			Status:     StatusNone,
			SetMethod:  true,
			SetInvoice: true,
			SetOutcome: true,
		},
	}, nil
}

func conflict(a *Account, op, reason string) *apperrors.AppError {
	return apperrors.NewConflictError("account", reason).
		WithUserID(a.ID).
		WithDetail("operation", op).
		WithDetail("payment_status", string(a.PaymentStatus))
}

func statusIn(s PaymentStatus, set []PaymentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
