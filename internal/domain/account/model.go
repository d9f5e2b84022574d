package account

import "time"

// Role is the role persisted for an account. Owner is never stored; it comes from configuration.
type Role string

const (
	RoleNone      Role = ""
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r may be persisted.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// PaymentStatus is the state of the account's current payment attempt.
type PaymentStatus string

const (
	StatusNone        PaymentStatus = "none"
	StatusPending     PaymentStatus = "pending"
	StatusReceiptSent PaymentStatus = "receipt_sent"
	StatusPaid        PaymentStatus = "paid"
	StatusExpired     PaymentStatus = "expired"
	StatusFailed      PaymentStatus = "failed"
)

// Open reports whether the status still awaits a decision.
func (s PaymentStatus) Open() bool {
	return s == StatusPending || s == StatusReceiptSent
}

// PaymentMethod is the rail of the current attempt.
type PaymentMethod string

const (
	MethodNone   PaymentMethod = ""
	MethodRub    PaymentMethod = "rub"
	MethodCrypto PaymentMethod = "crypto"
)

// Valid reports whether m names a rail.
func (m PaymentMethod) Valid() bool {
	return m == MethodRub || m == MethodCrypto
}

// Account is the per-user record, keyed by the Telegram user id.
// Empty PaidMethod and InvoiceID mean "absent".
type Account struct {
	ID            int64         `json:"id"`
	Username      string        `json:"username,omitempty"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	Role          Role          `json:"role,omitempty"`
	Banned        bool          `json:"banned"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaidMethod    PaymentMethod `json:"paid_method,omitempty"`
	InvoiceID     string        `json:"invoice_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	DecisionBy    *int64        `json:"decision_by,omitempty"`
	DecisionAt    *time.Time    `json:"decision_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Profile carries the Telegram identity fields refreshed on contact.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Unresolved reports whether the attempt is open and undecided.
func (a *Account) Unresolved() bool {
	return a.PaymentStatus.Open() && a.DecisionAt == nil
}

// HasOpenInvoice reports whether a crypto attempt is waiting on the provider.
func (a *Account) HasOpenInvoice() bool {
	return a.InvoiceID != "" && a.PaidMethod == MethodCrypto && a.Unresolved()
}

// DisplayName returns @username when known, the first name otherwise.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	if a.FirstName != "" {
		return a.FirstName
	}
	return "-"
}

// CheckInvariants returns the first violated persisted-state invariant, or nil.
func (a *Account) CheckInvariants() error {
	if a.DecisionAt != nil && a.PaymentStatus.Open() {
		return errInvariant("decided attempt still open")
	}
	if a.PaymentStatus == StatusPaid && (a.PaidAt == nil || a.PaidMethod == MethodNone) {
		return errInvariant("paid without paid_at or paid_method")
	}
	if a.PaymentStatus != StatusPaid && a.PaidAt != nil {
		return errInvariant("paid_at set on unpaid attempt")
	}
	if a.InvoiceID != "" && (a.PaidMethod != MethodCrypto || !a.Unresolved()) {
		return errInvariant("invoice_id outside an outstanding crypto attempt")
	}
	if (a.DecisionBy != nil) && a.DecisionAt == nil {
		return errInvariant("decision_by without decision_at")
	}
	return nil
}

type errInvariant string

func (e errInvariant) Error() string { return "account invariant: " + string(e) }
