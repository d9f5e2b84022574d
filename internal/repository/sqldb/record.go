package sqldb

import (
	"context"
	"time"

	"gorm.io/gorm"

	domain "access-bot-backend/internal/domain/account"
)

// accountRecord is the persisted row. Absent values are NULL so the unique
// index on invoice_id only covers outstanding invoices.
type accountRecord struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	Username      string     `gorm:"column:username;size:64;not null"`
	FirstName     string     `gorm:"column:first_name;size:128;not null"`
	LastName      string     `gorm:"column:last_name;size:128;not null"`
	Role          string     `gorm:"column:role;size:16;not null"`
	Banned        bool       `gorm:"column:banned;not null"`
	PaymentStatus string     `gorm:"column:payment_status;size:16;not null;index:idx_accounts_status_created,priority:1"`
	PaidMethod    *string    `gorm:"column:paid_method;size:16"`
	InvoiceID     *string    `gorm:"column:invoice_id;size:64;uniqueIndex:idx_accounts_invoice_id"`
	PaidAt        *time.Time `gorm:"column:paid_at"`
	DecisionBy    *int64     `gorm:"column:decision_by"`
	DecisionAt    *time.Time `gorm:"column:decision_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;index:idx_accounts_status_created,priority:2"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null"`
}

func (accountRecord) TableName() string { return "accounts" }

// AutoMigrate creates or updates the accounts table and its indexes.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&accountRecord{})
}

func (r *accountRecord) toDomain() *domain.Account {
	a := &domain.Account{
		ID:            r.ID,
		Username:      r.Username,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Role:          domain.Role(r.Role),
		Banned:        r.Banned,
		PaymentStatus: domain.PaymentStatus(r.PaymentStatus),
		PaidAt:        utcPtr(r.PaidAt),
		DecisionBy:    r.DecisionBy,
		DecisionAt:    utcPtr(r.DecisionAt),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.PaidMethod != nil {
		a.PaidMethod = domain.PaymentMethod(*r.PaidMethod)
	}
	if r.InvoiceID != nil {
		a.InvoiceID = *r.InvoiceID
	}
	return a
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// nullable maps "absent" to NULL for map-based updates.
func nullable[T comparable](v T) interface{} {
	var zero T
	if v == zero {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
