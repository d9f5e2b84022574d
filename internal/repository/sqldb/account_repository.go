package sqldb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "access-bot-backend/internal/common/errors"
	domain "access-bot-backend/internal/domain/account"
)

var openStatuses = []string{string(domain.StatusPending), string(domain.StatusReceiptSent)}

// AccountRepository stores accounts through GORM.
type AccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ domain.Repository = (*AccountRepository)(nil)

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetByID returns an account by Telegram ID. Returns nil if not found.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.first(ctx, "get_by_id", "id = ?", id)
}

// GetByInvoiceID returns the account holding invoiceID. Returns nil if not found.
func (r *AccountRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*domain.Account, error) {
	if invoiceID == "" {
		return nil, nil
	}
	return r.first(ctx, "get_by_invoice_id", "invoice_id = ?", invoiceID)
}

func (r *AccountRepository) first(ctx context.Context, op string, query string, args ...interface{}) (*domain.Account, error) {
	var rec accountRecord
	err := r.db.WithContext(ctx).Where(query, args...).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return rec.toDomain(), nil
}

// CreateIfAbsent inserts the account on first contact. Non-empty profile
// fields of an existing account are refreshed; payment state is never touched.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, p domain.Profile) (*domain.Account, error) {
	now := r.now()
	rec := accountRecord{
		ID:            p.ID,
		Username:      p.Username,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		PaymentStatus: string(domain.StatusNone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	refresh := map[string]interface{}{}
	if p.Username != "" {
		refresh["username"] = p.Username
	}
	if p.FirstName != "" {
		refresh["first_name"] = p.FirstName
	}
	if p.LastName != "" {
		refresh["last_name"] = p.LastName
	}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if len(refresh) > 0 {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(refresh),
		}
	}

	if err := r.db.WithContext(ctx).Clauses(onConflict).Create(&rec).Error; err != nil {
		return nil, apperrors.NewDatabaseError("create_if_absent", err)
	}
	acc, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperrors.NewNotFoundError("account", p.ID)
	}
	return acc, nil
}

// ConditionalUpdate applies t in one guarded UPDATE and reads the row back in
// the same transaction. Zero affected rows means either another caller
// already moved the attempt (nil, nil) or there is no such account.
func (r *AccountRepository) ConditionalUpdate(ctx context.Context, id int64, t domain.Transition) (*domain.Account, error) {
	var out *domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := applyGuard(tx.Model(&accountRecord{}).Where("id = ?", id), t.Guard)
		res := q.Updates(patchColumns(t.Patch, r.now()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&accountRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.NewNotFoundError("account", id)
			}
			return nil
		}
		var rec accountRecord
		if err := tx.Where("id = ?", id).Take(&rec).Error; err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError(t.Name, err)
	}
	return out, nil
}

func applyGuard(q *gorm.DB, g domain.Guard) *gorm.DB {
	if len(g.Statuses) > 0 {
		statuses := make([]string, len(g.Statuses))
		for i, s := range g.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("payment_status IN ?", statuses)
	}
	if g.Method != domain.MethodNone {
		q = q.Where("paid_method = ?", string(g.Method))
	}
	if g.InvoiceID != "" {
		q = q.Where("invoice_id = ?", g.InvoiceID)
	}
	if g.NoInvoice {
		q = q.Where("invoice_id IS NULL")
	}
	if g.Undecided {
		q = q.Where("decision_at IS NULL")
	}
	return q
}

func patchColumns(p domain.Patch, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"payment_status": string(p.Status),
		"updated_at":     now,
	}
	if p.SetMethod {
		cols["paid_method"] = nullable(string(p.Method))
	}
	if p.SetInvoice {
		cols["invoice_id"] = nullable(p.InvoiceID)
	}
	if p.SetOutcome {
		cols["paid_at"] = nullableTime(p.PaidAt)
		cols["decision_by"] = nullableInt64(p.DecisionBy)
		cols["decision_at"] = nullableTime(p.DecisionAt)
	}
	return cols
}

// SetRole stores role, creating the account when it was never seen.
func (r *AccountRepository) SetRole(ctx context.Context, id int64, role domain.Role) (*domain.Account, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("role", "unknown role")
	}
	return r.upsertColumn(ctx, "set_role", id, "role", accountRecord{Role: string(role)})
}

// SetBanned stores the ban flag, creating the account when it was never seen.
func (r *AccountRepository) SetBanned(ctx context.Context, id int64, banned bool) (*domain.Account, error) {
	return r.upsertColumn(ctx, "set_banned", id, "banned", accountRecord{Banned: banned})
}

func (r *AccountRepository) upsertColumn(ctx context.Context, op string, id int64, column string, rec accountRecord) (*domain.Account, error) {
	now := r.now()
	rec.ID = id
	rec.PaymentStatus = string(domain.StatusNone)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{column, "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(op, err)
	}
	return r.GetByID(ctx, id)
}

// ListUnresolved returns open, undecided attempts, newest first.
func (r *AccountRepository) ListUnresolved(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var recs []accountRecord
	err := r.db.WithContext(ctx).
		Where("payment_status IN ? AND decision_at IS NULL", openStatuses).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("list_unresolved", err)
	}
	return toDomainList(recs), nil
}

// CountUnresolved counts open, undecided attempts.
func (r *AccountRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&accountRecord{}).
		Where("payment_status IN ? AND decision_at IS NULL", openStatuses).
		Count(&n).Error
	if err != nil {
		return 0, apperrors.NewDatabaseError("count_unresolved", err)
	}
	return n, nil
}

// ListOpenInvoices returns outstanding crypto attempts with id > afterID, in id order.
func (r *AccountRepository) ListOpenInvoices(ctx context.Context, afterID int64, limit int) ([]domain.Account, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var recs []accountRecord
	err := r.db.WithContext(ctx).
		Where("invoice_id IS NOT NULL AND paid_method = ? AND payment_status = ? AND decision_at IS NULL AND id > ?",
			string(domain.MethodCrypto), string(domain.StatusPending), afterID).
		Order("id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("list_open_invoices", err)
	}
	return toDomainList(recs), nil
}

// ListStaffIDs returns non-banned accounts with a stored staff role.
func (r *AccountRepository) ListStaffIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&accountRecord{}).
		Where("role IN ? AND banned = ?", []string{string(domain.RoleAdmin), string(domain.RoleModerator)}, false).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("list_staff_ids", err)
	}
	return ids, nil
}

// Ping checks the underlying connection.
func (r *AccountRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toDomainList(recs []accountRecord) []domain.Account {
	out := make([]domain.Account, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].toDomain())
	}
	return out
}
