package account

import "context"

// Repository defines persistence operations for the Account aggregate.
//
// Every change of payment state goes through ConditionalUpdate: the guard is
// re-evaluated by the storage engine in the same statement that writes the
// patch, so concurrent callers cannot both succeed on the same attempt.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Account, error)
	// CreateIfAbsent inserts a fresh account or refreshes profile fields of an existing one.
	CreateIfAbsent(ctx context.Context, p Profile) (*Account, error)
	// ConditionalUpdate applies t when t.Guard still holds. It returns the
	// post-update row, (nil, nil) when the guard no longer matched, or a
	// not-found error when the account does not exist.
	ConditionalUpdate(ctx context.Context, id int64, t Transition) (*Account, error)
	SetRole(ctx context.Context, id int64, role Role) (*Account, error)
	SetBanned(ctx context.Context, id int64, banned bool) (*Account, error)
	// ListUnresolved returns open, undecided attempts ordered by creation, newest first.
	ListUnresolved(ctx context.Context, limit, offset int) ([]Account, error)
	CountUnresolved(ctx context.Context) (int64, error)
	// ListOpenInvoices returns outstanding crypto attempts with id > afterID,
	// ordered by id, so callers can walk all of them page by page.
	ListOpenInvoices(ctx context.Context, afterID int64, limit int) ([]Account, error)
	// ListStaffIDs returns ids of non-banned accounts holding a stored staff role.
	ListStaffIDs(ctx context.Context) ([]int64, error)
	Ping(ctx context.Context) error
}
