package access

import (
	"context"
	"sort"

	domain "access-bot-backend/internal/domain/account"
)

// Role is a caller's effective role.
type Role string

const (
	Owner     Role = "owner"
	Banned    Role = "banned"
	Admin     Role = "admin"
	Moderator Role = "moderator"
	User      Role = "user"
)

// IsStaff reports whether the role may arbitrate payments and view the queue.
func (r Role) IsStaff() bool {
	return r == Owner || r == Admin || r == Moderator
}

// CanManageRoles reports whether the role may grant or revoke admin/moderator.
func (r Role) CanManageRoles() bool {
	return r == Owner || r == Admin
}

func (r Role) rank() int {
	switch r {
	case Owner:
		return 3
	case Admin:
		return 2
	case Moderator:
		return 1
	case User:
		return 0
	}
	return -1
}

// Outranks reports whether r sits strictly above other.
func (r Role) Outranks(other Role) bool {
	return r.rank() > other.rank()
}

// Resolver computes effective roles. Owners come from configuration and
// cannot be changed at runtime; everything else is read from storage.
type Resolver struct {
	owners map[int64]struct{}
	repo   domain.Repository
}

func NewResolver(ownerIDs []int64, repo domain.Repository) *Resolver {
	owners := make(map[int64]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	return &Resolver{owners: owners, repo: repo}
}

// IsOwner reports whether id is a configured owner.
func (r *Resolver) IsOwner(id int64) bool {
	_, ok := r.owners[id]
	return ok
}

// RoleOf applies the precedence owner > banned > admin > moderator > user
// to an account snapshot. acc may be nil for never-seen users.
func (r *Resolver) RoleOf(id int64, acc *domain.Account) Role {
	if r.IsOwner(id) {
		return Owner
	}
	if acc == nil {
		return User
	}
	if acc.Banned {
		return Banned
	}
	return storedRole(acc)
}

// StandingOf is the role id would have without a ban. Moderation compares
// standings so a ban does not let lower staff act on higher staff.
func (r *Resolver) StandingOf(id int64, acc *domain.Account) Role {
	if r.IsOwner(id) {
		return Owner
	}
	if acc == nil {
		return User
	}
	return storedRole(acc)
}

func storedRole(acc *domain.Account) Role {
	switch acc.Role {
	case domain.RoleAdmin:
		return Admin
	case domain.RoleModerator:
		return Moderator
	}
	return User
}

// Resolve loads id and returns its effective role with the snapshot used.
func (r *Resolver) Resolve(ctx context.Context, id int64) (Role, *domain.Account, error) {
	acc, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return r.RoleOf(id, acc), acc, nil
}

// StaffIDs returns owners plus non-banned stored admins and moderators.
func (r *Resolver) StaffIDs(ctx context.Context) ([]int64, error) {
	stored, err := r.repo.ListStaffIDs(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(stored)+len(r.owners))
	out := make([]int64, 0, len(stored)+len(r.owners))
	for id := range r.owners {
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range stored {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
