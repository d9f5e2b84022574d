package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/repository/sqldb/sqldbtest"
)

func TestRolePrecedence(t *testing.T) {
	r := NewResolver([]int64{1}, nil)

	cases := []struct {
		name string
		id   int64
		acc  *domain.Account
		want Role
	}{
		{"owner without account", 1, nil, Owner},
		{"banned owner stays owner", 1, &domain.Account{Banned: true}, Owner},
		{"unknown user", 2, nil, User},
		{"banned admin", 2, &domain.Account{Role: domain.RoleAdmin, Banned: true}, Banned},
		{"admin", 2, &domain.Account{Role: domain.RoleAdmin}, Admin},
		{"moderator", 2, &domain.Account{Role: domain.RoleModerator}, Moderator},
		{"plain", 2, &domain.Account{}, User},
		{"banned plain", 2, &domain.Account{Banned: true}, Banned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.RoleOf(tc.id, tc.acc))
		})
	}
}

func TestStandingIgnoresBan(t *testing.T) {
	r := NewResolver(nil, nil)
	acc := &domain.Account{Role: domain.RoleAdmin, Banned: true}

	assert.Equal(t, Banned, r.RoleOf(5, acc))
	assert.Equal(t, Admin, r.StandingOf(5, acc))
	assert.False(t, Moderator.Outranks(r.StandingOf(5, acc)))
}

func TestPermissions(t *testing.T) {
	for _, role := range []Role{Owner, Admin, Moderator} {
		assert.True(t, role.IsStaff(), role)
	}
	for _, role := range []Role{User, Banned} {
		assert.False(t, role.IsStaff(), role)
	}
	assert.True(t, Owner.CanManageRoles())
	assert.True(t, Admin.CanManageRoles())
	assert.False(t, Moderator.CanManageRoles())

	assert.True(t, Owner.Outranks(Admin))
	assert.True(t, Admin.Outranks(Moderator))
	assert.False(t, Admin.Outranks(Admin))
	assert.True(t, User.Outranks(Banned))
}

func TestResolveAndStaffIDs(t *testing.T) {
	ctx := context.Background()
	repo := sqldbtest.NewRepository(t)
	r := NewResolver([]int64{100, 5}, repo)

	_, err := repo.SetRole(ctx, 5, domain.RoleAdmin)
	require.NoError(t, err)
	_, err = repo.SetRole(ctx, 7, domain.RoleModerator)
	require.NoError(t, err)
	_, err = repo.SetRole(ctx, 8, domain.RoleModerator)
	require.NoError(t, err)
	_, err = repo.SetBanned(ctx, 8, true)
	require.NoError(t, err)

	role, acc, err := r.Resolve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, Moderator, role)
	require.NotNil(t, acc)

	role, _, err = r.Resolve(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, Banned, role)

	role, acc, err = r.Resolve(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, User, role)
	assert.Nil(t, acc)

	ids, err := r.StaffIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7, 100}, ids)
}
