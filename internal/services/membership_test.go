package services

import (
	"context"
	"testing"

	"crmhub/internal/models"
	"crmhub/internal/testutil"
	"crmhub/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.memberships()
	owner := f.member(t, "owner@acme.test", models.RoleGerenteGeral)
	u := testutil.CreateUser(t, f.db, "seller@acme.test")
	vendedor := testutil.SystemRoleID(t, f.db, models.RoleVendedor)

	m, err := svc.AddMember(ctx, f.org.ID, &AddMemberRequest{UserID: u.ID, RoleID: vendedor, InvitedBy: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, vendedor, m.RoleID)
	require.NotNil(t, m.InvitedBy)
	assert.Equal(t, owner.ID, *m.InvitedBy)

	_, err = svc.AddMember(ctx, f.org.ID, &AddMemberRequest{UserID: u.ID, RoleID: vendedor})
	assert.ErrorIs(t, err, ErrMembershipExists)
	_, err = svc.AddMember(ctx, f.org.ID, &AddMemberRequest{UserID: 9999, RoleID: vendedor})
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.AddMember(ctx, 9999, &AddMemberRequest{UserID: u.ID, RoleID: vendedor})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
	_, err = svc.AddMember(ctx, f.org.ID, &AddMemberRequest{UserID: u.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := svc.GetMembership(ctx, f.org.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Role)
	assert.Equal(t, models.RoleVendedor, got.Role.Name)
	require.NotNil(t, got.User)
	assert.Equal(t, "seller@acme.test", got.User.Email)

	members, total, err := svc.ListMembers(ctx, f.org.ID, &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, members, 2)

	posVenda := testutil.SystemRoleID(t, f.db, models.RolePosVenda)
	changed, err := svc.ChangeRole(ctx, f.org.ID, u.ID, posVenda, &owner.ID)
	require.NoError(t, err)
	assert.Equal(t, posVenda, changed.RoleID)
	assert.True(t, f.resolver.HasPermission(ctx, u.ID, f.org.ID, "delete:stage_8"))

	_, err = svc.ChangeRole(ctx, f.org.ID, 9999, posVenda, nil)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
	_, err = svc.ChangeRole(ctx, f.org.ID, u.ID, 9999, nil)
	assert.ErrorIs(t, err, ErrRoleNotFound)

	require.NoError(t, svc.RemoveMember(ctx, f.org.ID, u.ID, &owner.ID))
	_, err = svc.GetMembership(ctx, f.org.ID, u.ID)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
	assert.ErrorIs(t, svc.RemoveMember(ctx, f.org.ID, u.ID, nil), ErrMembershipNotFound)

	logs, total, err := f.audit.List(ctx, f.org.ID, "", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	actions := make([]string, len(logs))
	for i, l := range logs {
		actions[i] = l.Action
	}
	assert.ElementsMatch(t, []string{models.AuditMemberAdded, models.AuditMemberRoleChanged, models.AuditMemberRemoved}, actions)
}

func TestListUserMemberships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.member(t, "multi@acme.test", models.RoleVendedor)
	other := testutil.CreateOrganization(t, f.db, "other")
	testutil.CreateMembership(t, f.db, u.ID, other.ID, testutil.SystemRoleID(t, f.db, models.RoleAdministrativo))

	list, err := f.memberships().ListUserMemberships(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, f.org.ID, list[0].OrganizationID)
	assert.Equal(t, "acme", list[0].Organization.Slug)
	assert.Equal(t, models.RoleAdministrativo, list[1].Role.Name)

	// 同一用户在两个组织中的权限互不影响
	assert.True(t, f.resolver.HasPermission(ctx, u.ID, f.org.ID, "create:stage_1"))
	assert.False(t, f.resolver.HasPermission(ctx, u.ID, other.ID, "create:stage_1"))
	assert.True(t, f.resolver.HasPermission(ctx, u.ID, other.ID, "update:stage_6"))
}
