package services

import (
	"context"
	"testing"
	"time"

	"crmhub/internal/models"
	"crmhub/internal/testutil"
	"crmhub/pkg/cache"
	"crmhub/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewOrganizationService(f.db, f.resolver, f.audit)
	owner := testutil.CreateUser(t, f.db, "founder@acme.test")

	org, err := svc.Create(ctx, &CreateOrganizationRequest{Name: " Loja Central ", Slug: "Loja-Central"}, &owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loja Central", org.Name)
	assert.Equal(t, "loja-central", org.Slug)
	assert.True(t, f.resolver.HasPermission(ctx, owner.ID, org.ID, models.PermManageOrganization))

	_, err = svc.Create(ctx, &CreateOrganizationRequest{Name: "Outra", Slug: "loja-central"}, nil)
	assert.ErrorIs(t, err, ErrOrganizationSlugTaken)
	_, err = svc.Create(ctx, &CreateOrganizationRequest{Name: "Outra", Slug: "has space"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	orgs, total, err := svc.GetWithPage(ctx, "loja", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, org.ID, orgs[0].ID)

	_, err = svc.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestOrganizationDelete(t *testing.T) {
	store := cache.NewMemoryStore(100, time.Minute)
	f := newFixture(t, WithCache(store))
	ctx := context.Background()
	svc := NewOrganizationService(f.db, f.resolver, f.audit)

	owner := f.member(t, "owner@acme.test", models.RoleGerenteGeral)
	perm, err := NewPermissionService(f.db, f.resolver, f.audit).CreateOrganizationPermission(ctx, f.org.ID,
		&CreatePermissionRequest{Action: "approve", Resource: "discount"}, nil)
	require.NoError(t, err)
	role, err := f.roles().CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name:           "Aprovador",
		OrganizationID: f.org.ID,
		PermissionIDs:  []uint{perm.ID},
	})
	require.NoError(t, err)
	approver := testutil.CreateUser(t, f.db, "approver@acme.test")
	testutil.CreateMembership(t, f.db, approver.ID, f.org.ID, role.ID)
	_, err = NewInvitationService(f.db, f.resolver, f.audit).CreateInvitation(ctx, owner.ID, f.org.ID,
		&CreateInvitationRequest{Email: "pending@acme.test", RoleID: role.ID})
	require.NoError(t, err)

	require.True(t, f.resolver.HasPermission(ctx, owner.ID, f.org.ID, models.PermManageOrganization))
	require.True(t, f.resolver.HasPermission(ctx, approver.ID, f.org.ID, "approve:discount"))
	require.Equal(t, 2, store.Len())

	require.NoError(t, svc.Delete(ctx, f.org.ID))
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, f.resolver.GetUserPermissions(ctx, owner.ID, f.org.ID))
	assert.False(t, f.resolver.HasPermission(ctx, approver.ID, f.org.ID, "approve:discount"))

	for _, model := range []interface{}{&models.Membership{}, &models.Invitation{}, &models.Role{}, &models.Permission{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Where("organization_id = ?", f.org.ID).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	// 系统目录不受影响
	var mappings int64
	require.NoError(t, f.db.Model(&models.RolePermission{}).Count(&mappings).Error)
	assert.Equal(t, int64(105), mappings)

	assert.ErrorIs(t, svc.Delete(ctx, f.org.ID), ErrOrganizationNotFound)
}
