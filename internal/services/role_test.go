package services

import (
	"context"
	"errors"
	"testing"

	"crmhub/internal/models"
	"crmhub/internal/testutil"
	"crmhub/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateCustomRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()
	readClient := testutil.PermissionID(t, f.db, "read:client")
	actor := f.member(t, "owner@acme.test", models.RoleGerenteGeral)

	role, err := roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name:           "Auditor",
		Description:    "Somente leitura de clientes",
		OrganizationID: f.org.ID,
		PermissionIDs:  []uint{readClient, readClient},
		ActorID:        &actor.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "Auditor", role.Name)
	assert.False(t, role.IsSystemRole)
	require.NotNil(t, role.OrganizationID)
	assert.Equal(t, f.org.ID, *role.OrganizationID)
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, "read:client", role.Permissions[0].Slug)

	var logs []models.AuditLog
	require.NoError(t, f.db.Where("action = ?", models.AuditRoleCreated).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, role.ID, logs[0].TargetID)
	assert.Equal(t, actor.ID, *logs[0].ActorID)

	// 新角色出现在组织角色列表末尾，系统角色在前
	list, err := roles.GetOrganizationRoles(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, list, 6)
	for _, r := range list[:5] {
		assert.True(t, r.IsSystemRole)
	}
	assert.Equal(t, role.ID, list[5].ID)
	assert.Len(t, list[0].Permissions, len(roleDefinition(t, list[0].Name).PermissionSlugs))
}

func TestCreateCustomRole_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()
	other := testutil.CreateOrganization(t, f.db, "other")

	foreign, err := NewPermissionService(f.db, f.resolver, f.audit).CreateOrganizationPermission(ctx, other.ID,
		&CreatePermissionRequest{Action: "approve", Resource: "discount"}, nil)
	require.NoError(t, err)

	_, err = roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{Name: "Temp", OrganizationID: f.org.ID})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  CreateCustomRoleRequest
		want error
	}{
		{"missing name", CreateCustomRoleRequest{OrganizationID: f.org.ID}, ErrInvalidInput},
		{"unknown organization", CreateCustomRoleRequest{Name: "X1", OrganizationID: 9999}, ErrOrganizationNotFound},
		{"system role name", CreateCustomRoleRequest{Name: models.RoleVendedor, OrganizationID: f.org.ID}, ErrRoleNameTaken},
		{"duplicate in organization", CreateCustomRoleRequest{Name: "Temp", OrganizationID: f.org.ID}, ErrRoleNameTaken},
		{"unknown permission", CreateCustomRoleRequest{Name: "X2", OrganizationID: f.org.ID, PermissionIDs: []uint{99999}}, ErrPermissionNotFound},
		{"other organization permission", CreateCustomRoleRequest{Name: "X3", OrganizationID: f.org.ID, PermissionIDs: []uint{foreign.ID}}, ErrCrossOrganizationPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := roles.CreateCustomRole(ctx, &tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// 失败的创建不留下任何角色
	var count int64
	require.NoError(t, f.db.Model(&models.Role{}).Where("organization_id = ?", f.org.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 同名角色可以存在于其他组织
	_, err = roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{Name: "Temp", OrganizationID: other.ID})
	assert.NoError(t, err)
}

func TestSystemRolesImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()
	vendedor := testutil.SystemRoleID(t, f.db, models.RoleVendedor)

	_, err := roles.UpdateRole(ctx, f.org.ID, vendedor, &UpdateRoleRequest{Name: "Vendedor Sênior"}, nil)
	assert.ErrorIs(t, err, ErrSystemRoleImmutable)

	_, err = roles.SetRolePermissions(ctx, f.org.ID, vendedor, nil, nil)
	assert.ErrorIs(t, err, ErrSystemRoleImmutable)

	assert.ErrorIs(t, roles.DeleteRole(ctx, f.org.ID, vendedor, nil), ErrSystemRoleImmutable)

	role, err := roles.GetRoleByID(ctx, vendedor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendedor, role.Name)
	assert.Len(t, role.Permissions, 17)
}

func TestGetRoleByID_NotFound(t *testing.T) {
	f := newFixture(t)
	role, err := f.roles().GetRoleByID(context.Background(), 424242)
	assert.NoError(t, err)
	assert.Nil(t, role)
}

func TestUpdateAndSetRolePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()

	role, err := roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name:           "Auditor",
		OrganizationID: f.org.ID,
		PermissionIDs:  []uint{testutil.PermissionID(t, f.db, "read:client")},
	})
	require.NoError(t, err)

	updated, err := roles.UpdateRole(ctx, f.org.ID, role.ID, &UpdateRoleRequest{Name: "Auditor Externo", Description: "Consultoria"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Auditor Externo", updated.Name)
	assert.Equal(t, "Consultoria", updated.Description)

	_, err = roles.UpdateRole(ctx, f.org.ID, role.ID, &UpdateRoleRequest{Name: models.RoleGerenteGeral}, nil)
	assert.ErrorIs(t, err, ErrRoleNameTaken)

	ids := []uint{
		testutil.PermissionID(t, f.db, "read:deal"),
		testutil.PermissionID(t, f.db, "view:report"),
	}
	updated, err = roles.SetRolePermissions(ctx, f.org.ID, role.ID, ids, nil)
	require.NoError(t, err)
	slugs := make([]string, len(updated.Permissions))
	for i, p := range updated.Permissions {
		slugs[i] = p.Slug
	}
	assert.Equal(t, []string{"read:deal", "view:report"}, slugs)

	// 失败的替换保留原有映射
	_, err = roles.SetRolePermissions(ctx, f.org.ID, role.ID, []uint{ids[0], 99999}, nil)
	assert.ErrorIs(t, err, ErrPermissionNotFound)
	reloaded, err := roles.GetRoleByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Permissions, 2)

	emptied, err := roles.SetRolePermissions(ctx, f.org.ID, role.ID, []uint{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, emptied.Permissions)
	assert.Empty(t, emptied.Permissions)
}

func TestRoleMutations_OtherOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()
	other := testutil.CreateOrganization(t, f.db, "other")

	role, err := roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{Name: "Auditor", OrganizationID: other.ID})
	require.NoError(t, err)

	_, err = roles.UpdateRole(ctx, f.org.ID, role.ID, &UpdateRoleRequest{Name: "Hijack"}, nil)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	_, err = roles.SetRolePermissions(ctx, f.org.ID, role.ID, nil, nil)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	assert.ErrorIs(t, roles.DeleteRole(ctx, f.org.ID, role.ID, nil), ErrRoleNotFound)

	// 其他组织的角色不能分配给本组织成员
	u := testutil.CreateUser(t, f.db, "u@acme.test")
	_, err = f.memberships().AddMember(ctx, f.org.ID, &AddMemberRequest{UserID: u.ID, RoleID: role.ID})
	assert.ErrorIs(t, err, ErrRoleNotUsable)
}

func TestDeleteRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()

	role, err := roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name:           "Auditor",
		OrganizationID: f.org.ID,
		PermissionIDs:  []uint{testutil.PermissionID(t, f.db, "read:client")},
	})
	require.NoError(t, err)

	u := testutil.CreateUser(t, f.db, "auditor@acme.test")
	testutil.CreateMembership(t, f.db, u.ID, f.org.ID, role.ID)

	assert.ErrorIs(t, roles.DeleteRole(ctx, f.org.ID, role.ID, nil), ErrRoleInUse)
	assert.True(t, f.resolver.HasPermission(ctx, u.ID, f.org.ID, "read:client"))

	require.NoError(t, f.memberships().RemoveMember(ctx, f.org.ID, u.ID, nil))
	require.NoError(t, roles.DeleteRole(ctx, f.org.ID, role.ID, nil))

	got, err := roles.GetRoleByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var mappings int64
	require.NoError(t, f.db.Model(&models.RolePermission{}).Where("role_id = ?", role.ID).Count(&mappings).Error)
	assert.Zero(t, mappings)

	assert.ErrorIs(t, roles.DeleteRole(ctx, f.org.ID, role.ID, nil), ErrRoleNotFound)
}

func TestDeleteRole_ForeignKeyRestrictsHeldRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles().CreateCustomRole(ctx, &CreateCustomRoleRequest{Name: "Auditor", OrganizationID: f.org.ID})
	require.NoError(t, err)
	u := testutil.CreateUser(t, f.db, "auditor@acme.test")
	testutil.CreateMembership(t, f.db, u.ID, f.org.ID, role.ID)

	// 绕过服务层的成员计数，直接删除
	err = f.db.Delete(&models.Role{}, role.ID).Error
	require.Error(t, err)
	assert.True(t, isForeignKeyViolation(err), err.Error())

	var roles, members int64
	require.NoError(t, f.db.Model(&models.Role{}).Where("id = ?", role.ID).Count(&roles).Error)
	require.NoError(t, f.db.Model(&models.Membership{}).Where("role_id = ?", role.ID).Count(&members).Error)
	assert.Equal(t, int64(1), roles)
	assert.Equal(t, int64(1), members)
	assert.NotNil(t, f.resolver.GetUserPermissions(ctx, u.ID, f.org.ID))
}

// failRolePermissionWrites 让 role_permissions 的插入失败
func failRolePermissionWrites(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_role_permissions", func(tx *gorm.DB) {
		if tx.Statement.Table == "role_permissions" {
			_ = tx.AddError(errors.New("insert refused"))
		}
	}))
}

func TestCreateCustomRole_RollsBackOnMappingFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roles := f.roles()
	readClient := testutil.PermissionID(t, f.db, "read:client")

	existing, err := roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name: "Leitor", OrganizationID: f.org.ID, PermissionIDs: []uint{readClient},
	})
	require.NoError(t, err)

	failRolePermissionWrites(t, f.db)

	_, err = roles.CreateCustomRole(ctx, &CreateCustomRoleRequest{
		Name: "Auditor", OrganizationID: f.org.ID, PermissionIDs: []uint{readClient},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert refused")

	var count int64
	require.NoError(t, f.db.Model(&models.Role{}).Where("name = ?", "Auditor").Count(&count).Error)
	assert.Zero(t, count)
	_, total, err := f.audit.List(ctx, f.org.ID, models.AuditRoleCreated, &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// 替换映射失败时保留原映射
	_, err = roles.SetRolePermissions(ctx, f.org.ID, existing.ID, []uint{testutil.PermissionID(t, f.db, "create:client")}, nil)
	require.Error(t, err)
	got, err := roles.GetRoleByID(ctx, existing.ID)
	require.NoError(t, err)
	require.Len(t, got.Permissions, 1)
	assert.Equal(t, "read:client", got.Permissions[0].Slug)
}
