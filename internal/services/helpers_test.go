package services

import (
	"context"
	"testing"

	"crmhub/internal/models"
	"crmhub/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixture 已写入系统权限与角色的测试库
type fixture struct {
	db       *gorm.DB
	resolver *PermissionResolver
	audit    *AuditService
	org      *models.Organization
}

func newFixture(t *testing.T, opts ...ResolverOption) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	_, err := NewSeedService(db).SeedRBAC(context.Background())
	require.NoError(t, err)

	return &fixture{
		db:       db,
		resolver: NewPermissionResolver(db, opts...),
		audit:    NewAuditService(db),
		org:      testutil.CreateOrganization(t, db, "acme"),
	}
}

// member 创建用户并以系统角色加入 f.org
func (f *fixture) member(t *testing.T, email, roleName string) *models.User {
	t.Helper()
	user := testutil.CreateUser(t, f.db, email)
	testutil.CreateMembership(t, f.db, user.ID, f.org.ID, testutil.SystemRoleID(t, f.db, roleName))
	return user
}

func (f *fixture) roles() *RoleService {
	return NewRoleService(f.db, f.resolver, f.audit)
}

func (f *fixture) memberships() *MembershipService {
	return NewMembershipService(f.db, f.resolver, f.audit)
}

func roleDefinition(t *testing.T, name string) RoleDefinition {
	t.Helper()
	for _, d := range SystemRoles() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("unknown system role %q", name)
	return RoleDefinition{}
}
