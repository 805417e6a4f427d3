package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmhub/internal/models"
	"crmhub/internal/services"
	"crmhub/internal/testutil"
	codes "crmhub/pkg/errors"
	"crmhub/pkg/jwt"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	db     *gorm.DB
	jwt    *jwt.Manager
	auth   *AuthMiddleware
	org    *models.Organization
	seller *models.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	_, err := services.NewSeedService(db).SeedRBAC(context.Background())
	require.NoError(t, err)

	org := testutil.CreateOrganization(t, db, "acme")
	seller := testutil.CreateUser(t, db, "seller@acme.test")
	testutil.CreateMembership(t, db, seller.ID, org.ID, testutil.SystemRoleID(t, db, models.RoleVendedor))

	manager := jwt.NewManager("test-secret", time.Hour)
	return &authFixture{
		db:     db,
		jwt:    manager,
		auth:   NewAuthMiddleware(services.NewUserService(db), services.NewPermissionResolver(db), manager),
		org:    org,
		seller: seller,
	}
}

func (f *authFixture) token(t *testing.T, user *models.User, orgID uint) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(user.ID, orgID, user.Email)
	require.NoError(t, err)
	return token
}

func ok(c *gin.Context) { response.Success(c, nil) }

func doRequest(t *testing.T, r http.Handler, method, path, token string) response.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireLogin(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	r.GET("/me", f.auth.RequireLogin(), func(c *gin.Context) {
		userID, _ := CurrentUserID(c)
		orgID, _ := CurrentOrganizationID(c)
		user, _ := CurrentUser(c)
		response.Success(c, gin.H{"user_id": userID, "organization_id": orgID, "email": user.Email})
	})

	body := doRequest(t, r, http.MethodGet, "/me", "")
	assert.Equal(t, codes.CodeUnauthorized, body.Code)

	body = doRequest(t, r, http.MethodGet, "/me", "not-a-jwt")
	assert.Equal(t, codes.CodeUnauthorized, body.Code)

	other := jwt.NewManager("other-secret", time.Hour)
	forged, err := other.GenerateToken(f.seller.ID, f.org.ID, f.seller.Email)
	require.NoError(t, err)
	body = doRequest(t, r, http.MethodGet, "/me", forged)
	assert.Equal(t, codes.CodeUnauthorized, body.Code)

	body = doRequest(t, r, http.MethodGet, "/me", f.token(t, f.seller, f.org.ID))
	require.Equal(t, codes.CodeSuccess, body.Code)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, float64(f.seller.ID), data["user_id"])
	assert.Equal(t, float64(f.org.ID), data["organization_id"])
	assert.Equal(t, f.seller.Email, data["email"])

	require.NoError(t, f.db.Model(f.seller).Update("status", models.UserStatusInactive).Error)
	body = doRequest(t, r, http.MethodGet, "/me", f.token(t, f.seller, f.org.ID))
	assert.Equal(t, codes.CodeUnauthorized, body.Code)
}

func TestRequireSameOrganization(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	r.GET("/organizations/:org_id", f.auth.RequireLogin(), f.auth.RequireSameOrganization(), ok)
	token := f.token(t, f.seller, f.org.ID)

	body := doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID), token)
	assert.Equal(t, codes.CodeSuccess, body.Code)

	body = doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID+1), token)
	assert.Equal(t, codes.CodeForbidden, body.Code)

	body = doRequest(t, r, http.MethodGet, "/organizations/abc", token)
	assert.Equal(t, codes.CodeInvalidParam, body.Code)

	// 未选择组织的令牌
	body = doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID), f.token(t, f.seller, 0))
	assert.Equal(t, codes.CodeUnauthorized, body.Code)

	// 令牌仍有效但成员关系已被删除
	require.NoError(t, f.db.Where("user_id = ?", f.seller.ID).Delete(&models.Membership{}).Error)
	body = doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID), token)
	assert.Equal(t, codes.CodeForbidden, body.Code)
}

func TestRequireSameOrganization_FailsClosed(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	r.GET("/organizations/:org_id", f.auth.RequireLogin(), f.auth.RequireSameOrganization(), ok)
	token := f.token(t, f.seller, f.org.ID)

	require.NoError(t, f.db.Exec("DROP TABLE memberships").Error)
	body := doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID), token)
	assert.Equal(t, codes.CodeForbidden, body.Code)
}

func TestRequirePermission(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	org := r.Group("/organizations/:org_id")
	for _, h := range f.auth.CombineMiddleware(models.PermManageTeam) {
		org.Use(h)
	}
	org.GET("/members", ok)

	r.GET("/clients", f.auth.RequireLogin(), f.auth.RequirePermission("read:client"), ok)
	r.GET("/reports", f.auth.RequireLogin(), f.auth.RequireAnyPermission("view:report", "create:task"), ok)
	r.GET("/exports", f.auth.RequireLogin(), f.auth.RequireAnyPermission("export:report", "export:client"), ok)

	token := f.token(t, f.seller, f.org.ID)
	assert.Equal(t, codes.CodeForbidden, doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID)+"/members", token).Code)
	assert.Equal(t, codes.CodeSuccess, doRequest(t, r, http.MethodGet, "/clients", token).Code)
	assert.Equal(t, codes.CodeSuccess, doRequest(t, r, http.MethodGet, "/reports", token).Code)
	assert.Equal(t, codes.CodeForbidden, doRequest(t, r, http.MethodGet, "/exports", token).Code)

	manager := testutil.CreateUser(t, f.db, "manager@acme.test")
	testutil.CreateMembership(t, f.db, manager.ID, f.org.ID, testutil.SystemRoleID(t, f.db, models.RoleGerenteDeVendas))
	assert.Equal(t, codes.CodeSuccess,
		doRequest(t, r, http.MethodGet, "/organizations/"+itoa(f.org.ID)+"/members", f.token(t, manager, f.org.ID)).Code)

	// 不是该组织成员的用户被拒绝
	outsider := testutil.CreateUser(t, f.db, "outsider@acme.test")
	assert.Equal(t, codes.CodeForbidden, doRequest(t, r, http.MethodGet, "/clients", f.token(t, outsider, f.org.ID)).Code)
}

func TestRequirePermission_FailsClosed(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	r.GET("/clients", f.auth.RequireLogin(), f.auth.RequirePermission("read:client"), ok)
	token := f.token(t, f.seller, f.org.ID)
	require.Equal(t, codes.CodeSuccess, doRequest(t, r, http.MethodGet, "/clients", token).Code)

	// 权限查询失败时按拒绝处理，登录检查不受影响
	require.NoError(t, f.db.Exec("DROP TABLE role_permissions").Error)
	assert.Equal(t, codes.CodeForbidden, doRequest(t, r, http.MethodGet, "/clients", token).Code)
}

func TestRequireStageAction(t *testing.T) {
	f := newAuthFixture(t)
	r := gin.New()
	r.POST("/stages/:stage/deals", f.auth.RequireLogin(), f.auth.RequireStageAction(models.ActionCreate), ok)
	r.DELETE("/stages/:stage/deals", f.auth.RequireLogin(), f.auth.RequireStageAction(models.ActionDelete), ok)
	token := f.token(t, f.seller, f.org.ID)

	tests := []struct {
		method string
		stage  string
		want   int
	}{
		{http.MethodPost, "stage_1", codes.CodeSuccess},
		{http.MethodPost, "4", codes.CodeSuccess},
		{http.MethodPost, "stage_5", codes.CodeForbidden},
		{http.MethodDelete, "stage_5", codes.CodeForbidden},
		{http.MethodDelete, "stage_1", codes.CodeForbidden},
		{http.MethodPost, "stage_9", codes.CodeInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.stage, func(t *testing.T) {
			body := doRequest(t, r, tt.method, "/stages/"+tt.stage+"/deals", token)
			assert.Equal(t, tt.want, body.Code)
		})
	}
}
