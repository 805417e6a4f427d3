package handlers

import (
	"crmhub/internal/middleware"
	"crmhub/internal/services"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	service *services.OrganizationService
}

func NewOrganizationHandler(service *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		service: service,
	}
}

// Create 创建组织，创建者成为 Gerente Geral
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req services.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	org, err := h.service.Create(c.Request.Context(), &req, &userID)
	if err != nil {
		respondError(c, err, "创建失败")
		return
	}
	response.Success(c, org)
}

// GetByID 获取组织
func (h *OrganizationHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "org_id")
	if !ok {
		return
	}

	org, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.Success(c, org)
}

// Delete 删除组织
func (h *OrganizationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "org_id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
