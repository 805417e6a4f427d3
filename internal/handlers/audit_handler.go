package handlers

import (
	"crmhub/internal/services"
	"crmhub/pkg/pagination"
	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List 分页获取组织审计日志，可按 action 筛选
func (h *AuditHandler) List(c *gin.Context) {
	orgID, ok := parseID(c, "org_id")
	if !ok {
		return
	}
	pageParams := pagination.ParsePageParams(c)

	logs, total, err := h.service.List(c.Request.Context(), orgID, c.Query("action"), pageParams)
	if err != nil {
		respondError(c, err, "查询失败")
		return
	}
	response.SuccessWithPage(c, logs, pagination.NewPageInfo(pageParams, total))
}
