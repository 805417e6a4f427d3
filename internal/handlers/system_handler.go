package handlers

import (
	"context"
	"time"

	"crmhub/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler 系统处理器
type SystemHandler struct {
	db    *gorm.DB
	cache Pinger
}

// NewSystemHandler 创建系统处理器；cache 为 nil 时不检查缓存
func NewSystemHandler(db *gorm.DB, cache Pinger) *SystemHandler {
	return &SystemHandler{db: db, cache: cache}
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}

// Health 健康检查，任一依赖不可用时返回 ServerError
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{Status: "ok", Database: "ok"}
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status.Status = "degraded"
		status.Database = "unavailable"
	}
	if h.cache != nil {
		status.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Cache = "unavailable"
		}
	}

	if status.Status != "ok" {
		response.ServerError(c, "服务依赖不可用")
		return
	}
	response.Success(c, status)
}
