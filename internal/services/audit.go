package services

import (
	"context"
	"fmt"

	"crmhub/internal/models"
	"crmhub/pkg/logger"
	"crmhub/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry 审计记录参数
type AuditEntry struct {
	OrganizationID *uint
	ActorID        *uint
	Action         string
	TargetType     string
	TargetID       uint
	Details        map[string]interface{}
}

// AuditService 审计日志
type AuditService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{
		db:  db,
		log: logger.GetLogger(),
	}
}

// Record 在调用方事务内写入审计记录，与业务写入一起提交或回滚
func (s *AuditService) Record(tx *gorm.DB, e AuditEntry) error {
	entry := &models.AuditLog{
		OrganizationID: e.OrganizationID,
		ActorID:        e.ActorID,
		Action:         e.Action,
		TargetType:     e.TargetType,
		TargetID:       e.TargetID,
		Details:        datatypes.JSONMap(e.Details),
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

// List 分页获取组织审计日志，按时间倒序
func (s *AuditService) List(ctx context.Context, organizationID uint, action string, page *pagination.PageParams) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("organization_id = ?", organizationID)
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Scopes(page.Scope()).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
