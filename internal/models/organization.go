package models

// Organization 组织（租户）
type Organization struct {
	BaseModel
	Name   string `json:"name" gorm:"not null;size:100"`
	Slug   string `json:"slug" gorm:"uniqueIndex;not null;size:50"`
	Status string `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (Organization) TableName() string {
	return "organizations"
}

// 组织状态常量
const (
	OrganizationStatusActive   = "active"
	OrganizationStatusInactive = "inactive"
)
