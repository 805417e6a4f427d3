package services

import "crmhub/internal/models"

// 阶段访问级别
const (
	StageAccessEditable = "editable"
	StageAccessViewOnly = "view_only"
	StageAccessNone     = "none"
)

// AccessibleStages 按管道顺序划分的阶段
type AccessibleStages struct {
	Editable []models.SalesStage `json:"editable"`
	ViewOnly []models.SalesStage `json:"view_only"`
}

// StageAccess 单个阶段的访问明细
type StageAccess struct {
	Stage     models.SalesStage `json:"stage"`
	Label     string            `json:"label"`
	Position  int               `json:"position"`
	Access    string            `json:"access"`
	CanCreate bool              `json:"can_create"`
	CanRead   bool              `json:"can_read"`
	CanUpdate bool              `json:"can_update"`
	CanDelete bool              `json:"can_delete"`
	CanManage bool              `json:"can_manage"`
}

// StagePolicy 基于已解析权限集的只读阶段视图，无状态
type StagePolicy struct {
	perms *models.UserPermissions
}

// NewStagePolicy perms 为 nil 时所有阶段不可访问
func NewStagePolicy(perms *models.UserPermissions) *StagePolicy {
	return &StagePolicy{perms: perms}
}

func (p *StagePolicy) can(action string, stage models.SalesStage) bool {
	return stage.IsValid() && p.perms.Has(stage.Slug(action))
}

func (p *StagePolicy) CanCreateStage(stage models.SalesStage) bool {
	return p.can(models.ActionCreate, stage)
}

func (p *StagePolicy) CanReadStage(stage models.SalesStage) bool {
	return p.can(models.ActionRead, stage)
}

func (p *StagePolicy) CanUpdateStage(stage models.SalesStage) bool {
	return p.can(models.ActionUpdate, stage)
}

func (p *StagePolicy) CanDeleteStage(stage models.SalesStage) bool {
	return p.can(models.ActionDelete, stage)
}

// CanManageStage 同时持有 create、update、delete；不要求 read
func (p *StagePolicy) CanManageStage(stage models.SalesStage) bool {
	return p.CanCreateStage(stage) && p.CanUpdateStage(stage) && p.CanDeleteStage(stage)
}

// IsEditable 同时持有 create 与 update
func (p *StagePolicy) IsEditable(stage models.SalesStage) bool {
	return p.CanCreateStage(stage) && p.CanUpdateStage(stage)
}

// Access 阶段访问级别：可编辑、只读（有 read 但不可编辑）或不可访问
func (p *StagePolicy) Access(stage models.SalesStage) string {
	switch {
	case p.IsEditable(stage):
		return StageAccessEditable
	case p.CanReadStage(stage):
		return StageAccessViewOnly
	default:
		return StageAccessNone
	}
}

// GetAccessibleStages 将 8 个阶段划分为可编辑与只读，其余阶段不出现
func (p *StagePolicy) GetAccessibleStages() AccessibleStages {
	out := AccessibleStages{
		Editable: []models.SalesStage{},
		ViewOnly: []models.SalesStage{},
	}
	for _, stage := range models.AllStages() {
		switch p.Access(stage) {
		case StageAccessEditable:
			out.Editable = append(out.Editable, stage)
		case StageAccessViewOnly:
			out.ViewOnly = append(out.ViewOnly, stage)
		}
	}
	return out
}

// Describe 单个阶段的完整访问信息
func (p *StagePolicy) Describe(stage models.SalesStage) StageAccess {
	return StageAccess{
		Stage:     stage,
		Label:     stage.Label(),
		Position:  stage.Position(),
		Access:    p.Access(stage),
		CanCreate: p.CanCreateStage(stage),
		CanRead:   p.CanReadStage(stage),
		CanUpdate: p.CanUpdateStage(stage),
		CanDelete: p.CanDeleteStage(stage),
		CanManage: p.CanManageStage(stage),
	}
}

// DescribeAll 按管道顺序描述所有阶段
func (p *StagePolicy) DescribeAll() []StageAccess {
	stages := models.AllStages()
	out := make([]StageAccess, 0, len(stages))
	for _, s := range stages {
		out = append(out, p.Describe(s))
	}
	return out
}
