package models

import "strconv"

// SalesStage 销售管道阶段，共 8 个且顺序固定
type SalesStage string

const (
	StageLead          SalesStage = "stage_1"
	StageQualification SalesStage = "stage_2"
	StageProposal      SalesStage = "stage_3"
	StageNegotiation   SalesStage = "stage_4"
	StageClosing       SalesStage = "stage_5"
	StageContract      SalesStage = "stage_6"
	StagePayment       SalesStage = "stage_7"
	StagePostSale      SalesStage = "stage_8"
)

// StageCount 阶段数量
const StageCount = 8

var stageOrder = [StageCount]SalesStage{
	StageLead, StageQualification, StageProposal, StageNegotiation,
	StageClosing, StageContract, StagePayment, StagePostSale,
}

var stageLabels = map[SalesStage]string{
	StageLead:          "Lead",
	StageQualification: "Qualificação",
	StageProposal:      "Proposta",
	StageNegotiation:   "Negociação",
	StageClosing:       "Fechamento",
	StageContract:      "Contrato",
	StagePayment:       "Pagamento",
	StagePostSale:      "Pós-Venda",
}

// StageActions 每个阶段对应的四个操作
var StageActions = [4]string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// AllStages 按管道顺序返回所有阶段
func AllStages() []SalesStage {
	out := make([]SalesStage, StageCount)
	copy(out, stageOrder[:])
	return out
}

// ParseStage 解析 "stage_3" 或 "3"
func ParseStage(v string) (SalesStage, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		v = "stage_" + strconv.Itoa(n)
	}
	s := SalesStage(v)
	return s, s.IsValid()
}

// IsValid 是否为已知阶段
func (s SalesStage) IsValid() bool {
	_, ok := stageLabels[s]
	return ok
}

// Label 阶段显示名称
func (s SalesStage) Label() string {
	return stageLabels[s]
}

// Position 阶段序号，从 1 开始，未知阶段为 0
func (s SalesStage) Position() int {
	for i, st := range stageOrder {
		if st == s {
			return i + 1
		}
	}
	return 0
}

// Slug 阶段权限标识，如 update:stage_4
func (s SalesStage) Slug(action string) string {
	return BuildSlug(action, string(s))
}

// StagePermissionSlugs 阶段的四个权限标识
func StagePermissionSlugs(s SalesStage) []string {
	out := make([]string, 0, len(StageActions))
	for _, a := range StageActions {
		out = append(out, s.Slug(a))
	}
	return out
}
