package services

import (
	"fmt"

	"crmhub/internal/models"
)

// PermissionDefinition 种子权限定义
type PermissionDefinition struct {
	Action      string
	Resource    string
	Description string
}

// Slug 权限标识
func (d PermissionDefinition) Slug() string {
	return models.BuildSlug(d.Action, d.Resource)
}

// RoleDefinition 种子角色定义
type RoleDefinition struct {
	Name            string
	Description     string
	PermissionSlugs []string
}

var stageActionLabels = map[string]string{
	models.ActionCreate: "Criar",
	models.ActionRead:   "Visualizar",
	models.ActionUpdate: "Editar",
	models.ActionDelete: "Excluir",
}

// SystemPermissions 系统权限目录：32 个阶段权限、3 个特殊权限与资源 CRUD 权限
func SystemPermissions() []PermissionDefinition {
	defs := make([]PermissionDefinition, 0, 64)

	for _, stage := range models.AllStages() {
		for _, action := range models.StageActions {
			defs = append(defs, PermissionDefinition{
				Action:      action,
				Resource:    string(stage),
				Description: fmt.Sprintf("%s negócios na etapa %s", stageActionLabels[action], stage.Label()),
			})
		}
	}

	defs = append(defs,
		PermissionDefinition{models.ActionManage, models.ResourceTeam, "Gerenciar membros da equipe"},
		PermissionDefinition{models.ActionView, models.ResourceAllStages, "Visualizar todas as etapas do funil"},
		PermissionDefinition{models.ActionManage, models.ResourceOrganization, "Gerenciar a organização e seus papéis"},

		PermissionDefinition{models.ActionCreate, models.ResourceClient, "Cadastrar clientes"},
		PermissionDefinition{models.ActionRead, models.ResourceClient, "Visualizar clientes"},
		PermissionDefinition{models.ActionUpdate, models.ResourceClient, "Editar clientes"},
		PermissionDefinition{models.ActionDelete, models.ResourceClient, "Excluir clientes"},
		PermissionDefinition{models.ActionExport, models.ResourceClient, "Exportar clientes"},

		PermissionDefinition{models.ActionCreate, models.ResourceDeal, "Criar negócios"},
		PermissionDefinition{models.ActionRead, models.ResourceDeal, "Visualizar negócios"},
		PermissionDefinition{models.ActionUpdate, models.ResourceDeal, "Editar negócios"},
		PermissionDefinition{models.ActionDelete, models.ResourceDeal, "Excluir negócios"},

		PermissionDefinition{models.ActionCreate, models.ResourceTask, "Criar tarefas"},
		PermissionDefinition{models.ActionRead, models.ResourceTask, "Visualizar tarefas"},
		PermissionDefinition{models.ActionUpdate, models.ResourceTask, "Editar tarefas"},
		PermissionDefinition{models.ActionDelete, models.ResourceTask, "Excluir tarefas"},

		PermissionDefinition{models.ActionCreate, models.ResourceProduct, "Cadastrar produtos"},
		PermissionDefinition{models.ActionRead, models.ResourceProduct, "Visualizar produtos"},
		PermissionDefinition{models.ActionUpdate, models.ResourceProduct, "Editar produtos"},
		PermissionDefinition{models.ActionDelete, models.ResourceProduct, "Excluir produtos"},

		PermissionDefinition{models.ActionCreate, models.ResourceUser, "Cadastrar usuários"},
		PermissionDefinition{models.ActionRead, models.ResourceUser, "Visualizar usuários"},
		PermissionDefinition{models.ActionUpdate, models.ResourceUser, "Editar usuários"},
		PermissionDefinition{models.ActionDelete, models.ResourceUser, "Excluir usuários"},

		PermissionDefinition{models.ActionView, models.ResourceReport, "Visualizar relatórios"},
		PermissionDefinition{models.ActionExport, models.ResourceReport, "Exportar relatórios"},
	)
	return defs
}

func stageSlugs(action string, stages ...models.SalesStage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.Slug(action))
	}
	return out
}

func slugs(action string, resources ...string) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, models.BuildSlug(action, r))
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// SystemRoles 5 个系统角色及其权限
func SystemRoles() []RoleDefinition {
	all := models.AllStages()
	const (
		s1 = models.StageLead
		s2 = models.StageQualification
		s3 = models.StageProposal
		s4 = models.StageNegotiation
		s5 = models.StageClosing
		s6 = models.StageContract
		s7 = models.StagePayment
		s8 = models.StagePostSale
	)

	resourceCRUD := []string{models.ResourceClient, models.ResourceDeal, models.ResourceTask, models.ResourceProduct, models.ResourceUser}

	return []RoleDefinition{
		{
			Name:        models.RoleGerenteGeral,
			Description: "Dono da conta, acesso administrativo completo",
			PermissionSlugs: concat(
				[]string{models.PermManageTeam, models.PermViewAllStages, models.PermManageOrganization},
				slugs(models.ActionCreate, resourceCRUD...),
				slugs(models.ActionRead, resourceCRUD...),
				slugs(models.ActionUpdate, resourceCRUD...),
				slugs(models.ActionDelete, resourceCRUD...),
				slugs(models.ActionExport, models.ResourceClient, models.ResourceReport),
				slugs(models.ActionView, models.ResourceReport),
				stageSlugs(models.ActionRead, all...),
			),
		},
		{
			Name:        models.RoleAdministrativo,
			Description: "Backoffice: contratos, pagamentos e produtos",
			PermissionSlugs: concat(
				slugs(models.ActionRead, models.ResourceClient, models.ResourceDeal),
				slugs(models.ActionCreate, models.ResourceProduct),
				slugs(models.ActionRead, models.ResourceProduct),
				slugs(models.ActionUpdate, models.ResourceProduct),
				slugs(models.ActionView, models.ResourceReport),
				slugs(models.ActionExport, models.ResourceReport),
				stageSlugs(models.ActionRead, s6, s7),
				stageSlugs(models.ActionUpdate, s6, s7),
			),
		},
		{
			Name:        models.RolePosVenda,
			Description: "Atendimento pós-venda",
			PermissionSlugs: concat(
				models.StagePermissionSlugs(s8),
				stageSlugs(models.ActionRead, s7),
				slugs(models.ActionRead, models.ResourceClient),
				slugs(models.ActionUpdate, models.ResourceClient),
				slugs(models.ActionCreate, models.ResourceTask),
				slugs(models.ActionRead, models.ResourceTask),
				slugs(models.ActionUpdate, models.ResourceTask),
				slugs(models.ActionRead, models.ResourceDeal),
				slugs(models.ActionView, models.ResourceReport),
			),
		},
		{
			Name:        models.RoleGerenteDeVendas,
			Description: "Gestão do time comercial e das etapas de venda",
			PermissionSlugs: concat(
				models.StagePermissionSlugs(s1),
				models.StagePermissionSlugs(s2),
				models.StagePermissionSlugs(s3),
				models.StagePermissionSlugs(s4),
				models.StagePermissionSlugs(s5),
				stageSlugs(models.ActionRead, s6, s7, s8),
				[]string{models.PermViewAllStages, models.PermManageTeam},
				slugs(models.ActionRead, models.ResourceClient),
				slugs(models.ActionUpdate, models.ResourceClient),
				slugs(models.ActionCreate, models.ResourceDeal),
				slugs(models.ActionRead, models.ResourceDeal),
				slugs(models.ActionUpdate, models.ResourceDeal),
				slugs(models.ActionView, models.ResourceReport),
			),
		},
		{
			Name:        models.RoleVendedor,
			Description: "Vendedor: conduz negócios nas etapas comerciais",
			PermissionSlugs: concat(
				stageSlugs(models.ActionCreate, s1, s2, s3, s4, s8),
				stageSlugs(models.ActionUpdate, s1, s2, s3, s4, s8),
				stageSlugs(models.ActionRead, s5, s6, s7),
				slugs(models.ActionCreate, models.ResourceClient),
				slugs(models.ActionRead, models.ResourceClient),
				slugs(models.ActionUpdate, models.ResourceClient),
				slugs(models.ActionCreate, models.ResourceTask),
			),
		},
	}
}
