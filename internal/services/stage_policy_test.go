package services

import (
	"context"
	"testing"

	"crmhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func permsOf(slugs ...string) *models.UserPermissions {
	up := &models.UserPermissions{Permissions: []models.PermissionInfo{}}
	for _, s := range slugs {
		up.Permissions = append(up.Permissions, models.PermissionInfo{Slug: s})
	}
	return up
}

func TestStagePolicy_SystemRoles(t *testing.T) {
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
	none := []models.SalesStage{}

	tests := []struct {
		role     string
		editable []models.SalesStage
		viewOnly []models.SalesStage
	}{
		{models.RoleVendedor, []models.SalesStage{s1, s2, s3, s4, s8}, []models.SalesStage{s5, s6, s7}},
		{models.RoleGerenteDeVendas, []models.SalesStage{s1, s2, s3, s4, s5}, []models.SalesStage{s6, s7, s8}},
		{models.RolePosVenda, []models.SalesStage{s8}, []models.SalesStage{s7}},
		{models.RoleAdministrativo, none, []models.SalesStage{s6, s7}},
		{models.RoleGerenteGeral, none, models.AllStages()},
	}

	f := newFixture(t)
	ctx := context.Background()
	for i, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			u := f.member(t, string(rune('a'+i))+"@acme.test", tt.role)
			got := f.resolver.StagePolicy(ctx, u.ID, f.org.ID).GetAccessibleStages()
			assert.Equal(t, tt.editable, got.Editable)
			assert.Equal(t, tt.viewOnly, got.ViewOnly)
		})
	}
}

func TestStagePolicy_Vendedor(t *testing.T) {
	f := newFixture(t)
	u := f.member(t, "vendedor@acme.test", models.RoleVendedor)
	p := f.resolver.StagePolicy(context.Background(), u.ID, f.org.ID)

	assert.True(t, p.CanCreateStage(models.StageLead))
	assert.True(t, p.CanUpdateStage(models.StageLead))
	assert.False(t, p.CanReadStage(models.StageLead))
	assert.False(t, p.CanManageStage(models.StageLead))
	assert.True(t, p.IsEditable(models.StageLead))

	assert.True(t, p.CanReadStage(models.StageClosing))
	assert.False(t, p.CanDeleteStage(models.StageClosing))
	assert.Equal(t, StageAccessViewOnly, p.Access(models.StageClosing))

	assert.Equal(t, StageAccess{
		Stage:     models.StagePostSale,
		Label:     "Pós-Venda",
		Position:  8,
		Access:    StageAccessEditable,
		CanCreate: true,
		CanUpdate: true,
	}, p.Describe(models.StagePostSale))
}

func TestStagePolicy_AccessLevels(t *testing.T) {
	tests := []struct {
		name  string
		perms *models.UserPermissions
		want  string
	}{
		{"nil permissions", nil, StageAccessNone},
		{"empty", permsOf(), StageAccessNone},
		{"read only", permsOf("read:stage_3"), StageAccessViewOnly},
		{"create without update", permsOf("create:stage_3"), StageAccessNone},
		{"create without update but read", permsOf("create:stage_3", "read:stage_3"), StageAccessViewOnly},
		{"update without create", permsOf("update:stage_3", "read:stage_3"), StageAccessViewOnly},
		{"create and update", permsOf("create:stage_3", "update:stage_3"), StageAccessEditable},
		{"all four", permsOf(models.StagePermissionSlugs(models.StageProposal)...), StageAccessEditable},
		{"other stage only", permsOf("create:stage_4", "update:stage_4", "read:stage_4"), StageAccessNone},
		{"view all stages is not a stage grant", permsOf(models.PermViewAllStages), StageAccessNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewStagePolicy(tt.perms).Access(models.StageProposal))
		})
	}
}

func TestStagePolicy_ManageRequiresThreeActions(t *testing.T) {
	p := NewStagePolicy(permsOf("create:stage_2", "update:stage_2", "delete:stage_2"))
	assert.True(t, p.CanManageStage(models.StageQualification))
	assert.False(t, p.CanReadStage(models.StageQualification))

	p = NewStagePolicy(permsOf("create:stage_2", "update:stage_2", "read:stage_2"))
	assert.False(t, p.CanManageStage(models.StageQualification))
}

func TestStagePolicy_NoMembershipOrUnknownStage(t *testing.T) {
	p := NewStagePolicy(nil)
	got := p.GetAccessibleStages()
	assert.NotNil(t, got.Editable)
	assert.NotNil(t, got.ViewOnly)
	assert.Empty(t, got.Editable)
	assert.Empty(t, got.ViewOnly)

	all := p.DescribeAll()
	require.Len(t, all, models.StageCount)
	for i, s := range all {
		assert.Equal(t, i+1, s.Position)
		assert.Equal(t, StageAccessNone, s.Access)
	}

	full := NewStagePolicy(permsOf("create:stage_9", "update:stage_9", "read:stage_9"))
	assert.Equal(t, StageAccessNone, full.Access(models.SalesStage("stage_9")))
	assert.False(t, full.CanReadStage(models.SalesStage("stage_9")))
}
