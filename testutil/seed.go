package testutil

import (
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SeedEmployee inserts an active employee with the given code and role.
func SeedEmployee(t *testing.T, db *gorm.DB, code, role string) *model.Employee {
	t.Helper()
	emp := &model.Employee{EmployeeCode: code, Name: code, Role: role, Status: model.EmployeeActive}
	require.NoError(t, db.Create(emp).Error, "SeedEmployee")
	return emp
}

// SeedGroup inserts a group and enrolls the given employees.
func SeedGroup(t *testing.T, db *gorm.DB, name string, members ...*model.Employee) *model.Group {
	t.Helper()
	g := &model.Group{Name: name}
	require.NoError(t, db.Create(g).Error, "SeedGroup")
	for _, m := range members {
		require.NoError(t, db.Create(&model.GroupMember{GroupID: g.ID, EmployeeID: m.ID}).Error, "SeedGroup: member")
	}
	return g
}

// SeedSkill inserts a catalog skill (and its category when missing) with
// the 5/10/15/20/25 tier table.
func SeedSkill(t *testing.T, db *gorm.DB, category, name string) *model.Skill {
	t.Helper()
	var cat model.SkillCategory
	require.NoError(t, db.Where(model.SkillCategory{Name: category}).FirstOrCreate(&cat).Error, "SeedSkill: category")
	sk := &model.Skill{Name: name, CategoryID: cat.ID}
	sk.SetPoints([]int{5, 10, 15, 20, 25})
	require.NoError(t, db.Create(sk).Error, "SeedSkill")
	return sk
}
