// Package directory reads employees and group rosters from the database.
// It backs the employee directory and group store used by assignment and
// identity resolution.
package directory

import (
	"context"
	"errors"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"gorm.io/gorm"
)

// Directory is a gorm-backed employee directory and group store.
type Directory struct {
	db *gorm.DB
}

// New creates a Directory.
func New(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// WithTx returns a Directory reading through tx.
func (d *Directory) WithTx(tx *gorm.DB) *Directory {
	return &Directory{db: tx}
}

func (d *Directory) EmployeeByID(ctx context.Context, id int64) (*model.Employee, error) {
	var emp model.Employee
	err := d.db.WithContext(ctx).First(&emp, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("employee", id)
	}
	if err != nil {
		return nil, apperr.Storage("lookup employee", err)
	}
	return &emp, nil
}

// EmployeeByCode matches codes case-insensitively.
func (d *Directory) EmployeeByCode(ctx context.Context, code string) (*model.Employee, error) {
	var emp model.Employee
	err := d.db.WithContext(ctx).Where("LOWER(employee_code) = LOWER(?)", code).First(&emp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("employee", code)
	}
	if err != nil {
		return nil, apperr.Storage("lookup employee", err)
	}
	return &emp, nil
}

// EmployeesByIDs returns the employees among ids that exist, keyed by id.
func (d *Directory) EmployeesByIDs(ctx context.Context, ids []int64) (map[int64]*model.Employee, error) {
	out := make(map[int64]*model.Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var emps []model.Employee
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&emps).Error; err != nil {
		return nil, apperr.Storage("lookup employees", err)
	}
	for i := range emps {
		out[emps[i].ID] = &emps[i]
	}
	return out, nil
}

// ListByRole returns active employees holding one of roles, minus the
// excluded ids.
func (d *Directory) ListByRole(ctx context.Context, roles []string, excluding ...int64) ([]model.Employee, error) {
	q := d.db.WithContext(ctx).Where("role IN ? AND status = ?", roles, model.EmployeeActive)
	if len(excluding) > 0 {
		q = q.Where("id NOT IN ?", excluding)
	}
	var emps []model.Employee
	if err := q.Order("id").Find(&emps).Error; err != nil {
		return nil, apperr.Storage("list employees", err)
	}
	return emps, nil
}

// MembersOf returns the employee ids enrolled in groupID. An unknown group
// is a ReferentialError.
func (d *Directory) MembersOf(ctx context.Context, groupID int64) ([]int64, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&model.Group{}).Where("id = ?", groupID).Count(&n).Error; err != nil {
		return nil, apperr.Storage("lookup group", err)
	}
	if n == 0 {
		return nil, apperr.NotFound("group", groupID)
	}
	var ids []int64
	if err := d.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id = ?", groupID).Order("employee_id").
		Pluck("employee_id", &ids).Error; err != nil {
		return nil, apperr.Storage("list group members", err)
	}
	return ids, nil
}

// GroupOf returns the group employeeID belongs to, or nil.
func (d *Directory) GroupOf(ctx context.Context, employeeID int64) (*model.Group, error) {
	var gm model.GroupMember
	err := d.db.WithContext(ctx).Where("employee_id = ?", employeeID).First(&gm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("lookup membership", err)
	}
	var g model.Group
	if err := d.db.WithContext(ctx).First(&g, gm.GroupID).Error; err != nil {
		return nil, apperr.Storage("lookup group", err)
	}
	return &g, nil
}
