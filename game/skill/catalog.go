package skill

import (
	"context"
	"errors"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"gorm.io/gorm"
)

// Catalog is the skill catalog collaborator.
type Catalog interface {
	SkillExists(ctx context.Context, id int64) (bool, error)
	FindCategory(ctx context.Context, name string) (int64, bool, error)
	CreateCategory(ctx context.Context, name string) (int64, error)
	FindSkill(ctx context.Context, name string, categoryID int64) (int64, bool, error)
	CreateSkill(ctx context.Context, name string, categoryID int64, points []int) (int64, error)
}

// GormCatalog implements Catalog on the skills and skill_categories tables.
type GormCatalog struct {
	db *gorm.DB
}

// NewCatalog creates a GormCatalog. Pass the transaction handle when the
// catalog writes must commit or roll back with a quest.
func NewCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) SkillExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&model.Skill{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperr.Storage("lookup skill", err)
	}
	return n > 0, nil
}

// FindCategory matches names case-insensitively.
func (c *GormCatalog) FindCategory(ctx context.Context, name string) (int64, bool, error) {
	var cat model.SkillCategory
	err := c.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Storage("lookup category", err)
	}
	return cat.ID, true, nil
}

func (c *GormCatalog) CreateCategory(ctx context.Context, name string) (int64, error) {
	cat := model.SkillCategory{Name: name}
	if err := c.db.WithContext(ctx).Create(&cat).Error; err != nil {
		return 0, apperr.Storage("create category", err)
	}
	return cat.ID, nil
}

func (c *GormCatalog) FindSkill(ctx context.Context, name string, categoryID int64) (int64, bool, error) {
	var sk model.Skill
	err := c.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?) AND category_id = ?", name, categoryID).
		Order("id").First(&sk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.Storage("lookup skill", err)
	}
	return sk.ID, true, nil
}

func (c *GormCatalog) CreateSkill(ctx context.Context, name string, categoryID int64, points []int) (int64, error) {
	sk := model.Skill{Name: name, CategoryID: categoryID, Custom: true}
	sk.SetPoints(points)
	if err := c.db.WithContext(ctx).Create(&sk).Error; err != nil {
		return 0, apperr.Storage("create skill", err)
	}
	return sk.ID, nil
}
