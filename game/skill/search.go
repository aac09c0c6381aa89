package skill

import (
	"context"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/sahilm/fuzzy"
	"gorm.io/gorm"
)

const defaultSearchLimit = 20

// Entry is a catalog skill with its category name.
type Entry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Points   [5]int `json:"points"`
	Custom   bool   `json:"custom"`
}

// entries implements fuzzy.Source over "category name" strings.
type entries []Entry

func (e entries) String(i int) string { return strings.ToLower(e[i].Category + " " + e[i].Name) }
func (e entries) Len() int            { return len(e) }

// Search looks up catalog skills for the quest editor's skill picker.
type Search struct {
	db *gorm.DB
}

// NewSearch creates a Search.
func NewSearch(db *gorm.DB) *Search {
	return &Search{db: db}
}

// Find returns catalog skills matching query, best first. An empty query
// lists the catalog alphabetically.
func (s *Search) Find(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var rows []struct {
		model.Skill
		CategoryName string
	}
	err := s.db.WithContext(ctx).Table("skills").
		Select("skills.*, skill_categories.name AS category_name").
		Joins("JOIN skill_categories ON skill_categories.id = skills.category_id").
		Order("skills.name, skills.id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Storage("list skills", err)
	}

	all := make(entries, len(rows))
	for i, r := range rows {
		all[i] = Entry{
			ID:       r.ID,
			Name:     r.Name,
			Category: r.CategoryName,
			Points:   [5]int{r.Tier1, r.Tier2, r.Tier3, r.Tier4, r.Tier5},
			Custom:   r.Custom,
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(all) > limit {
			all = all[:limit]
		}
		return all, nil
	}

	matches := fuzzy.FindFrom(q, all)
	out := make([]Entry, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, all[m.Index])
	}
	return out, nil
}
