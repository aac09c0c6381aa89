// Package skill validates and materializes the skills attached to a quest
// and searches the skill catalog.
package skill

import (
	"context"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"go.uber.org/zap"
)

const (
	MinTier = 1
	MaxTier = 5

	maxNameLen = 100
)

// CustomSkill asks for a new catalog entry created on the fly.
type CustomSkill struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Selection is one requested skill: either an existing catalog id or a
// custom marker.
type Selection struct {
	SkillID int64        `json:"skill_id,omitempty"`
	Custom  *CustomSkill `json:"custom,omitempty"`
	Tier    int          `json:"tier,omitempty"`
}

// Resolved is a selection materialized onto a catalog id.
type Resolved struct {
	SkillID int64
	Tier    int
}

// Selector turns selections into catalog skill ids.
type Selector struct {
	maxCount    int
	points      []int
	defaultTier int
	dedupe      bool
	logger      *zap.Logger
}

// NewSelector creates a Selector from the quest tunables.
func NewSelector(cfg config.QuestConfig, logger *zap.Logger) *Selector {
	def := config.DefaultQuest()
	s := &Selector{
		maxCount:    cfg.MaxSkills,
		points:      cfg.CustomSkillPoints,
		defaultTier: cfg.DefaultCustomTier,
		dedupe:      cfg.DedupeCustomSkills,
		logger:      logger,
	}
	if s.maxCount <= 0 {
		s.maxCount = def.MaxSkills
	}
	if len(s.points) != MaxTier {
		s.points = def.CustomSkillPoints
	}
	if s.defaultTier < MinTier || s.defaultTier > MaxTier {
		s.defaultTier = def.DefaultCustomTier
	}
	return s
}

// Validate checks selections without touching the catalog.
func (s *Selector) Validate(selections []Selection) error {
	if len(selections) == 0 {
		return apperr.Validation(apperr.CodeNoSkillsSelected, "select at least one skill")
	}
	if len(selections) > s.maxCount {
		return apperr.Validation(apperr.CodeTooManySkills, "at most %d skills may be selected", s.maxCount)
	}
	seen := make(map[int64]bool, len(selections))
	for _, sel := range selections {
		if sel.Custom != nil {
			name := strings.TrimSpace(sel.Custom.Name)
			cat := strings.TrimSpace(sel.Custom.Category)
			if name == "" || cat == "" {
				return apperr.Validation(apperr.CodeInvalidSkill, "custom skills need a name and a category")
			}
			if len(name) > maxNameLen || len(cat) > maxNameLen {
				return apperr.Validation(apperr.CodeInvalidSkill, "skill and category names are limited to %d characters", maxNameLen)
			}
			if sel.Tier != 0 && (sel.Tier < MinTier || sel.Tier > MaxTier) {
				return apperr.Validation(apperr.CodeInvalidTier, "tier must be between %d and %d", MinTier, MaxTier)
			}
			continue
		}
		if sel.SkillID <= 0 {
			return apperr.Validation(apperr.CodeInvalidSkill, "skill id is required")
		}
		if sel.Tier < MinTier || sel.Tier > MaxTier {
			return apperr.Validation(apperr.CodeInvalidTier, "tier must be between %d and %d", MinTier, MaxTier)
		}
		if seen[sel.SkillID] {
			return apperr.Validation(apperr.CodeInvalidSkill, "skill %d is selected twice", sel.SkillID)
		}
		seen[sel.SkillID] = true
	}
	return nil
}

// Resolve validates selections, creates catalog rows for custom markers
// and returns one (skill id, tier) per selection in request order.
// Categories are find-or-create; custom skills are created anew for every
// request unless dedupe is configured, in which case an existing skill of
// the same name in the same category is reused.
func (s *Selector) Resolve(ctx context.Context, cat Catalog, selections []Selection) ([]Resolved, error) {
	if err := s.Validate(selections); err != nil {
		return nil, err
	}
	out := make([]Resolved, 0, len(selections))
	used := make(map[int64]bool, len(selections))
	for _, sel := range selections {
		if sel.Custom == nil {
			ok, err := cat.SkillExists(ctx, sel.SkillID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperr.NotFound("skill", sel.SkillID)
			}
			used[sel.SkillID] = true
			out = append(out, Resolved{SkillID: sel.SkillID, Tier: sel.Tier})
			continue
		}

		id, err := s.materialize(ctx, cat, sel.Custom)
		if err != nil {
			return nil, err
		}
		if used[id] {
			return nil, apperr.Validation(apperr.CodeInvalidSkill, "skill %q is selected twice", sel.Custom.Name)
		}
		used[id] = true
		tier := sel.Tier
		if tier == 0 {
			tier = s.defaultTier
		}
		out = append(out, Resolved{SkillID: id, Tier: tier})
	}
	return out, nil
}

func (s *Selector) materialize(ctx context.Context, cat Catalog, c *CustomSkill) (int64, error) {
	name := strings.TrimSpace(c.Name)
	category := strings.TrimSpace(c.Category)

	catID, found, err := cat.FindCategory(ctx, category)
	if err != nil {
		return 0, err
	}
	if !found {
		if catID, err = cat.CreateCategory(ctx, category); err != nil {
			return 0, err
		}
	}

	if s.dedupe {
		id, found, err := cat.FindSkill(ctx, name, catID)
		if err != nil {
			return 0, err
		}
		if found {
			return id, nil
		}
	}

	id, err := cat.CreateSkill(ctx, name, catID, s.points)
	if err != nil {
		return 0, err
	}
	s.logger.Info("custom skill created",
		zap.Int64("skill_id", id),
		zap.String("name", name),
		zap.Int64("category_id", catID))
	return id, nil
}
