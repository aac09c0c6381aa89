package model

import "time"

// SkillCategory groups catalog skills.
type SkillCategory struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Skill is a catalog entry with one point value per tier (1..5).
type Skill struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"index:idx_skill_name;size:100;not null" json:"name"`
	CategoryID int64     `gorm:"index:idx_skill_category;not null" json:"category_id"`
	Tier1      int       `gorm:"not null" json:"tier_1"`
	Tier2      int       `gorm:"not null" json:"tier_2"`
	Tier3      int       `gorm:"not null" json:"tier_3"`
	Tier4      int       `gorm:"not null" json:"tier_4"`
	Tier5      int       `gorm:"not null" json:"tier_5"`
	Custom     bool      `gorm:"default:false" json:"custom"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Points returns the point value for tier (1..5), or 0 when out of range.
func (s *Skill) Points(tier int) int {
	switch tier {
	case 1:
		return s.Tier1
	case 2:
		return s.Tier2
	case 3:
		return s.Tier3
	case 4:
		return s.Tier4
	case 5:
		return s.Tier5
	}
	return 0
}

// SetPoints copies a five-entry tier table onto the skill.
func (s *Skill) SetPoints(points []int) {
	dst := []*int{&s.Tier1, &s.Tier2, &s.Tier3, &s.Tier4, &s.Tier5}
	for i := range dst {
		if i < len(points) {
			*dst[i] = points[i]
		}
	}
}

// QuestSkill attaches a catalog skill to a quest at a tier level.
type QuestSkill struct {
	QuestID   int64 `gorm:"primaryKey;autoIncrement:false" json:"quest_id"`
	SkillID   int64 `gorm:"primaryKey;autoIncrement:false" json:"skill_id"`
	TierLevel int   `gorm:"not null" json:"tier_level"`
}
