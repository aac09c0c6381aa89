package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	XPSourceQuestSubmit   = "quest_submit"
	XPSourceQuestComplete = "quest_complete"
	XPSourceQuestReview   = "quest_review"
	XPSourceQuestAssigned = "quest_assigned"
)

// XPHistory is an append-only ledger row. An employee's total XP is the
// sum of its rows.
type XPHistory struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeID  int64          `gorm:"index:idx_xp_employee;not null" json:"employee_id"`
	XPChange    int            `gorm:"not null" json:"xp_change"`
	SourceType  string         `gorm:"size:32;not null" json:"source_type"`
	SourceID    int64          `gorm:"not null" json:"source_id"`
	QuestID     int64          `gorm:"index:idx_xp_quest" json:"quest_id"`
	Description string         `gorm:"size:255" json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_xp_created" json:"created_at"`
}
