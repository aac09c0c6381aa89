package model

import "time"

const (
	RoleSkillAssociate = "skill_associate"
	RoleQuestLead      = "quest_lead"
	RoleAdmin          = "admin"
)

const (
	EmployeeDisabled = 0
	EmployeeActive   = 1
)

// Employee is a directory entry. ID is the numeric account id; EmployeeCode
// is the human-facing code (e.g. "EMP-0042").
type Employee struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeCode string    `gorm:"uniqueIndex;size:64;not null" json:"employee_code"`
	Name         string    `gorm:"size:128;not null" json:"name"`
	Role         string    `gorm:"index:idx_employee_role;size:32;not null" json:"role"`
	Status       int       `gorm:"default:1" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Group is a named roster of employees.
type Group struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// GroupMember links an employee to its group. An employee belongs to at
// most one group at a time.
type GroupMember struct {
	GroupID    int64     `gorm:"index:idx_group_member;not null" json:"group_id"`
	EmployeeID int64     `gorm:"primaryKey;autoIncrement:false" json:"employee_id"`
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joined_at"`
}
