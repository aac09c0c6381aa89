package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is one recorded workflow event. Actor is either an employee code
// or an account id, never both.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Event     string         `gorm:"index:idx_audit_event;size:64;not null" json:"event"`
	QuestID   *int64         `gorm:"index:idx_audit_quest" json:"quest_id"`
	ActorCode string         `gorm:"index:idx_audit_actor;size:64" json:"actor_code,omitempty"`
	AccountID *int64         `json:"account_id,omitempty"`
	Employees datatypes.JSON `json:"employees"`
	Data      datatypes.JSON `json:"data"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	ClientIP  string         `gorm:"size:45" json:"client_ip"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
