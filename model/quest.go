package model

import "time"

// AssignmentType decides the initial assignment state and whether an
// assignee may decline.
type AssignmentType string

const (
	AssignmentMandatory AssignmentType = "mandatory"
	AssignmentOptional  AssignmentType = "optional"
)

func (t AssignmentType) IsValid() bool {
	return t == AssignmentMandatory || t == AssignmentOptional
}

// QuestStatus is the quest-level lifecycle state.
type QuestStatus string

const (
	QuestDraft    QuestStatus = "draft"
	QuestActive   QuestStatus = "active"
	QuestAssigned QuestStatus = "assigned"
	QuestInactive QuestStatus = "inactive"
	QuestDeleted  QuestStatus = "deleted"
)

// Quest is a learning task created by a quest lead.
type Quest struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	AssignmentType AssignmentType `gorm:"size:16;not null" json:"assignment_type"`
	Status         QuestStatus    `gorm:"index:idx_quest_status;size:16;not null" json:"status"`
	DueDate        *time.Time     `json:"due_date"`
	XP             int            `gorm:"default:0" json:"xp"`
	CreatedBy      string         `gorm:"index:idx_quest_creator;size:64;not null" json:"created_by"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// QuestSubtask is an ordered checklist line of a quest.
type QuestSubtask struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestID     int64  `gorm:"index:idx_subtask_quest;not null" json:"quest_id"`
	Position    int    `gorm:"not null" json:"position"`
	Description string `gorm:"size:500;not null" json:"description"`
}

// QuestAttachment is a reference file published with a quest.
type QuestAttachment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	QuestID   int64     `gorm:"index:idx_attachment_quest;not null" json:"quest_id"`
	Handle    string    `gorm:"size:255;not null" json:"handle"`
	FileName  string    `gorm:"size:255" json:"file_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Upload records a reference file written through the attachment endpoint.
// A quest may attach it only while it is unclaimed and only on behalf of
// the uploader; the first quest to attach it claims it.
type Upload struct {
	Handle     string     `gorm:"primaryKey;size:255" json:"handle"`
	UploadedBy string     `gorm:"size:64;not null;index" json:"uploaded_by"`
	FileName   string     `gorm:"size:255" json:"file_name"`
	ClaimedBy  *int64     `gorm:"index" json:"claimed_by"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ClaimedAt  *time.Time `json:"claimed_at"`
}

// UserQuestStatus is the per-employee assignment state.
type UserQuestStatus string

const (
	UserQuestAssigned   UserQuestStatus = "assigned"
	UserQuestInProgress UserQuestStatus = "in_progress"
	UserQuestSubmitted  UserQuestStatus = "submitted"
	UserQuestCompleted  UserQuestStatus = "completed"
	UserQuestDeclined   UserQuestStatus = "declined"
	UserQuestMissed     UserQuestStatus = "missed"
)

// UserQuest is one employee's assignment to a quest.
type UserQuest struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeID  int64           `gorm:"uniqueIndex:idx_user_quest;not null" json:"employee_id"`
	QuestID     int64           `gorm:"uniqueIndex:idx_user_quest;index:idx_user_quest_quest;not null" json:"quest_id"`
	Status      UserQuestStatus `gorm:"size:16;not null" json:"status"`
	AssignedAt  time.Time       `json:"assigned_at"`
	StartedAt   *time.Time      `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}
