package model

import "time"

type SubmissionType string

const (
	SubmissionFile SubmissionType = "file"
	SubmissionLink SubmissionType = "link"
)

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is the single active piece of evidence for an
// (employee, quest) pair. Payload is a blob handle for files or the URL
// for links.
type Submission struct {
	ID           int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeID   int64            `gorm:"uniqueIndex:idx_submission_pair;not null" json:"employee_id"`
	QuestID      int64            `gorm:"uniqueIndex:idx_submission_pair;index:idx_submission_quest;not null" json:"quest_id"`
	Type         SubmissionType   `gorm:"size:8;not null" json:"type"`
	Payload      string           `gorm:"size:1024;not null" json:"payload"`
	FileName     string           `gorm:"size:255" json:"file_name,omitempty"`
	Status       SubmissionStatus `gorm:"size:16;not null" json:"status"`
	Feedback     string           `gorm:"type:text" json:"feedback"`
	ReviewedBy   string           `gorm:"size:64" json:"reviewed_by"`
	AdditionalXP int              `gorm:"default:0" json:"additional_xp"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	ReviewedAt   *time.Time       `json:"reviewed_at"`
}
