package quest

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/assignment"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/skill"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"gorm.io/gorm"
)

const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 2000
	MaxSubtaskLen     = 500
)

// dueLayouts are the accepted due date formats, most specific last.
var dueLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateTime,
	time.RFC3339,
}

// Attachment is a reference file already written to the blob store.
type Attachment struct {
	Handle   string `json:"handle"`
	FileName string `json:"file_name"`
}

// Request carries the editable fields of a quest. Skills and Publish are
// only read by Create.
type Request struct {
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	AssignmentType model.AssignmentType `json:"assignment_type"`
	DueDate        string               `json:"due_date"`
	XP             *int                 `json:"xp"`
	Skills         []skill.Selection    `json:"skills"`
	Subtasks       []string             `json:"subtasks"`
	Attachments    []Attachment         `json:"attachments"`
	Assign         assignment.Request   `json:"assign"`
	Publish        bool                 `json:"publish"`
}

type fields struct {
	title       string
	description string
	due         *time.Time
	xp          int
	subtasks    []string
}

func (s *Service) validate(req *Request) (fields, error) {
	var f fields
	f.title = strings.TrimSpace(req.Title)
	if f.title == "" {
		return f, apperr.Validation(apperr.CodeTitleRequired, "title is required")
	}
	if utf8.RuneCountInString(f.title) > MaxTitleLen {
		return f, apperr.Validation(apperr.CodeTitleTooLong, "title must be at most %d characters", MaxTitleLen)
	}
	f.description = strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(f.description) > MaxDescriptionLen {
		return f, apperr.Validation(apperr.CodeDescriptionTooLong, "description must be at most %d characters", MaxDescriptionLen)
	}
	if !req.AssignmentType.IsValid() {
		return f, apperr.Validation(apperr.CodeInvalidAssignmentType, "assignment type must be mandatory or optional")
	}
	due, err := ParseDueDate(req.DueDate)
	if err != nil {
		return f, err
	}
	f.due = due

	f.xp = s.cfg.DefaultQuestXP
	if req.XP != nil {
		if *req.XP < 0 {
			return f, apperr.Validation(apperr.CodeInvalidXP, "xp cannot be negative")
		}
		f.xp = *req.XP
	}

	for _, st := range req.Subtasks {
		st = strings.TrimSpace(st)
		if st == "" {
			continue
		}
		if utf8.RuneCountInString(st) > MaxSubtaskLen {
			return f, apperr.Validation(apperr.CodeSubtaskTooLong, "subtasks must be at most %d characters", MaxSubtaskLen)
		}
		f.subtasks = append(f.subtasks, st)
	}
	for _, a := range req.Attachments {
		if strings.TrimSpace(a.Handle) == "" {
			return f, apperr.Validation(apperr.CodeInvalidSubmission, "attachment handle is required")
		}
	}
	return f, nil
}

// ParseDueDate parses an optional due date. Empty means no due date. Times
// are normalized to UTC; a date without a time is midnight UTC.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation(apperr.CodeInvalidDueDate, "due date %q is not a valid date", raw)
}

func replaceSubtasks(tx *gorm.DB, questID int64, subtasks []string) error {
	if err := tx.Where("quest_id = ?", questID).Delete(&model.QuestSubtask{}).Error; err != nil {
		return apperr.Storage("clear subtasks", err)
	}
	if len(subtasks) == 0 {
		return nil
	}
	rows := make([]model.QuestSubtask, len(subtasks))
	for i, st := range subtasks {
		rows[i] = model.QuestSubtask{QuestID: questID, Position: i + 1, Description: st}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return apperr.Storage("insert subtasks", err)
	}
	return nil
}
