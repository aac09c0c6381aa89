package quest

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SkillView is a quest skill with its catalog name and the points its
// tier is worth.
type SkillView struct {
	SkillID int64  `json:"skill_id"`
	Name    string `json:"name"`
	Tier    int    `json:"tier"`
	Points  int    `json:"points"`
}

// Detail is a quest with everything attached to it. Assignments is only
// filled for the creator; Mine only for an assignee.
type Detail struct {
	Quest       model.Quest             `json:"quest"`
	Skills      []SkillView             `json:"skills"`
	Subtasks    []model.QuestSubtask    `json:"subtasks"`
	Attachments []model.QuestAttachment `json:"attachments"`
	Assignments []model.UserQuest       `json:"assignments,omitempty"`
	Mine        *model.UserQuest        `json:"mine,omitempty"`
}

// Assignment is one of an employee's quests.
type Assignment struct {
	model.UserQuest
	Quest model.Quest `json:"quest"`
}

// Get returns the quest as seen by actor. The creator's view reconciles
// missed assignments first; assignees see published quests they hold;
// admins see everything.
func (s *Service) Get(ctx context.Context, actor identity.Actor, questID int64) (*Detail, error) {
	db := s.db.WithContext(ctx)
	q, err := loadQuest(db, questID)
	if err != nil {
		return nil, err
	}

	d := &Detail{}
	creator := actor.Is(q.CreatedBy)
	if creator && s.reconciler != nil {
		if _, err := s.reconciler.Reconcile(ctx, questID); err != nil {
			return nil, s.fail("reconcile quest", err, zap.Int64("quest_id", questID))
		}
		if q, err = loadQuest(db, questID); err != nil {
			return nil, err
		}
	}
	d.Quest = *q

	switch {
	case creator || actor.Role == model.RoleAdmin:
		if err := db.Where("quest_id = ?", questID).Order("employee_id").Find(&d.Assignments).Error; err != nil {
			return nil, apperr.Storage("list assignments", err)
		}
	default:
		employeeID, err := s.ids.ActorID(ctx, actor)
		if err != nil {
			return nil, apperr.Permission("quest is not assigned to you")
		}
		var uq model.UserQuest
		err = db.Where("employee_id = ? AND quest_id = ?", employeeID, questID).First(&uq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || q.Status == model.QuestDraft {
			return nil, apperr.Permission("quest is not assigned to you")
		}
		if err != nil {
			return nil, apperr.Storage("load assignment", err)
		}
		d.Mine = &uq
	}

	var rows []struct {
		model.Skill
		TierLevel int
	}
	err = db.Table("quest_skills").
		Select("skills.*, quest_skills.tier_level").
		Joins("JOIN skills ON skills.id = quest_skills.skill_id").
		Where("quest_skills.quest_id = ?", questID).
		Order("skills.name").Scan(&rows).Error
	if err != nil {
		return nil, apperr.Storage("list quest skills", err)
	}
	for _, r := range rows {
		d.Skills = append(d.Skills, SkillView{SkillID: r.ID, Name: r.Name, Tier: r.TierLevel, Points: r.Points(r.TierLevel)})
	}
	if err := db.Where("quest_id = ?", questID).Order("position").Find(&d.Subtasks).Error; err != nil {
		return nil, apperr.Storage("list subtasks", err)
	}
	if err := db.Where("quest_id = ?", questID).Order("id").Find(&d.Attachments).Error; err != nil {
		return nil, apperr.Storage("list attachments", err)
	}
	return d, nil
}

// ListForEmployee returns the actor's assignments on published quests,
// newest first. status filters when non-empty.
func (s *Service) ListForEmployee(ctx context.Context, actor identity.Actor, status model.UserQuestStatus) ([]Assignment, error) {
	employeeID, err := s.ids.ActorID(ctx, actor)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	q := db.Where("employee_id = ?", employeeID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []model.UserQuest
	if err := q.Order("assigned_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, apperr.Storage("list assignments", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.QuestID
	}
	var quests []model.Quest
	if err := db.Where("id IN ? AND status NOT IN ?", ids,
		[]model.QuestStatus{model.QuestDraft, model.QuestDeleted}).Find(&quests).Error; err != nil {
		return nil, apperr.Storage("list quests", err)
	}
	byID := make(map[int64]model.Quest, len(quests))
	for _, qq := range quests {
		byID[qq.ID] = qq
	}

	out := make([]Assignment, 0, len(rows))
	for _, r := range rows {
		if qq, ok := byID[r.QuestID]; ok {
			out = append(out, Assignment{UserQuest: r, Quest: qq})
		}
	}
	return out, nil
}

// ListCreated returns the quests actor created under any identity form
// earlier versions stored.
func (s *Service) ListCreated(ctx context.Context, actor identity.Actor) ([]model.Quest, error) {
	forms := creatorForms(actor)
	if len(forms) == 0 {
		return nil, nil
	}
	var quests []model.Quest
	err := s.db.WithContext(ctx).Where("LOWER(TRIM(created_by)) IN ?", forms).
		Order("created_at DESC, id DESC").Find(&quests).Error
	if err != nil {
		return nil, apperr.Storage("list quests", err)
	}
	out := quests[:0]
	for _, q := range quests {
		if actor.Is(q.CreatedBy) {
			out = append(out, q)
		}
	}
	return out, nil
}

func creatorForms(a identity.Actor) []string {
	var forms []string
	if code := identity.FromEmployeeCode(a.EmployeeCode); code.Valid() {
		forms = append(forms, string(code), code.EmployeeCode())
	}
	if a.AccountID > 0 {
		n := strconv.FormatInt(a.AccountID, 10)
		forms = append(forms, string(identity.FromAccountID(a.AccountID)), n, "user_"+n)
	}
	for i := range forms {
		forms[i] = strings.ToLower(forms[i])
	}
	return forms
}
