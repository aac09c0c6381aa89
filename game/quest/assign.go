package quest

import (
	"context"
	"errors"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// insertAssignments creates one row per employee in the type-dependent
// initial state and records a zero-XP quest_assigned ledger entry each.
func (s *Service) insertAssignments(ctx context.Context, tx *gorm.DB, q *model.Quest, employees []int64, now time.Time) error {
	if len(employees) == 0 {
		return nil
	}
	status := InitialStatus(q.AssignmentType)
	rows := make([]model.UserQuest, len(employees))
	entries := make([]*model.XPHistory, len(employees))
	for i, id := range employees {
		rows[i] = model.UserQuest{EmployeeID: id, QuestID: q.ID, Status: status, AssignedAt: now}
		if status == model.UserQuestInProgress {
			started := now
			rows[i].StartedAt = &started
		}
		entries[i] = &model.XPHistory{
			EmployeeID:  id,
			SourceType:  model.XPSourceQuestAssigned,
			SourceID:    q.ID,
			QuestID:     q.ID,
			Description: "Assigned: " + q.Title,
			CreatedAt:   now,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return apperr.Storage("insert assignments", err)
	}
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Append(ctx, tx, entries...)
}

// replaceAssignments drops every assignment of the quest together with
// its submissions and inserts employees afresh. It returns the inserted
// employees and the file handles to release after commit.
func (s *Service) replaceAssignments(ctx context.Context, tx *gorm.DB, q *model.Quest, employees []int64, now time.Time) ([]int64, []string, error) {
	var subs []model.Submission
	if err := tx.Where("quest_id = ?", q.ID).Find(&subs).Error; err != nil {
		return nil, nil, apperr.Storage("list submissions", err)
	}
	if err := tx.Where("quest_id = ?", q.ID).Delete(&model.Submission{}).Error; err != nil {
		return nil, nil, apperr.Storage("clear submissions", err)
	}
	if err := tx.Where("quest_id = ?", q.ID).Delete(&model.UserQuest{}).Error; err != nil {
		return nil, nil, apperr.Storage("clear assignments", err)
	}
	if err := s.insertAssignments(ctx, tx, q, employees, now); err != nil {
		return nil, nil, err
	}
	return employees, fileHandles(subs), nil
}

// mergeAssignments keeps rows of employees that remain assigned, drops
// the others (with their submissions) and inserts the newcomers.
func (s *Service) mergeAssignments(ctx context.Context, tx *gorm.DB, q *model.Quest, employees []int64, now time.Time) ([]int64, []string, error) {
	var existing []int64
	if err := tx.Model(&model.UserQuest{}).Where("quest_id = ?", q.ID).Pluck("employee_id", &existing).Error; err != nil {
		return nil, nil, apperr.Storage("list assignments", err)
	}
	want := make(map[int64]bool, len(employees))
	for _, id := range employees {
		want[id] = true
	}
	have := make(map[int64]bool, len(existing))
	var removed []int64
	for _, id := range existing {
		have[id] = true
		if !want[id] {
			removed = append(removed, id)
		}
	}
	var added []int64
	for _, id := range employees {
		if !have[id] {
			added = append(added, id)
		}
	}

	var handles []string
	if len(removed) > 0 {
		var subs []model.Submission
		if err := tx.Where("quest_id = ? AND employee_id IN ?", q.ID, removed).Find(&subs).Error; err != nil {
			return nil, nil, apperr.Storage("list submissions", err)
		}
		handles = fileHandles(subs)
		if err := tx.Where("quest_id = ? AND employee_id IN ?", q.ID, removed).Delete(&model.Submission{}).Error; err != nil {
			return nil, nil, apperr.Storage("clear submissions", err)
		}
		if err := tx.Where("quest_id = ? AND employee_id IN ?", q.ID, removed).Delete(&model.UserQuest{}).Error; err != nil {
			return nil, nil, apperr.Storage("clear assignments", err)
		}
	}
	if err := s.insertAssignments(ctx, tx, q, added, now); err != nil {
		return nil, nil, err
	}
	return added, handles, nil
}

// Respond applies an assignee's accept or decline. Accepting moves an
// assigned row to in_progress; declining deletes it and is refused for
// mandatory quests.
func (s *Service) Respond(ctx context.Context, actor identity.Actor, questID int64, action string) (*model.UserQuest, error) {
	if action != ActionAccept && action != ActionDecline {
		return nil, apperr.Validation(apperr.CodeInvalidAction, "action must be accept or decline")
	}
	employeeID, err := s.ids.ActorID(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var uq model.UserQuest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadQuest(tx, questID)
		if err != nil {
			return err
		}
		if !Open(q.Status) {
			return apperr.Validation(apperr.CodeInvalidTransition, "quest is not open")
		}
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("employee_id = ? AND quest_id = ?", employeeID, questID).First(&uq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("assignment", questID)
		}
		if err != nil {
			return apperr.Storage("load assignment", err)
		}

		if action == ActionDecline {
			if q.AssignmentType == model.AssignmentMandatory {
				return apperr.Permission("mandatory quests can't be declined")
			}
			if uq.Status != model.UserQuestAssigned {
				return apperr.Validation(apperr.CodeInvalidTransition, "only assigned quests can be declined")
			}
			res := tx.Where("id = ? AND status = ?", uq.ID, model.UserQuestAssigned).Delete(&model.UserQuest{})
			if res.Error != nil {
				return apperr.Storage("decline assignment", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.Validation(apperr.CodeInvalidTransition, "assignment changed concurrently")
			}
			uq.Status = model.UserQuestDeclined
			return syncStatus(tx, q)
		}

		if err := EnsureTransition(uq.Status, model.UserQuestInProgress); err != nil {
			return err
		}
		res := tx.Model(&model.UserQuest{}).
			Where("id = ? AND status = ?", uq.ID, uq.Status).
			Updates(map[string]any{
				"status":     model.UserQuestInProgress,
				"started_at": gorm.Expr("COALESCE(started_at, ?)", now),
			})
		if res.Error != nil {
			return apperr.Storage("accept assignment", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Validation(apperr.CodeInvalidTransition, "assignment changed concurrently")
		}
		uq.Status = model.UserQuestInProgress
		if uq.StartedAt == nil {
			uq.StartedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("respond to quest", err, zap.Int64("quest_id", questID), zap.Int64("employee_id", employeeID))
	}

	name := hook.AssignmentAccepted
	if action == ActionDecline {
		name = hook.AssignmentDeclined
	}
	s.emit(ctx, &hook.Event{Name: name, QuestID: questID, Actor: string(actor.Canonical()), Employees: []int64{employeeID}})
	return &uq, nil
}
