// Package reconcile flips overdue assignments to missed. It runs lazily
// when a creator reads quest data and optionally on a ticker.
package reconcile

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

// endOfDay is added to due dates that carry no time of day.
const endOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second

// Reconciler marks assignments missed once their quest is past due.
type Reconciler struct {
	db     *gorm.DB
	hooks  *hook.Center
	logger *zap.Logger

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// New creates a Reconciler. hooks may be nil.
func New(db *gorm.DB, hooks *hook.Center, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		db:     db,
		hooks:  hooks,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// EffectiveDue is the instant after which an assignment counts as missed.
// A due date at exactly midnight means the whole day.
func EffectiveDue(due time.Time) time.Time {
	due = due.UTC()
	if due.Hour() == 0 && due.Minute() == 0 && due.Second() == 0 && due.Nanosecond() == 0 {
		return due.Add(endOfDay)
	}
	return due
}

// Reconcile marks every assigned or in-progress assignment of questID
// that has no submission as missed, if the quest is past its effective
// due instant. It returns the number of rows changed; a second run
// changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, questID int64) (int64, error) {
	var q model.Quest
	err := r.db.WithContext(ctx).First(&q, questID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, apperr.NotFound("quest", questID)
	}
	if err != nil {
		return 0, apperr.Storage("load quest", err)
	}
	return r.reconcile(ctx, &q)
}

func (r *Reconciler) reconcile(ctx context.Context, q *model.Quest) (int64, error) {
	if q.DueDate == nil || q.Status == model.QuestDraft {
		return 0, nil
	}
	now := r.Now()
	if !now.After(EffectiveDue(*q.DueDate)) {
		return 0, nil
	}

	var missed []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := r.pending(tx, q.ID).Clauses(clause.Locking{Strength: "UPDATE"}).
			Pluck("user_quests.employee_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := r.pending(tx, q.ID).Where("user_quests.employee_id IN ?", ids).
			Update("status", model.UserQuestMissed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == int64(len(ids)) {
			missed = ids
			return nil
		}
		return tx.Model(&model.UserQuest{}).
			Where("quest_id = ? AND employee_id IN ? AND status = ?", q.ID, ids, model.UserQuestMissed).
			Pluck("employee_id", &missed).Error
	})
	if err != nil {
		r.logger.Error("reconcile failed", zap.Int64("quest_id", q.ID), zap.Error(err))
		return 0, apperr.Storage("reconcile quest", err)
	}
	if len(missed) == 0 {
		return 0, nil
	}

	r.logger.Info("assignments missed",
		zap.Int64("quest_id", q.ID),
		zap.Int("count", len(missed)),
		zap.Time("due", EffectiveDue(*q.DueDate)))
	if r.hooks != nil {
		_ = r.hooks.Trigger(ctx, &hook.Event{Name: hook.AssignmentMissed, QuestID: q.ID, Actor: "system",
			Employees: missed, At: now})
	}
	return int64(len(missed)), nil
}

// pending selects the assignments of questID that may still be missed.
func (r *Reconciler) pending(tx *gorm.DB, questID int64) *gorm.DB {
	submitted := tx.Session(&gorm.Session{NewDB: true}).Model(&model.Submission{}).Select("1").
		Where("submissions.employee_id = user_quests.employee_id AND submissions.quest_id = user_quests.quest_id")
	return tx.Model(&model.UserQuest{}).
		Where("user_quests.quest_id = ? AND user_quests.status IN ?", questID,
			[]model.UserQuestStatus{model.UserQuestAssigned, model.UserQuestInProgress}).
		Where("NOT EXISTS (?)", submitted)
}

// ReconcileAll reconciles every published quest whose due date has
// passed. Failures on one quest are logged and the sweep continues.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int64, error) {
	var quests []model.Quest
	err := r.db.WithContext(ctx).
		Where("due_date IS NOT NULL AND due_date <= ? AND status <> ?", r.Now(), model.QuestDraft).
		Order("id").Find(&quests).Error
	if err != nil {
		return 0, apperr.Storage("list overdue quests", err)
	}

	var total int64
	for i := range quests {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := r.reconcile(ctx, &quests[i])
		if err != nil {
			continue
		}
		total += n
	}
	if total > 0 {
		r.logger.Info("reconcile sweep finished", zap.Int("quests", len(quests)), zap.Int64("missed", total))
	}
	return total, nil
}

// ListMissed returns the employees who missed questID, reconciling first.
// Only the quest creator or an admin may list them.
func (r *Reconciler) ListMissed(ctx context.Context, actor identity.Actor, questID int64) ([]model.Employee, error) {
	db := r.db.WithContext(ctx)
	var q model.Quest
	err := db.First(&q, questID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("quest", questID)
	}
	if err != nil {
		return nil, apperr.Storage("load quest", err)
	}
	if !actor.Is(q.CreatedBy) && actor.Role != model.RoleAdmin {
		return nil, apperr.Permission("only the quest creator may list missed assignments")
	}
	if _, err := r.reconcile(ctx, &q); err != nil {
		return nil, err
	}

	var emps []model.Employee
	err = db.Joins("JOIN user_quests ON user_quests.employee_id = employees.id").
		Where("user_quests.quest_id = ? AND user_quests.status = ?", questID, model.UserQuestMissed).
		Order("employees.employee_code").Find(&emps).Error
	if err != nil {
		return nil, apperr.Storage("list missed", err)
	}
	return emps, nil
}
