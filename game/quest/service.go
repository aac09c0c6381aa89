// Package quest owns the quest lifecycle: creation, edits, publication,
// deletion and the per-employee assignment state machine.
package quest

import (
	"context"
	"errors"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/assignment"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/skill"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"github.com/christianebacani/yoonet-quest-system-sub000/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reconciler flips overdue assignments to missed before a creator reads
// them.
type Reconciler interface {
	Reconcile(ctx context.Context, questID int64) (int64, error)
}

// Service handles all quest operations.
type Service struct {
	db         *gorm.DB
	dir        *directory.Directory
	ids        *identity.Resolver
	skills     *skill.Selector
	assign     *assignment.Resolver
	ledger     *xp.Ledger
	blobs      storage.Store
	hooks      *hook.Center
	reconciler Reconciler
	cfg        config.QuestConfig
	logger     *zap.Logger

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// NewService creates a quest Service. blobs and hooks may be nil.
func NewService(db *gorm.DB, ids *identity.Resolver, ledger *xp.Ledger, blobs storage.Store,
	hooks *hook.Center, cfg config.QuestConfig, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		dir:    directory.New(db),
		ids:    ids,
		skills: skill.NewSelector(cfg, logger),
		assign: assignment.NewResolver(ids, cfg.EligibleRoles, logger),
		ledger: ledger,
		blobs:  blobs,
		hooks:  hooks,
		cfg:    cfg,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetReconciler installs the reconciler run before creator reads.
func (s *Service) SetReconciler(r Reconciler) {
	s.reconciler = r
}

// Create validates req and inserts the quest with its skills, subtasks,
// attachments and assignments in one transaction. A request naming
// assignees that all turn out invalid rolls the whole quest back.
func (s *Service) Create(ctx context.Context, actor identity.Actor, req Request) (*model.Quest, error) {
	creator := actor.Canonical()
	if !creator.Valid() {
		return nil, apperr.Permission("unknown actor")
	}
	f, err := s.validate(&req)
	if err != nil {
		return nil, err
	}
	if err := s.skills.Validate(req.Skills); err != nil {
		return nil, err
	}

	now := s.Now()
	q := &model.Quest{
		Title:          f.title,
		Description:    f.description,
		AssignmentType: req.AssignmentType,
		Status:         model.QuestDraft,
		DueDate:        f.due,
		XP:             f.xp,
		CreatedBy:      string(creator),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Publish {
		q.Status = model.QuestActive
	}

	var assigned []int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(q).Error; err != nil {
			return apperr.Storage("create quest", err)
		}
		resolved, err := s.skills.Resolve(ctx, skill.NewCatalog(tx), req.Skills)
		if err != nil {
			return err
		}
		rows := make([]model.QuestSkill, len(resolved))
		for i, r := range resolved {
			rows[i] = model.QuestSkill{QuestID: q.ID, SkillID: r.SkillID, TierLevel: r.Tier}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return apperr.Storage("attach skills", err)
		}
		if err := replaceSubtasks(tx, q.ID, f.subtasks); err != nil {
			return err
		}
		if _, err := replaceAttachments(tx, actor, q.ID, req.Attachments, now); err != nil {
			return err
		}
		if !req.Assign.Empty() {
			ids, err := s.assign.Resolve(ctx, s.dir.WithTx(tx), req.Assign, actor)
			if err != nil {
				return err
			}
			if err := s.insertAssignments(ctx, tx, q, ids, now); err != nil {
				return err
			}
			assigned = ids
		}
		return syncStatus(tx, q)
	})
	if err != nil {
		return nil, s.fail("create quest", err, zap.String("actor", string(creator)))
	}

	s.logger.Info("quest created",
		zap.Int64("quest_id", q.ID),
		zap.String("created_by", q.CreatedBy),
		zap.String("status", string(q.Status)),
		zap.Int("assignees", len(assigned)))
	s.emit(ctx, &hook.Event{Name: hook.QuestCreated, QuestID: q.ID, Actor: q.CreatedBy})
	if Open(q.Status) && len(assigned) > 0 {
		s.emit(ctx, &hook.Event{Name: hook.QuestAssigned, QuestID: q.ID, Actor: q.CreatedBy, Employees: assigned,
			Data: map[string]any{"title": q.Title}})
	}
	return q, nil
}

// Edit updates quest fields, subtasks, attachments and, when the request
// names assignees, the assignment set. Skills are not touched. By default
// the assignment set is fully replaced: every existing assignment and its
// submission is dropped and the new set starts over. With
// preserve_assignments_on_edit, employees that stay assigned keep their
// rows.
func (s *Service) Edit(ctx context.Context, actor identity.Actor, questID int64, req Request) (*model.Quest, error) {
	var (
		q        *model.Quest
		released []string
		added    []int64
	)
	now := s.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = s.loadOwned(tx, actor, questID); err != nil {
			return err
		}
		if q.Status == model.QuestInactive || q.Status == model.QuestDeleted {
			return apperr.Validation(apperr.CodeInvalidTransition, "a %s quest cannot be edited", q.Status)
		}
		f, err := s.validate(&req)
		if err != nil {
			return err
		}

		q.Title, q.Description, q.AssignmentType = f.title, f.description, req.AssignmentType
		q.DueDate, q.XP, q.UpdatedAt = f.due, f.xp, now
		err = tx.Model(q).Select("title", "description", "assignment_type", "due_date", "xp", "updated_at").
			Updates(q).Error
		if err != nil {
			return apperr.Storage("update quest", err)
		}
		if err := replaceSubtasks(tx, q.ID, f.subtasks); err != nil {
			return err
		}
		dropped, err := replaceAttachments(tx, actor, q.ID, req.Attachments, now)
		if err != nil {
			return err
		}
		released = append(released, dropped...)

		if !req.Assign.Empty() {
			ids, err := s.assign.Resolve(ctx, s.dir.WithTx(tx), req.Assign, actor)
			if err != nil {
				return err
			}
			var blobs []string
			if s.cfg.PreserveAssignmentsOnEdit {
				added, blobs, err = s.mergeAssignments(ctx, tx, q, ids, now)
			} else {
				added, blobs, err = s.replaceAssignments(ctx, tx, q, ids, now)
			}
			if err != nil {
				return err
			}
			released = append(released, blobs...)
		}
		if released, err = orphaned(tx, released); err != nil {
			return err
		}
		return syncStatus(tx, q)
	})
	if err != nil {
		return nil, s.fail("edit quest", err, zap.Int64("quest_id", questID))
	}

	s.release(ctx, released)
	s.logger.Info("quest edited", zap.Int64("quest_id", q.ID), zap.Int("new_assignees", len(added)))
	s.emit(ctx, &hook.Event{Name: hook.QuestEdited, QuestID: q.ID, Actor: q.CreatedBy})
	if Open(q.Status) && len(added) > 0 {
		s.emit(ctx, &hook.Event{Name: hook.QuestAssigned, QuestID: q.ID, Actor: q.CreatedBy, Employees: added,
			Data: map[string]any{"title": q.Title}})
	}
	return q, nil
}

// Publish moves a draft quest to active (assigned when it has assignees).
func (s *Service) Publish(ctx context.Context, actor identity.Actor, questID int64) (*model.Quest, error) {
	var (
		q         *model.Quest
		employees []int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = s.loadOwned(tx, actor, questID); err != nil {
			return err
		}
		if q.Status != model.QuestDraft {
			return apperr.Validation(apperr.CodeInvalidTransition, "only draft quests can be published")
		}
		if err := setStatus(tx, q, model.QuestActive, s.Now()); err != nil {
			return err
		}
		if err := syncStatus(tx, q); err != nil {
			return err
		}
		if err := tx.Model(&model.UserQuest{}).Where("quest_id = ?", q.ID).
			Order("employee_id").Pluck("employee_id", &employees).Error; err != nil {
			return apperr.Storage("list assignees", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("publish quest", err, zap.Int64("quest_id", questID))
	}
	s.emit(ctx, &hook.Event{Name: hook.QuestPublished, QuestID: q.ID, Actor: q.CreatedBy})
	if len(employees) > 0 {
		s.emit(ctx, &hook.Event{Name: hook.QuestAssigned, QuestID: q.ID, Actor: q.CreatedBy, Employees: employees,
			Data: map[string]any{"title": q.Title}})
	}
	return q, nil
}

// SaveAsDraft returns a published quest to draft. Quests that already
// received a submission cannot go back.
func (s *Service) SaveAsDraft(ctx context.Context, actor identity.Actor, questID int64) (*model.Quest, error) {
	var q *model.Quest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = s.loadOwned(tx, actor, questID); err != nil {
			return err
		}
		if !Open(q.Status) {
			return apperr.Validation(apperr.CodeInvalidTransition, "only published quests can be saved as draft")
		}
		var n int64
		if err := tx.Model(&model.Submission{}).Where("quest_id = ?", q.ID).Count(&n).Error; err != nil {
			return apperr.Storage("count submissions", err)
		}
		if n > 0 {
			return apperr.Permission("quest already has submissions and cannot return to draft")
		}
		return setStatus(tx, q, model.QuestDraft, s.Now())
	})
	if err != nil {
		return nil, s.fail("save quest as draft", err, zap.Int64("quest_id", questID))
	}
	s.emit(ctx, &hook.Event{Name: hook.QuestDrafted, QuestID: q.ID, Actor: q.CreatedBy})
	return q, nil
}

// Deactivate retires a quest. Inactive quests accept no further work.
func (s *Service) Deactivate(ctx context.Context, actor identity.Actor, questID int64) (*model.Quest, error) {
	var q *model.Quest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = s.loadOwned(tx, actor, questID); err != nil {
			return err
		}
		if q.Status == model.QuestInactive || q.Status == model.QuestDeleted {
			return apperr.Validation(apperr.CodeInvalidTransition, "quest is already %s", q.Status)
		}
		return setStatus(tx, q, model.QuestInactive, s.Now())
	})
	if err != nil {
		return nil, s.fail("deactivate quest", err, zap.Int64("quest_id", questID))
	}
	s.emit(ctx, &hook.Event{Name: hook.QuestDeactivated, QuestID: q.ID, Actor: q.CreatedBy})
	return q, nil
}

// Delete removes the quest together with its submissions, assignments,
// ledger rows, skills, subtasks and attachments. Blobs nothing else
// references are released once the transaction has committed.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, questID int64) error {
	var (
		q         *model.Quest
		released  []string
		employees []int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = s.loadOwned(tx, actor, questID); err != nil {
			return err
		}
		if err := setStatus(tx, q, model.QuestDeleted, s.Now()); err != nil {
			return err
		}

		var subs []model.Submission
		if err := tx.Where("quest_id = ?", q.ID).Find(&subs).Error; err != nil {
			return apperr.Storage("list submissions", err)
		}
		released = append(released, fileHandles(subs)...)
		var atts []string
		if err := tx.Model(&model.QuestAttachment{}).Where("quest_id = ?", q.ID).Pluck("handle", &atts).Error; err != nil {
			return apperr.Storage("list attachments", err)
		}
		released = append(released, atts...)
		if err := tx.Model(&model.UserQuest{}).Where("quest_id = ?", q.ID).
			Order("employee_id").Pluck("employee_id", &employees).Error; err != nil {
			return apperr.Storage("list assignees", err)
		}

		for _, m := range []any{
			&model.Submission{}, &model.UserQuest{}, &model.XPHistory{},
			&model.QuestSkill{}, &model.QuestSubtask{}, &model.QuestAttachment{},
		} {
			if err := tx.Where("quest_id = ?", q.ID).Delete(m).Error; err != nil {
				return apperr.Storage("delete quest", err)
			}
		}
		if err := tx.Delete(&model.Quest{}, q.ID).Error; err != nil {
			return apperr.Storage("delete quest", err)
		}
		released, err = orphaned(tx, released)
		return err
	})
	if err != nil {
		return s.fail("delete quest", err, zap.Int64("quest_id", questID))
	}

	s.release(ctx, released)
	if s.ledger != nil {
		s.ledger.Invalidate(ctx)
	}
	s.logger.Info("quest deleted", zap.Int64("quest_id", questID), zap.Int("blobs", len(released)))
	s.emit(ctx, &hook.Event{Name: hook.QuestDeleted, QuestID: questID, Actor: q.CreatedBy, Employees: employees})
	return nil
}

// loadOwned locks the quest row and checks that actor created it.
func (s *Service) loadOwned(tx *gorm.DB, actor identity.Actor, questID int64) (*model.Quest, error) {
	q, err := loadQuest(tx.Clauses(clause.Locking{Strength: "UPDATE"}), questID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(q.CreatedBy) {
		return nil, apperr.Permission("only the quest creator may do this")
	}
	return q, nil
}

func loadQuest(db *gorm.DB, questID int64) (*model.Quest, error) {
	var q model.Quest
	err := db.First(&q, questID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("quest", questID)
	}
	if err != nil {
		return nil, apperr.Storage("load quest", err)
	}
	return &q, nil
}

func setStatus(tx *gorm.DB, q *model.Quest, status model.QuestStatus, now time.Time) error {
	err := tx.Model(&model.Quest{}).Where("id = ?", q.ID).
		Updates(map[string]any{"status": status, "updated_at": now}).Error
	if err != nil {
		return apperr.Storage("update quest status", err)
	}
	q.Status, q.UpdatedAt = status, now
	return nil
}

// syncStatus derives assigned/active for a published quest from whether it
// has any assignment rows.
func syncStatus(tx *gorm.DB, q *model.Quest) error {
	if !Open(q.Status) {
		return nil
	}
	var n int64
	if err := tx.Model(&model.UserQuest{}).Where("quest_id = ?", q.ID).Count(&n).Error; err != nil {
		return apperr.Storage("count assignments", err)
	}
	want := model.QuestActive
	if n > 0 {
		want = model.QuestAssigned
	}
	if want == q.Status {
		return nil
	}
	if err := tx.Model(&model.Quest{}).Where("id = ?", q.ID).Update("status", want).Error; err != nil {
		return apperr.Storage("update quest status", err)
	}
	q.Status = want
	return nil
}

func (s *Service) emit(ctx context.Context, ev *hook.Event) {
	if s.hooks == nil {
		return
	}
	ev.At = s.Now()
	_ = s.hooks.Trigger(ctx, ev)
}

func (s *Service) release(ctx context.Context, handles []string) {
	if s.blobs == nil {
		return
	}
	for _, h := range handles {
		if h == "" {
			continue
		}
		if err := s.blobs.Release(ctx, h); err != nil {
			s.logger.Error("blob release failed", zap.String("handle", h), zap.Error(err))
		}
	}
}

// fail logs storage failures in detail and returns err unchanged.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	if apperr.IsStorage(err) || !(apperr.IsValidation(err) || apperr.IsPermission(err) || apperr.IsReferential(err)) {
		s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	}
	return err
}

func fileHandles(subs []model.Submission) []string {
	var out []string
	for _, sub := range subs {
		if sub.Type == model.SubmissionFile {
			out = append(out, sub.Payload)
		}
	}
	return out
}
