// Package submission accepts evidence for in-progress assignments and
// processes the creator's review, crediting XP to the ledger.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"github.com/christianebacani/yoonet-quest-system-sub000/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"

	MaxFeedbackLen = 2000
)

// Review is the creator's verdict on a submission.
type Review struct {
	Action       string `json:"action"`
	Feedback     string `json:"feedback"`
	AdditionalXP int    `json:"additional_xp"`
}

// Service handles submissions and reviews.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	ids        *identity.Resolver
	ledger     *xp.Ledger
	blobs      storage.Store
	hooks      *hook.Center
	reconciler quest.Reconciler
	cfg        config.QuestConfig
	upload     config.UploadConfig
	logger     *zap.Logger

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// NewService creates a submission Service. hooks may be nil.
func NewService(db *gorm.DB, c cache.Cache, ids *identity.Resolver, ledger *xp.Ledger, blobs storage.Store,
	hooks *hook.Center, cfg config.QuestConfig, upload config.UploadConfig, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		cache:  c,
		ids:    ids,
		ledger: ledger,
		blobs:  blobs,
		hooks:  hooks,
		cfg:    cfg,
		upload: upload,
		logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetReconciler installs the reconciler run before the creator lists
// submissions.
func (s *Service) SetReconciler(r quest.Reconciler) {
	s.reconciler = r
}

func lockKey(employeeID, questID int64) string {
	return fmt.Sprintf("lock:submission:%d:%d", employeeID, questID)
}

// Submit records evidence for the actor's assignment on questID. The
// assignment must be in progress, or submitted with a pending submission
// (a resubmission before review). A resubmission replaces the previous
// row and its file. XP is credited once per (employee, quest), on the
// first submission.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, questID int64, req Request) (*model.Submission, error) {
	kind, err := req.kind()
	if err != nil {
		return nil, err
	}
	sub := &model.Submission{QuestID: questID, Status: model.SubmissionPending}
	if kind == "link" {
		link, err := ValidateLink(req.Link)
		if err != nil {
			return nil, err
		}
		sub.Type, sub.Payload = model.SubmissionLink, link
	} else {
		if err := ValidateFile(s.upload, req.File); err != nil {
			return nil, err
		}
		sub.Type, sub.FileName = model.SubmissionFile, req.File.Name
	}

	employeeID, err := s.ids.ActorID(ctx, actor)
	if err != nil {
		return nil, err
	}
	sub.EmployeeID = employeeID

	release, err := cache.Lock(ctx, s.cache, lockKey(employeeID, questID), s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		return nil, s.fail("lock submission", apperr.Storage("lock submission", err), employeeID, questID)
	}
	defer release()

	if sub.Type == model.SubmissionFile {
		handle, err := s.blobs.Put(ctx, req.File.Name, io.LimitReader(req.File.Reader, req.File.Size+1), req.File.Size)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, apperr.Validation(apperr.CodeUploadPartial, "file was only partially uploaded")
		}
		if err != nil {
			return nil, s.fail("store upload", apperr.Storage(ErrUploadWriteFailed.Error(), err), employeeID, questID)
		}
		sub.Payload = handle
	}

	now := s.Now()
	sub.SubmittedAt = now
	var (
		old     *model.Submission
		credits []*model.XPHistory
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadQuest(tx, questID)
		if err != nil {
			return err
		}
		if !quest.Open(q.Status) {
			return apperr.Validation(apperr.CodeInvalidTransition, "quest is not open for submissions")
		}
		uq, err := loadAssignment(tx, employeeID, questID)
		if err != nil {
			return err
		}

		var prev model.Submission
		err = tx.Where("employee_id = ? AND quest_id = ?", employeeID, questID).First(&prev).Error
		switch {
		case err == nil:
			old = &prev
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperr.Storage("load submission", err)
		}

		resubmit := uq.Status == model.UserQuestSubmitted && old != nil && old.Status == model.SubmissionPending
		if !resubmit {
			if err := quest.EnsureTransition(uq.Status, model.UserQuestSubmitted); err != nil {
				return err
			}
		}

		if old != nil {
			if err := tx.Delete(&model.Submission{}, old.ID).Error; err != nil {
				return apperr.Storage("replace submission", err)
			}
		}
		if err := tx.Create(sub).Error; err != nil {
			return apperr.Storage("insert submission", err)
		}
		if !resubmit {
			res := tx.Model(&model.UserQuest{}).Where("id = ? AND status = ?", uq.ID, uq.Status).
				Update("status", model.UserQuestSubmitted)
			if res.Error != nil {
				return apperr.Storage("update assignment", res.Error)
			}
			if res.RowsAffected == 0 {
				return apperr.Validation(apperr.CodeInvalidTransition, "assignment changed concurrently")
			}
		}

		var credited int64
		if err := tx.Model(&model.XPHistory{}).
			Where("employee_id = ? AND quest_id = ? AND source_type = ?", employeeID, questID, model.XPSourceQuestSubmit).
			Count(&credited).Error; err != nil {
			return apperr.Storage("check xp", err)
		}
		if credited == 0 {
			credits = append(credits, &model.XPHistory{
				EmployeeID:  employeeID,
				XPChange:    q.XP,
				SourceType:  model.XPSourceQuestSubmit,
				SourceID:    sub.ID,
				QuestID:     questID,
				Description: "Submitted: " + q.Title,
				Metadata:    xp.Metadata(map[string]any{"submission_type": sub.Type}),
				CreatedAt:   now,
			})
			return s.ledger.Append(ctx, tx, credits...)
		}
		return nil
	})
	if err != nil {
		if sub.Type == model.SubmissionFile {
			s.release(ctx, sub.Payload)
		}
		return nil, s.fail("submit", err, employeeID, questID)
	}

	if old != nil && old.Type == model.SubmissionFile {
		s.release(ctx, old.Payload)
	}
	s.ledger.Credited(ctx, credits...)
	s.logger.Info("submission received",
		zap.Int64("submission_id", sub.ID),
		zap.Int64("employee_id", employeeID),
		zap.Int64("quest_id", questID),
		zap.String("type", string(sub.Type)),
		zap.Bool("resubmission", old != nil))
	s.emit(ctx, &hook.Event{Name: hook.SubmissionCreated, QuestID: questID, Actor: string(actor.Canonical()),
		Employees: []int64{employeeID}, Data: map[string]any{"submission_id": sub.ID, "type": sub.Type}})
	return sub, nil
}

// Review applies the quest creator's verdict. Approving completes the
// assignment and writes two ledger entries: quest XP plus bonus for the
// employee and the review incentive for the reviewer. Rejecting sends the
// assignment back to in progress so the employee may resubmit.
func (s *Service) Review(ctx context.Context, actor identity.Actor, submissionID int64, r Review) (*model.Submission, error) {
	if r.Action != ActionApprove && r.Action != ActionReject {
		return nil, apperr.Validation(apperr.CodeInvalidAction, "action must be approve or reject")
	}
	r.Feedback = strings.TrimSpace(r.Feedback)
	if utf8.RuneCountInString(r.Feedback) > MaxFeedbackLen {
		return nil, apperr.Validation(apperr.CodeFeedbackTooLong, "feedback must be at most %d characters", MaxFeedbackLen)
	}
	if r.AdditionalXP < 0 || r.AdditionalXP > s.cfg.MaxBonusXP {
		return nil, apperr.Validation(apperr.CodeBonusOutOfRange, "additional xp must be between 0 and %d", s.cfg.MaxBonusXP)
	}
	if r.Action == ActionReject {
		r.AdditionalXP = 0
	}
	reviewerID, err := s.ids.ActorID(ctx, actor)
	if err != nil {
		return nil, apperr.Permission("only the quest creator may review submissions")
	}

	now := s.Now()
	var (
		sub     model.Submission
		credits []*model.XPHistory
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sub, submissionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("submission", submissionID)
		}
		if err != nil {
			return apperr.Storage("load submission", err)
		}
		q, err := loadQuest(tx, sub.QuestID)
		if err != nil {
			return err
		}
		if !actor.Is(q.CreatedBy) {
			return apperr.Permission("only the quest creator may review submissions")
		}
		if sub.Status != model.SubmissionPending {
			return apperr.Validation(apperr.CodeInvalidTransition, "submission was already %s", sub.Status)
		}
		uq, err := loadAssignment(tx, sub.EmployeeID, sub.QuestID)
		if err != nil {
			return err
		}

		target, verdict := model.UserQuestInProgress, model.SubmissionRejected
		if r.Action == ActionApprove {
			target, verdict = model.UserQuestCompleted, model.SubmissionApproved
		}
		if err := quest.EnsureTransition(uq.Status, target); err != nil {
			return err
		}
		updates := map[string]any{"status": target}
		if target == model.UserQuestCompleted {
			updates["completed_at"] = now
		}
		res := tx.Model(&model.UserQuest{}).Where("id = ? AND status = ?", uq.ID, uq.Status).Updates(updates)
		if res.Error != nil {
			return apperr.Storage("update assignment", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Validation(apperr.CodeInvalidTransition, "assignment changed concurrently")
		}

		sub.Status, sub.Feedback, sub.AdditionalXP = verdict, r.Feedback, r.AdditionalXP
		sub.ReviewedBy, sub.ReviewedAt = string(actor.Canonical()), &now
		if err := tx.Model(&sub).Select("status", "feedback", "additional_xp", "reviewed_by", "reviewed_at").
			Updates(&sub).Error; err != nil {
			return apperr.Storage("update submission", err)
		}

		if r.Action == ActionReject {
			return nil
		}
		completed := xp.Metadata(map[string]any{
			"base_xp":       q.XP,
			"additional_xp": r.AdditionalXP,
			"reviewed_by":   sub.ReviewedBy,
		})
		credits = []*model.XPHistory{
			{
				EmployeeID:  sub.EmployeeID,
				XPChange:    q.XP + r.AdditionalXP,
				SourceType:  model.XPSourceQuestComplete,
				SourceID:    sub.ID,
				QuestID:     q.ID,
				Description: "Completed: " + q.Title,
				Metadata:    completed,
				CreatedAt:   now,
			},
			{
				EmployeeID:  reviewerID,
				XPChange:    s.cfg.ReviewBonusXP,
				SourceType:  model.XPSourceQuestReview,
				SourceID:    sub.ID,
				QuestID:     q.ID,
				Description: "Reviewed: " + q.Title,
				Metadata:    xp.Metadata(map[string]any{"employee_id": sub.EmployeeID}),
				CreatedAt:   now,
			},
		}
		return s.ledger.Append(ctx, tx, credits...)
	})
	if err != nil {
		return nil, s.fail("review", err, sub.EmployeeID, sub.QuestID)
	}

	s.ledger.Credited(ctx, credits...)
	s.logger.Info("submission reviewed",
		zap.Int64("submission_id", sub.ID),
		zap.String("action", r.Action),
		zap.String("reviewer", sub.ReviewedBy),
		zap.Int("additional_xp", r.AdditionalXP))
	s.emit(ctx, &hook.Event{Name: hook.SubmissionReviewed, QuestID: sub.QuestID, Actor: sub.ReviewedBy,
		Employees: []int64{sub.EmployeeID},
		Data:      map[string]any{"submission_id": sub.ID, "action": r.Action, "feedback": r.Feedback}})
	return &sub, nil
}

// Get returns a submission to its author, the quest creator or an admin.
func (s *Service) Get(ctx context.Context, actor identity.Actor, submissionID int64) (*model.Submission, error) {
	db := s.db.WithContext(ctx)
	var sub model.Submission
	err := db.First(&sub, submissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("submission", submissionID)
	}
	if err != nil {
		return nil, apperr.Storage("load submission", err)
	}
	if actor.Role == model.RoleAdmin || actor.Is(string(identity.FromAccountID(sub.EmployeeID))) {
		return &sub, nil
	}
	q, err := loadQuest(db, sub.QuestID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(q.CreatedBy) {
		if id, err := s.ids.ActorID(ctx, actor); err != nil || id != sub.EmployeeID {
			return nil, apperr.Permission("submission is not visible to you")
		}
	}
	return &sub, nil
}

// ListForQuest returns the quest's submissions to its creator, after
// reconciling missed assignments.
func (s *Service) ListForQuest(ctx context.Context, actor identity.Actor, questID int64) ([]model.Submission, error) {
	db := s.db.WithContext(ctx)
	q, err := loadQuest(db, questID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(q.CreatedBy) && actor.Role != model.RoleAdmin {
		return nil, apperr.Permission("only the quest creator may list submissions")
	}
	if s.reconciler != nil {
		if _, err := s.reconciler.Reconcile(ctx, questID); err != nil {
			return nil, s.fail("reconcile quest", err, 0, questID)
		}
	}
	var subs []model.Submission
	if err := db.Where("quest_id = ?", questID).Order("submitted_at DESC, id DESC").Find(&subs).Error; err != nil {
		return nil, apperr.Storage("list submissions", err)
	}
	return subs, nil
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

func loadAssignment(tx *gorm.DB, employeeID, questID int64) (*model.UserQuest, error) {
	var uq model.UserQuest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("employee_id = ? AND quest_id = ?", employeeID, questID).First(&uq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("assignment", questID)
	}
	if err != nil {
		return nil, apperr.Storage("load assignment", err)
	}
	return &uq, nil
}

func (s *Service) emit(ctx context.Context, ev *hook.Event) {
	if s.hooks == nil {
		return
	}
	ev.At = s.Now()
	_ = s.hooks.Trigger(ctx, ev)
}

func (s *Service) release(ctx context.Context, handle string) {
	if err := s.blobs.Release(ctx, handle); err != nil {
		s.logger.Error("blob release failed", zap.String("handle", handle), zap.Error(err))
	}
}

func (s *Service) fail(op string, err error, employeeID, questID int64) error {
	if apperr.IsStorage(err) || !(apperr.IsValidation(err) || apperr.IsPermission(err) || apperr.IsReferential(err)) {
		s.logger.Error(op+" failed",
			zap.Int64("employee_id", employeeID),
			zap.Int64("quest_id", questID),
			zap.Error(err))
	}
	return err
}
