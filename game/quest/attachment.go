package quest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordUpload registers a freshly stored reference file as an unclaimed
// upload of actor. Only recorded uploads can later be attached to a quest.
func (s *Service) RecordUpload(ctx context.Context, actor identity.Actor, att Attachment) (*model.Upload, error) {
	owner := actor.Canonical()
	if !owner.Valid() {
		return nil, apperr.Permission("uploader has no identity")
	}
	up := &model.Upload{
		Handle:     strings.TrimSpace(att.Handle),
		UploadedBy: string(owner),
		FileName:   att.FileName,
		CreatedAt:  s.Now(),
	}
	if err := s.db.WithContext(ctx).Create(up).Error; err != nil {
		return nil, s.fail("record upload", apperr.Storage("record upload", err), zap.String("handle", up.Handle))
	}
	return up, nil
}

// replaceAttachments swaps the quest's attachment set and returns the
// handles it no longer references. Handles the quest already holds are
// kept as they are; every other handle must be an unclaimed upload of
// actor and is claimed for the quest.
func replaceAttachments(tx *gorm.DB, actor identity.Actor, questID int64, atts []Attachment, now time.Time) ([]string, error) {
	var old []string
	if err := tx.Model(&model.QuestAttachment{}).Where("quest_id = ?", questID).Pluck("handle", &old).Error; err != nil {
		return nil, apperr.Storage("list attachments", err)
	}
	held := make(map[string]bool, len(old))
	for _, h := range old {
		held[h] = true
	}

	keep := make(map[string]bool, len(atts))
	var rows []model.QuestAttachment
	for _, a := range atts {
		h := strings.TrimSpace(a.Handle)
		if keep[h] {
			continue
		}
		keep[h] = true
		if !held[h] {
			if err := claimUpload(tx, actor, questID, h, now); err != nil {
				return nil, err
			}
		}
		rows = append(rows, model.QuestAttachment{QuestID: questID, Handle: h, FileName: a.FileName})
	}

	if err := tx.Where("quest_id = ?", questID).Delete(&model.QuestAttachment{}).Error; err != nil {
		return nil, apperr.Storage("clear attachments", err)
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return nil, apperr.Storage("insert attachments", err)
		}
	}

	var dropped []string
	for _, h := range old {
		if !keep[h] {
			dropped = append(dropped, h)
		}
	}
	return dropped, nil
}

func claimUpload(tx *gorm.DB, actor identity.Actor, questID int64, handle string, now time.Time) error {
	var up model.Upload
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("handle = ?", handle).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation(apperr.CodeInvalidAttachment, "attachment %q was not uploaded", handle)
	}
	if err != nil {
		return apperr.Storage("load upload", err)
	}
	if !actor.Is(up.UploadedBy) {
		return apperr.Validation(apperr.CodeInvalidAttachment, "attachment %q belongs to another uploader", handle)
	}
	if up.ClaimedBy != nil {
		return apperr.Validation(apperr.CodeInvalidAttachment, "attachment %q is already attached to a quest", handle)
	}
	res := tx.Model(&model.Upload{}).Where("handle = ? AND claimed_by IS NULL", handle).
		Updates(map[string]any{"claimed_by": questID, "claimed_at": now})
	if res.Error != nil {
		return apperr.Storage("claim upload", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Validation(apperr.CodeInvalidAttachment, "attachment %q is already attached to a quest", handle)
	}
	return nil
}

// orphaned narrows handles to those no quest attachment or file submission
// points at any more and forgets their upload records. Run it inside the
// transaction that dropped the references; the caller releases the result
// after commit.
func orphaned(tx *gorm.DB, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	var used []string
	if err := tx.Model(&model.QuestAttachment{}).Where("handle IN ?", handles).Pluck("handle", &used).Error; err != nil {
		return nil, apperr.Storage("count attachment references", err)
	}
	var payloads []string
	err := tx.Model(&model.Submission{}).Where("type = ? AND payload IN ?", model.SubmissionFile, handles).
		Pluck("payload", &payloads).Error
	if err != nil {
		return nil, apperr.Storage("count submission references", err)
	}
	skip := make(map[string]bool, len(used)+len(payloads))
	for _, h := range append(used, payloads...) {
		skip[h] = true
	}
	var out []string
	for _, h := range handles {
		if h == "" || skip[h] {
			continue
		}
		skip[h] = true
		out = append(out, h)
	}
	if len(out) > 0 {
		if err := tx.Where("handle IN ?", out).Delete(&model.Upload{}).Error; err != nil {
			return nil, apperr.Storage("forget uploads", err)
		}
	}
	return out, nil
}
