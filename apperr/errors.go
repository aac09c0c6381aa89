// Package apperr defines the error taxonomy shared by the quest services.
// Validation, permission and referential errors carry a message that is
// safe to show the caller verbatim; storage errors are logged in detail
// and surfaced as a generic failure.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies the validation rule that failed.
type Code string

const (
	CodeTitleRequired         Code = "title_required"
	CodeTitleTooLong          Code = "title_too_long"
	CodeDescriptionTooLong    Code = "description_too_long"
	CodeInvalidAssignmentType Code = "invalid_assignment_type"
	CodeTooManySkills         Code = "too_many_skills"
	CodeNoSkillsSelected      Code = "no_skills_selected"
	CodeInvalidTier           Code = "invalid_tier"
	CodeInvalidSkill          Code = "invalid_skill"
	CodeInvalidDueDate        Code = "invalid_due_date"
	CodeNoAssignees           Code = "no_assignees"
	CodeInvalidLink           Code = "invalid_link"
	CodeInvalidSubmission     Code = "invalid_submission"
	CodeInvalidAction         Code = "invalid_action"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeBonusOutOfRange       Code = "bonus_out_of_range"
	CodeFeedbackTooLong       Code = "feedback_too_long"
	CodeSubtaskTooLong        Code = "subtask_too_long"
	CodeInvalidXP             Code = "invalid_xp"
	CodeUploadTooLarge        Code = "upload_too_large"
	CodeUploadPartial         Code = "upload_partial"
	CodeUploadNoTempDir       Code = "upload_no_temp_dir"
	CodeUploadDisallowedType  Code = "upload_disallowed_type"
	CodeInvalidAttachment     Code = "invalid_attachment"
)

// ValidationError reports bad input. Nothing was mutated.
type ValidationError struct {
	Code Code
	Msg  string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError.
func Validation(code Code, format string, args ...any) error {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// PermissionError reports an actor that may not perform the operation,
// or a forbidden transition such as declining a mandatory quest.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

// Permission builds a PermissionError.
func Permission(format string, args ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, args...)}
}

// ReferentialError reports an id that does not resolve to a row.
type ReferentialError struct {
	Entity string
	ID     any
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// NotFound builds a ReferentialError.
func NotFound(entity string, id any) error {
	return &ReferentialError{Entity: entity, ID: id}
}

// StorageError wraps a database or blob failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already belongs to the
// taxonomy, in which case it is returned unchanged. nil stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) || IsPermission(err) || IsReferential(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// HasCode reports whether err is a ValidationError with the given code.
func HasCode(err error, code Code) bool {
	var e *ValidationError
	return errors.As(err, &e) && e.Code == code
}

func IsPermission(err error) bool {
	var e *PermissionError
	return errors.As(err, &e)
}

func IsReferential(err error) bool {
	var e *ReferentialError
	return errors.As(err, &e)
}

func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}
