package quest

import (
	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
)

// userQuestTransitions lists the legal per-employee moves. Declining an
// optional assignment deletes the row and is not a state.
var userQuestTransitions = map[model.UserQuestStatus][]model.UserQuestStatus{
	model.UserQuestAssigned:   {model.UserQuestInProgress, model.UserQuestMissed},
	model.UserQuestInProgress: {model.UserQuestSubmitted, model.UserQuestMissed},
	model.UserQuestSubmitted:  {model.UserQuestCompleted, model.UserQuestInProgress},
}

// CanTransition reports whether an assignment may move from one status to
// another.
func CanTransition(from, to model.UserQuestStatus) bool {
	for _, s := range userQuestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a ValidationError unless from -> to is legal.
func EnsureTransition(from, to model.UserQuestStatus) error {
	if !CanTransition(from, to) {
		return apperr.Validation(apperr.CodeInvalidTransition, "assignment cannot move from %s to %s", from, to)
	}
	return nil
}

// InitialStatus is the state a fresh assignment starts in.
func InitialStatus(t model.AssignmentType) model.UserQuestStatus {
	if t == model.AssignmentMandatory {
		return model.UserQuestInProgress
	}
	return model.UserQuestAssigned
}

// Open reports whether assignees may act on a quest in status s.
func Open(s model.QuestStatus) bool {
	return s == model.QuestActive || s == model.QuestAssigned
}
