package task

import "github.com/zulandar/taskyard/internal/models"

// Behavior is the per-kind lifecycle hook set. Hooks are pure: they inspect
// the task and return the effects the runner must apply in the same
// transaction.
type Behavior interface {
	OnComplete(t *models.Task) []Effect
	OnReset(t *models.Task) []Effect
	OnSave(t *models.Task) []Effect
	OnDelete(t *models.Task) []Effect
}

// BehaviorFor returns the hook set for a task kind.
func BehaviorFor(kind string) Behavior {
	switch kind {
	case models.KindRepetitive:
		return repetitive{}
	case models.KindNeverEnding:
		return neverEnding{}
	default:
		return plain{}
	}
}

// plain covers normal, pipeline, and notes tasks. Pipeline tasks react to
// their prerequisite's save, not to their own.
type plain struct{}

func (plain) OnComplete(*models.Task) []Effect { return nil }
func (plain) OnReset(*models.Task) []Effect    { return nil }
func (plain) OnSave(*models.Task) []Effect     { return nil }
func (plain) OnDelete(*models.Task) []Effect   { return nil }

type repetitive struct{}

func (repetitive) OnComplete(t *models.Task) []Effect {
	return []Effect{GenerateSuccessor{TaskID: t.ID}}
}

func (repetitive) OnReset(t *models.Task) []Effect {
	return []Effect{DeleteSuccessor{TaskID: t.ID}}
}

func (repetitive) OnSave(*models.Task) []Effect { return nil }

func (repetitive) OnDelete(t *models.Task) []Effect {
	return []Effect{SpliceChain{TaskID: t.ID}}
}

type neverEnding struct{}

func (neverEnding) OnComplete(*models.Task) []Effect { return nil }
func (neverEnding) OnReset(*models.Task) []Effect    { return nil }

// OnSave re-checks regeneration on every save while the task is completed.
// The runner's "no existing successor" guard keeps it idempotent.
func (neverEnding) OnSave(t *models.Task) []Effect {
	if !IsCompleted(t) || t.Blocked {
		return nil
	}
	return []Effect{GenerateSuccessor{TaskID: t.ID, FromNow: true}}
}

func (neverEnding) OnDelete(t *models.Task) []Effect {
	var effects []Effect
	if t.PreviousID != nil {
		effects = append(effects, BlockPredecessor{TaskID: t.ID, PredecessorID: *t.PreviousID})
	}
	return append(effects, DetachSuccessor{TaskID: t.ID})
}
