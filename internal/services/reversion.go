package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// RevertResult reports what one reversal pass touched.
type RevertResult struct {
	RevertedTargets  []uuid.UUID
	UncompletedGoals []uuid.UUID
}

// Empty reports whether the pass changed nothing.
func (r *RevertResult) Empty() bool {
	return r == nil || (len(r.RevertedTargets) == 0 && len(r.UncompletedGoals) == 0)
}

// ReversionEngine undoes target completions when the activity instance that
// earned them goes away. Reversal is keyed on completed_instance_id and on
// nothing else: a target completed by a session-level evaluation (sum,
// frequency) records no instance and is never reverted here.
//
// Reversal is intentionally narrower than completion. It reopens affected
// targets and their owning goals, and stops there: no parent goal is
// reopened, no program day, block, or program is un-completed, and no
// program aggregate is recomputed. Completion cascades up; reversal does
// not.
type ReversionEngine struct {
	log     *logger.Logger
	bus     *events.Bus
	targets repos.TargetRepo
	goals   repos.GoalRepo
}

func NewReversionEngine(baseLog *logger.Logger, bus *events.Bus, targets repos.TargetRepo, goals repos.GoalRepo) *ReversionEngine {
	return &ReversionEngine{
		log:     baseLog.With("service", "ReversionEngine"),
		bus:     bus,
		targets: targets,
		goals:   goals,
	}
}

// Revert reopens every target whose completion provenance points at
// instanceID, then reopens each owning goal that was completed and is left
// with at least one incomplete live target. Emits target.reverted per
// target and goal.uncompleted per goal. A nil instance id or an empty
// provenance match is a no-op.
func (e *ReversionEngine) Revert(dbc dbctx.Context, instanceID uuid.UUID) (*RevertResult, error) {
	result := &RevertResult{}
	if instanceID == uuid.Nil {
		return result, nil
	}
	affected, err := e.targets.GetByCompletedInstanceID(dbc, instanceID)
	if err != nil {
		return nil, err
	}
	if len(affected) == 0 {
		return result, nil
	}

	goalIDs := make([]uuid.UUID, 0, len(affected))
	seen := make(map[uuid.UUID]bool, len(affected))
	for _, t := range affected {
		if t == nil {
			continue
		}
		if t.GoalID != uuid.Nil && !seen[t.GoalID] {
			seen[t.GoalID] = true
			goalIDs = append(goalIDs, t.GoalID)
		}
	}
	goalRows, err := e.goals.GetByIDs(dbc, goalIDs)
	if err != nil {
		return nil, err
	}
	goalByID := make(map[uuid.UUID]*types.Goal, len(goalRows))
	for _, g := range goalRows {
		if g != nil {
			goalByID[g.ID] = g
		}
	}

	for _, t := range affected {
		if t == nil {
			continue
		}
		updates := map[string]interface{}{
			"completed":             false,
			"completed_at":          nil,
			"completed_session_id":  nil,
			"completed_instance_id": nil,
		}
		if err := e.targets.UpdateFields(dbc, t.ID, updates); err != nil {
			return nil, err
		}
		result.RevertedTargets = append(result.RevertedTargets, t.ID)
		rootID := uuid.Nil
		if g := goalByID[t.GoalID]; g != nil {
			rootID = g.RootID
		}
		e.bus.Emit(dbc, events.TargetReverted{
			Meta:       events.NewMeta(events.SourceReversion),
			TargetID:   t.ID,
			GoalID:     t.GoalID,
			RootID:     rootID,
			InstanceID: instanceID,
		})
	}

	for _, goalID := range goalIDs {
		goal := goalByID[goalID]
		if goal == nil || !goal.Completed {
			continue
		}
		incomplete, err := e.targets.CountIncompleteByGoalID(dbc, goalID)
		if err != nil {
			return nil, err
		}
		if incomplete == 0 {
			continue
		}
		updates := map[string]interface{}{
			"completed":         false,
			"completed_at":      nil,
			"completion_reason": "",
		}
		if err := e.goals.UpdateFields(dbc, goalID, updates); err != nil {
			return nil, err
		}
		goal.Completed = false
		goal.CompletedAt = nil
		goal.CompletionReason = ""
		result.UncompletedGoals = append(result.UncompletedGoals, goalID)
		e.bus.Emit(dbc, events.GoalUncompleted{
			Meta:   events.NewMeta(events.SourceReversion),
			GoalID: goalID,
			RootID: goal.RootID,
			Reason: types.GoalUncompleteTargetReverted,
		})
	}

	if !result.Empty() {
		e.log.Info("Reverted instance completions",
			"instance_id", instanceID,
			"targets", len(result.RevertedTargets),
			"goals", len(result.UncompletedGoals))
	}
	return result, nil
}
