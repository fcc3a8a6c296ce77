package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// CascadeResult accumulates everything one dispatch changed, including the
// changes made by handlers of nested events. Callers get a single flat
// record of the ripple instead of walking the event log.
type CascadeResult struct {
	AchievedTargets   []uuid.UUID
	CompletedGoals    []uuid.UUID
	UncompletedGoals  []uuid.UUID
	RevertedTargets   []uuid.UUID
	CompletedDays     []uuid.UUID
	CompletedBlocks   []uuid.UUID
	CompletedPrograms []uuid.UUID
	UpdatedPrograms   []uuid.UUID
}

// Empty reports whether the dispatch changed nothing.
func (r *CascadeResult) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.AchievedTargets) == 0 &&
		len(r.CompletedGoals) == 0 &&
		len(r.UncompletedGoals) == 0 &&
		len(r.RevertedTargets) == 0 &&
		len(r.CompletedDays) == 0 &&
		len(r.CompletedBlocks) == 0 &&
		len(r.CompletedPrograms) == 0 &&
		len(r.UpdatedPrograms) == 0
}

// Merge folds another result into r, preserving order.
func (r *CascadeResult) Merge(other *CascadeResult) {
	if other == nil {
		return
	}
	r.AchievedTargets = append(r.AchievedTargets, other.AchievedTargets...)
	r.CompletedGoals = append(r.CompletedGoals, other.CompletedGoals...)
	r.UncompletedGoals = append(r.UncompletedGoals, other.UncompletedGoals...)
	r.RevertedTargets = append(r.RevertedTargets, other.RevertedTargets...)
	r.CompletedDays = append(r.CompletedDays, other.CompletedDays...)
	r.CompletedBlocks = append(r.CompletedBlocks, other.CompletedBlocks...)
	r.CompletedPrograms = append(r.CompletedPrograms, other.CompletedPrograms...)
	r.UpdatedPrograms = append(r.UpdatedPrograms, other.UpdatedPrograms...)
}

// mergeEmitted folds the cascade results returned by handlers of a nested
// emission. Non-cascade handler results (audit, recorders) are ignored.
func (r *CascadeResult) mergeEmitted(results []any) {
	for _, item := range results {
		if other, ok := item.(*CascadeResult); ok {
			r.Merge(other)
		}
	}
}

func (r *CascadeResult) mergeRevert(rr *RevertResult) {
	if rr == nil {
		return
	}
	r.RevertedTargets = append(r.RevertedTargets, rr.RevertedTargets...)
	r.UncompletedGoals = append(r.UncompletedGoals, rr.UncompletedGoals...)
}

// CollectCascadeResults flattens the handler returns of one Emit into a
// single result, for callers that emit on the bus directly.
func CollectCascadeResults(results []any) *CascadeResult {
	out := &CascadeResult{}
	out.mergeEmitted(results)
	return out
}

// CascadeEngine turns completion events into the writes they imply: target
// evaluation, goal completion, parent goal roll-up, program aggregates and
// the day -> block -> program chain. Every handler runs synchronously on
// the emitter's call stack inside the emitter's transaction; the engine
// itself never opens one.
//
// Handlers re-enter the bus for derived events (target.achieved,
// goal.completed, program.*), so one external emission can fan out into a
// whole cascade before Emit returns. All derived completion checks are
// monotonic and re-checking is idempotent: re-emitting an event for
// already-completed state changes nothing and emits nothing.
type CascadeEngine struct {
	log       *logger.Logger
	bus       *events.Bus
	evaluator *TargetEvaluator
	reversion *ReversionEngine

	goals     repos.GoalRepo
	targets   repos.TargetRepo
	sessions  repos.SessionRepo
	instances repos.ActivityInstanceRepo
	programs  repos.ProgramRepo
	blocks    repos.ProgramBlockRepo
	days      repos.ProgramDayRepo
	templates repos.SessionTemplateRepo
}

func NewCascadeEngine(
	baseLog *logger.Logger,
	bus *events.Bus,
	evaluator *TargetEvaluator,
	reversion *ReversionEngine,
	goals repos.GoalRepo,
	targets repos.TargetRepo,
	sessions repos.SessionRepo,
	instances repos.ActivityInstanceRepo,
	programs repos.ProgramRepo,
	blocks repos.ProgramBlockRepo,
	days repos.ProgramDayRepo,
	templates repos.SessionTemplateRepo,
) *CascadeEngine {
	return &CascadeEngine{
		log:       baseLog.With("service", "CascadeEngine"),
		bus:       bus,
		evaluator: evaluator,
		reversion: reversion,
		goals:     goals,
		targets:   targets,
		sessions:  sessions,
		instances: instances,
		programs:  programs,
		blocks:    blocks,
		days:      days,
		templates: templates,
	}
}

// Register subscribes the engine's handlers. Call once after construction.
func (e *CascadeEngine) Register() {
	e.bus.Subscribe(events.KindSessionCompleted, "cascade.session_completed", e.handleSessionCompleted)
	e.bus.Subscribe(events.KindActivityInstanceCompleted, "cascade.instance_completed", e.handleInstanceCompleted)
	e.bus.Subscribe(events.KindActivityInstanceUpdated, "cascade.instance_updated", e.handleInstanceUpdated)
	e.bus.Subscribe(events.KindActivityInstanceDeleted, "cascade.instance_deleted", e.handleInstanceDeleted)
	e.bus.Subscribe(events.KindGoalCompleted, "cascade.goal_completed", e.handleGoalCompleted)
}

// handleSessionCompleted evaluates every active target of every goal the
// session is linked to, completes the ones that pass, completes goals whose
// targets are all done, and then walks the program day chain the session
// belongs to.
func (e *CascadeEngine) handleSessionCompleted(dbc dbctx.Context, evt events.Event) (any, error) {
	payload, ok := evt.(events.SessionCompleted)
	if !ok || payload.SessionID == uuid.Nil {
		e.log.Warn("Malformed session.completed event, skipping", "event_id", evt.EventMeta().ID)
		return nil, nil
	}
	session, err := e.sessions.GetByID(dbc, payload.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		e.log.Warn("session.completed for unknown session, skipping", "session_id", payload.SessionID)
		return nil, nil
	}

	result := &CascadeResult{}
	linked, err := e.goals.GetBySessionID(dbc, session.ID)
	if err != nil {
		return nil, err
	}
	instanceRows, err := e.instances.GetBySessionID(dbc, session.ID)
	if err != nil {
		return nil, err
	}
	byActivity := groupByActivity(instanceRows)

	for _, goal := range linked {
		if goal == nil {
			continue
		}
		targets, err := e.targets.GetActiveByGoalID(dbc, goal.ID)
		if err != nil {
			return nil, err
		}
		for _, target := range targets {
			if target == nil {
				continue
			}
			eval, err := e.evaluator.Evaluate(dbc, target, byActivity)
			if err != nil {
				return nil, err
			}
			if !eval.Satisfied {
				if target.Type == types.TargetTypeSum {
					if err := e.refreshSumProgress(dbc, target, eval); err != nil {
						return nil, err
					}
				}
				continue
			}
			sessionID := session.ID
			if err := e.completeTarget(dbc, target, eval, &sessionID, eval.InstanceID, goal.RootID, result); err != nil {
				return nil, err
			}
		}
		if err := e.checkGoalCompletion(dbc, goal, result); err != nil {
			return nil, err
		}
	}

	if err := e.checkProgramDay(dbc, session, result); err != nil {
		return nil, err
	}
	return result, nil
}

// handleInstanceCompleted evaluates active threshold targets on the
// instance's activity against this one instance.
func (e *CascadeEngine) handleInstanceCompleted(dbc dbctx.Context, evt events.Event) (any, error) {
	payload, ok := evt.(events.ActivityInstanceCompleted)
	if !ok || payload.InstanceID == uuid.Nil {
		e.log.Warn("Malformed activity_instance.completed event, skipping", "event_id", evt.EventMeta().ID)
		return nil, nil
	}
	instance, err := e.instances.GetByID(dbc, payload.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		e.log.Warn("activity_instance.completed for unknown instance, skipping", "instance_id", payload.InstanceID)
		return nil, nil
	}
	result := &CascadeResult{}
	if err := e.evaluateInstanceThresholds(dbc, instance, result); err != nil {
		return nil, err
	}
	return result, nil
}

// handleInstanceUpdated reacts only to completed-flag flips: to true it
// behaves like activity_instance.completed, to false it reverts whatever
// the instance had earned.
func (e *CascadeEngine) handleInstanceUpdated(dbc dbctx.Context, evt events.Event) (any, error) {
	payload, ok := evt.(events.ActivityInstanceUpdated)
	if !ok || payload.InstanceID == uuid.Nil {
		e.log.Warn("Malformed activity_instance.updated event, skipping", "event_id", evt.EventMeta().ID)
		return nil, nil
	}
	if !payload.Touched("completed") {
		return nil, nil
	}
	instance, err := e.instances.GetByID(dbc, payload.InstanceID)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		e.log.Warn("activity_instance.updated for unknown instance, skipping", "instance_id", payload.InstanceID)
		return nil, nil
	}
	result := &CascadeResult{}
	if instance.Completed {
		if err := e.evaluateInstanceThresholds(dbc, instance, result); err != nil {
			return nil, err
		}
	} else {
		reverted, err := e.reversion.Revert(dbc, instance.ID)
		if err != nil {
			return nil, err
		}
		result.mergeRevert(reverted)
	}
	return result, nil
}

// handleInstanceDeleted reverts by provenance. The row may already be hard
// deleted, so the payload id is all the handler relies on.
func (e *CascadeEngine) handleInstanceDeleted(dbc dbctx.Context, evt events.Event) (any, error) {
	payload, ok := evt.(events.ActivityInstanceDeleted)
	if !ok || payload.InstanceID == uuid.Nil {
		e.log.Warn("Malformed activity_instance.deleted event, skipping", "event_id", evt.EventMeta().ID)
		return nil, nil
	}
	result := &CascadeResult{}
	reverted, err := e.reversion.Revert(dbc, payload.InstanceID)
	if err != nil {
		return nil, err
	}
	result.mergeRevert(reverted)
	return result, nil
}

// handleGoalCompleted rolls the completion up: auto-complete the parent
// when it opted in and all its children are now done, then recompute the
// aggregates of every program whose blocks link this goal.
func (e *CascadeEngine) handleGoalCompleted(dbc dbctx.Context, evt events.Event) (any, error) {
	payload, ok := evt.(events.GoalCompleted)
	if !ok || payload.GoalID == uuid.Nil {
		e.log.Warn("Malformed goal.completed event, skipping", "event_id", evt.EventMeta().ID)
		return nil, nil
	}
	goal, err := e.goals.GetByID(dbc, payload.GoalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		e.log.Warn("goal.completed for unknown goal, skipping", "goal_id", payload.GoalID)
		return nil, nil
	}

	result := &CascadeResult{}
	if goal.ParentID != nil && *goal.ParentID != uuid.Nil {
		parent, err := e.goals.GetByID(dbc, *goal.ParentID)
		if err != nil {
			return nil, err
		}
		if parent != nil && parent.CompletedViaChildren && !parent.Completed {
			children, err := e.goals.GetChildren(dbc, parent.ID)
			if err != nil {
				return nil, err
			}
			if allCompleted(children) {
				if err := e.completeGoal(dbc, parent, types.GoalCompletionAllChildren, result); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := e.recomputePrograms(dbc, goal.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// evaluateInstanceThresholds runs every active threshold target on the
// instance's activity against this single instance. Targets of goals that
// no longer exist are skipped.
func (e *CascadeEngine) evaluateInstanceThresholds(dbc dbctx.Context, instance *types.ActivityInstance, result *CascadeResult) error {
	if instance.ActivityID == uuid.Nil {
		return nil
	}
	candidates, err := e.targets.GetActiveThresholdByActivity(dbc, instance.ActivityID)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	goalIDs := make([]uuid.UUID, 0, len(candidates))
	seenGoal := make(map[uuid.UUID]bool, len(candidates))
	for _, t := range candidates {
		if t == nil || t.GoalID == uuid.Nil {
			continue
		}
		if !seenGoal[t.GoalID] {
			seenGoal[t.GoalID] = true
			goalIDs = append(goalIDs, t.GoalID)
		}
	}
	goalRows, err := e.goals.GetByIDs(dbc, goalIDs)
	if err != nil {
		return err
	}
	goalByID := make(map[uuid.UUID]*types.Goal, len(goalRows))
	for _, g := range goalRows {
		if g != nil {
			goalByID[g.ID] = g
		}
	}

	byActivity := map[uuid.UUID][]*types.ActivityInstance{
		instance.ActivityID: {instance},
	}
	var sessionID *uuid.UUID
	if instance.SessionID != uuid.Nil {
		id := instance.SessionID
		sessionID = &id
	}

	achievedGoals := make([]uuid.UUID, 0, len(goalIDs))
	achievedSeen := make(map[uuid.UUID]bool, len(goalIDs))
	for _, target := range candidates {
		if target == nil {
			continue
		}
		goal := goalByID[target.GoalID]
		if goal == nil {
			continue
		}
		eval := e.evaluator.EvaluateThreshold(target, byActivity)
		if !eval.Satisfied {
			continue
		}
		instanceID := instance.ID
		if err := e.completeTarget(dbc, target, eval, sessionID, &instanceID, goal.RootID, result); err != nil {
			return err
		}
		if !achievedSeen[goal.ID] {
			achievedSeen[goal.ID] = true
			achievedGoals = append(achievedGoals, goal.ID)
		}
	}
	for _, goalID := range achievedGoals {
		if err := e.checkGoalCompletion(dbc, goalByID[goalID], result); err != nil {
			return err
		}
	}
	return nil
}

// completeTarget stamps the target done with its provenance, records it in
// the result and emits target.achieved. Sum targets also persist their
// primary-condition progress.
func (e *CascadeEngine) completeTarget(dbc dbctx.Context, target *types.Target, eval TargetEvaluation, sessionID, instanceID *uuid.UUID, rootID uuid.UUID, result *CascadeResult) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"completed":    true,
		"completed_at": now,
	}
	if sessionID != nil && *sessionID != uuid.Nil {
		updates["completed_session_id"] = *sessionID
	} else {
		sessionID = nil
	}
	if instanceID != nil && *instanceID != uuid.Nil {
		updates["completed_instance_id"] = *instanceID
	} else {
		instanceID = nil
	}
	if target.Type == types.TargetTypeSum || target.Type == types.TargetTypeFrequency {
		updates["current_value"] = eval.CurrentValue
		updates["target_value"] = eval.TargetValue
	}
	if err := e.targets.UpdateFields(dbc, target.ID, updates); err != nil {
		return err
	}
	target.Completed = true
	target.CompletedAt = &now
	target.CompletedSessionID = sessionID
	target.CompletedInstanceID = instanceID

	result.AchievedTargets = append(result.AchievedTargets, target.ID)
	emitted := e.bus.Emit(dbc, events.TargetAchieved{
		Meta:       events.NewMeta(events.SourceCascade),
		TargetID:   target.ID,
		GoalID:     target.GoalID,
		RootID:     rootID,
		SessionID:  sessionID,
		InstanceID: instanceID,
	})
	result.mergeEmitted(emitted)
	return nil
}

// refreshSumProgress keeps a sum target's running value current even when
// the target stays open.
func (e *CascadeEngine) refreshSumProgress(dbc dbctx.Context, target *types.Target, eval TargetEvaluation) error {
	if target.CurrentValue == eval.CurrentValue && target.TargetValue == eval.TargetValue {
		return nil
	}
	updates := map[string]interface{}{
		"current_value": eval.CurrentValue,
		"target_value":  eval.TargetValue,
	}
	if err := e.targets.UpdateFields(dbc, target.ID, updates); err != nil {
		return err
	}
	target.CurrentValue = eval.CurrentValue
	target.TargetValue = eval.TargetValue
	return nil
}

// checkGoalCompletion completes the goal when it has at least one live
// target and none of them is open. Goals without targets only complete
// manually, and already-completed goals are left alone.
func (e *CascadeEngine) checkGoalCompletion(dbc dbctx.Context, goal *types.Goal, result *CascadeResult) error {
	if goal == nil || goal.Completed {
		return nil
	}
	live, err := e.targets.CountLiveByGoalID(dbc, goal.ID)
	if err != nil {
		return err
	}
	if live == 0 {
		return nil
	}
	incomplete, err := e.targets.CountIncompleteByGoalID(dbc, goal.ID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return nil
	}
	return e.completeGoal(dbc, goal, types.GoalCompletionAllTargets, result)
}

// completeGoal stamps the goal done, records it and emits goal.completed,
// which re-enters the bus and drives the parent and program roll-ups.
func (e *CascadeEngine) completeGoal(dbc dbctx.Context, goal *types.Goal, reason string, result *CascadeResult) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"completed":         true,
		"completed_at":      now,
		"completion_reason": reason,
	}
	if err := e.goals.UpdateFields(dbc, goal.ID, updates); err != nil {
		return err
	}
	goal.Completed = true
	goal.CompletedAt = &now
	goal.CompletionReason = reason

	result.CompletedGoals = append(result.CompletedGoals, goal.ID)
	emitted := e.bus.Emit(dbc, events.GoalCompleted{
		Meta:   events.NewMeta(events.SourceCascade),
		GoalID: goal.ID,
		RootID: goal.RootID,
		Reason: reason,
	})
	result.mergeEmitted(emitted)
	return nil
}

// recomputePrograms refreshes the aggregates of every program that links
// goalID through one of its blocks and emits program.updated for each.
func (e *CascadeEngine) recomputePrograms(dbc dbctx.Context, goalID uuid.UUID, result *CascadeResult) error {
	programRows, err := e.programs.GetByLinkedGoal(dbc, goalID)
	if err != nil {
		return err
	}
	for _, program := range programRows {
		if program == nil {
			continue
		}
		linkedIDs, err := e.programs.GoalIDsByProgram(dbc, program.ID)
		if err != nil {
			return err
		}
		goalRows, err := e.goals.GetByIDs(dbc, linkedIDs)
		if err != nil {
			return err
		}
		total := 0
		completed := 0
		for _, g := range goalRows {
			if g == nil {
				continue
			}
			total++
			if g.Completed {
				completed++
			}
		}
		pct := float64(0)
		if total > 0 {
			pct = float64(completed) / float64(total) * 100
		}
		updates := map[string]interface{}{
			"goals_completed":       completed,
			"goals_total":           total,
			"completion_percentage": pct,
		}
		if err := e.programs.UpdateFields(dbc, program.ID, updates); err != nil {
			return err
		}
		program.GoalsCompleted = completed
		program.GoalsTotal = total
		program.CompletionPercentage = pct

		result.UpdatedPrograms = append(result.UpdatedPrograms, program.ID)
		emitted := e.bus.Emit(dbc, events.ProgramUpdated{
			Meta:                 events.NewMeta(events.SourceCascade),
			ProgramID:            program.ID,
			RootID:               program.RootID,
			GoalsCompleted:       completed,
			GoalsTotal:           total,
			CompletionPercentage: pct,
		})
		result.mergeEmitted(emitted)
	}
	return nil
}

// checkProgramDay completes the session's program day once every required
// template on it has a completed session, then checks the block and the
// program. Each level short-circuits on already-completed state, which is
// what keeps the chain monotonic and re-runs free of duplicate events.
func (e *CascadeEngine) checkProgramDay(dbc dbctx.Context, session *types.Session, result *CascadeResult) error {
	dayRef := session.ProgramDayRef()
	if dayRef == nil {
		return nil
	}
	day, err := e.days.GetByID(dbc, *dayRef)
	if err != nil {
		return err
	}
	if day == nil {
		e.log.Warn("Session references missing program day, skipping",
			"session_id", session.ID, "program_day_id", *dayRef)
		return nil
	}
	if day.Completed {
		return nil
	}
	required, err := e.templates.GetRequiredByProgramDayID(dbc, day.ID)
	if err != nil {
		return err
	}
	// A day with nothing required never auto-completes.
	if len(required) == 0 {
		return nil
	}
	for _, tpl := range required {
		if tpl == nil {
			continue
		}
		done, err := e.sessions.ExistsCompletedByTemplateID(dbc, tpl.ID)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
	}

	block, err := e.blocks.GetByID(dbc, day.BlockID)
	if err != nil {
		return err
	}
	if block == nil {
		e.log.Warn("Program day references missing block, skipping",
			"program_day_id", day.ID, "block_id", day.BlockID)
		return nil
	}
	program, err := e.programs.GetByID(dbc, block.ProgramID)
	if err != nil {
		return err
	}
	if program == nil {
		e.log.Warn("Program block references missing program, skipping",
			"block_id", block.ID, "program_id", block.ProgramID)
		return nil
	}

	now := time.Now().UTC()
	if err := e.days.UpdateFields(dbc, day.ID, map[string]interface{}{
		"completed":    true,
		"completed_at": now,
	}); err != nil {
		return err
	}
	day.Completed = true
	day.CompletedAt = &now

	result.CompletedDays = append(result.CompletedDays, day.ID)
	emitted := e.bus.Emit(dbc, events.ProgramDayCompleted{
		Meta:      events.NewMeta(events.SourceCascade),
		DayID:     day.ID,
		BlockID:   block.ID,
		ProgramID: program.ID,
		RootID:    program.RootID,
	})
	result.mergeEmitted(emitted)

	return e.checkProgramBlock(dbc, block, program, result)
}

// checkProgramBlock completes the block when it has days and none is open.
func (e *CascadeEngine) checkProgramBlock(dbc dbctx.Context, block *types.ProgramBlock, program *types.Program, result *CascadeResult) error {
	if block.Completed {
		return nil
	}
	live, err := e.days.CountLiveByBlockID(dbc, block.ID)
	if err != nil {
		return err
	}
	if live == 0 {
		return nil
	}
	incomplete, err := e.days.CountIncompleteByBlockID(dbc, block.ID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return nil
	}

	now := time.Now().UTC()
	if err := e.blocks.UpdateFields(dbc, block.ID, map[string]interface{}{
		"completed":    true,
		"completed_at": now,
	}); err != nil {
		return err
	}
	block.Completed = true
	block.CompletedAt = &now

	result.CompletedBlocks = append(result.CompletedBlocks, block.ID)
	emitted := e.bus.Emit(dbc, events.ProgramBlockCompleted{
		Meta:      events.NewMeta(events.SourceCascade),
		BlockID:   block.ID,
		ProgramID: program.ID,
		RootID:    program.RootID,
	})
	result.mergeEmitted(emitted)

	return e.checkProgramComplete(dbc, program, result)
}

// checkProgramComplete completes the program when it has blocks and none is
// open.
func (e *CascadeEngine) checkProgramComplete(dbc dbctx.Context, program *types.Program, result *CascadeResult) error {
	if program.Completed {
		return nil
	}
	live, err := e.blocks.CountLiveByProgramID(dbc, program.ID)
	if err != nil {
		return err
	}
	if live == 0 {
		return nil
	}
	incomplete, err := e.blocks.CountIncompleteByProgramID(dbc, program.ID)
	if err != nil {
		return err
	}
	if incomplete > 0 {
		return nil
	}

	now := time.Now().UTC()
	if err := e.programs.UpdateFields(dbc, program.ID, map[string]interface{}{
		"completed":    true,
		"completed_at": now,
	}); err != nil {
		return err
	}
	program.Completed = true
	program.CompletedAt = &now

	result.CompletedPrograms = append(result.CompletedPrograms, program.ID)
	emitted := e.bus.Emit(dbc, events.ProgramCompleted{
		Meta:      events.NewMeta(events.SourceCascade),
		ProgramID: program.ID,
		RootID:    program.RootID,
	})
	result.mergeEmitted(emitted)
	return nil
}

// allCompleted reports whether every goal in the slice is completed. An
// empty slice is false: a parent with no children has nothing to earn
// completion from.
func allCompleted(goals []*types.Goal) bool {
	if len(goals) == 0 {
		return false
	}
	for _, g := range goals {
		if g == nil || !g.Completed {
			return false
		}
	}
	return true
}

// groupByActivity buckets instances by their activity definition.
func groupByActivity(instances []*types.ActivityInstance) map[uuid.UUID][]*types.ActivityInstance {
	out := make(map[uuid.UUID][]*types.ActivityInstance, len(instances))
	for _, inst := range instances {
		if inst == nil || inst.ActivityID == uuid.Nil {
			continue
		}
		out[inst.ActivityID] = append(out[inst.ActivityID], inst)
	}
	return out
}
