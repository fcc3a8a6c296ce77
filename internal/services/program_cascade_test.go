package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
)

func TestProgramDayBlockProgramChain(t *testing.T) {
	h := newCascadeHarness(t)
	root := h.seedRootGoal()
	program := h.seedProgram(root.RootID)
	block := h.seedBlock(program, nil, nil)
	dayOne := h.seedDay(block)
	dayTwo := h.seedDay(block)
	requiredOne := h.seedTemplate(dayOne, true)
	h.seedTemplate(dayOne, false) // optional, must not gate the day
	requiredTwo := h.seedTemplate(dayTwo, true)

	first := h.seedProgramSession(root.RootID, requiredOne, dayOne)
	result := h.emit(sessionCompletedEvent(first))

	if len(result.CompletedDays) != 1 || result.CompletedDays[0] != dayOne.ID {
		t.Fatalf("completed days: want=[%s] got=%v", dayOne.ID, result.CompletedDays)
	}
	if len(result.CompletedBlocks) != 0 || len(result.CompletedPrograms) != 0 {
		t.Fatalf("block and program must wait for day two, got %+v", result)
	}

	h.recorder.reset()
	second := h.seedProgramSession(root.RootID, requiredTwo, dayTwo)
	result = h.emit(sessionCompletedEvent(second))

	if len(result.CompletedDays) != 1 || result.CompletedDays[0] != dayTwo.ID {
		t.Fatalf("completed days: want=[%s] got=%v", dayTwo.ID, result.CompletedDays)
	}
	if len(result.CompletedBlocks) != 1 || result.CompletedBlocks[0] != block.ID {
		t.Fatalf("completed blocks: want=[%s] got=%v", block.ID, result.CompletedBlocks)
	}
	if len(result.CompletedPrograms) != 1 || result.CompletedPrograms[0] != program.ID {
		t.Fatalf("completed programs: want=[%s] got=%v", program.ID, result.CompletedPrograms)
	}
	for kind, want := range map[events.Kind]int{
		events.KindProgramDayCompleted:   1,
		events.KindProgramBlockCompleted: 1,
		events.KindProgramCompleted:      1,
	} {
		if n := h.recorder.count(kind); n != want {
			t.Fatalf("%s count: want=%d got=%d", kind, want, n)
		}
	}

	// Completion is monotonic: replaying the session changes nothing and
	// emits nothing.
	h.recorder.reset()
	result = h.emit(sessionCompletedEvent(second))
	if !result.Empty() {
		t.Fatalf("replay must be a no-op, got %+v", result)
	}
	for _, kind := range []events.Kind{
		events.KindProgramDayCompleted,
		events.KindProgramBlockCompleted,
		events.KindProgramCompleted,
	} {
		if n := h.recorder.count(kind); n != 0 {
			t.Fatalf("%s re-emitted on replay", kind)
		}
	}
}

func TestDayWithoutRequiredTemplatesNeverCompletes(t *testing.T) {
	h := newCascadeHarness(t)
	root := h.seedRootGoal()
	program := h.seedProgram(root.RootID)
	block := h.seedBlock(program, nil, nil)
	day := h.seedDay(block)
	optional := h.seedTemplate(day, false)

	session := h.seedProgramSession(root.RootID, optional, day)
	result := h.emit(sessionCompletedEvent(session))

	if len(result.CompletedDays) != 0 {
		t.Fatalf("day with only optional templates must not complete, got %v", result.CompletedDays)
	}
	got, err := h.days.GetByID(h.dbc, day.ID)
	if err != nil || got == nil {
		t.Fatalf("reload day: %v", err)
	}
	if got.Completed {
		t.Fatalf("day should stay open")
	}
}

func TestGoalCompletionRecomputesProgramAggregates(t *testing.T) {
	h := newCascadeHarness(t)
	root := h.seedRootGoal()
	trained := h.seedChildGoal(root, false)
	other := h.seedChildGoal(root, false)
	program := h.seedProgram(root.RootID)
	block := h.seedBlock(program, nil, nil)
	h.linkBlockGoal(block, trained)
	h.linkBlockGoal(block, other)

	reps := uuid.New()
	swim := uuid.New()
	h.seedThresholdTarget(trained, swim, cond(reps, ">=", 1))
	session := h.seedSession(root.RootID, true)
	h.linkSessionGoal(session, trained)
	h.seedInstance(session, swim, true, metricVal(reps, 2))

	result := h.emit(sessionCompletedEvent(session))

	if len(result.UpdatedPrograms) != 1 || result.UpdatedPrograms[0] != program.ID {
		t.Fatalf("updated programs: want=[%s] got=%v", program.ID, result.UpdatedPrograms)
	}
	got, err := h.programs.GetByID(h.dbc, program.ID)
	if err != nil || got == nil {
		t.Fatalf("reload program: %v", err)
	}
	if got.GoalsCompleted != 1 || got.GoalsTotal != 2 {
		t.Fatalf("aggregates: want=1/2 got=%d/%d", got.GoalsCompleted, got.GoalsTotal)
	}
	if got.CompletionPercentage != 50 {
		t.Fatalf("completion percentage: want=50 got=%v", got.CompletionPercentage)
	}
	if n := h.recorder.count(events.KindProgramUpdated); n != 1 {
		t.Fatalf("program.updated count: want=1 got=%d", n)
	}
}

func TestSumTargetAccumulatesAcrossSessions(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	distance := uuid.New()
	running := uuid.New()
	target := h.seedSumTarget(goal, running, cond(distance, ">=", 10))

	first := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(first, goal)
	h.seedInstance(first, running, true, metricVal(distance, 6))

	result := h.emit(sessionCompletedEvent(first))
	if !result.Empty() {
		t.Fatalf("6 of 10 must not complete, got %+v", result)
	}
	gotTarget := h.reloadTarget(target.ID)
	if gotTarget.CurrentValue != 6 || gotTarget.TargetValue != 10 {
		t.Fatalf("progress: want=6/10 got=%v/%v", gotTarget.CurrentValue, gotTarget.TargetValue)
	}

	second := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(second, goal)
	h.seedInstance(second, running, true, metricVal(distance, 5))

	result = h.emit(sessionCompletedEvent(second))
	if len(result.AchievedTargets) != 1 {
		t.Fatalf("11 of 10 should complete, got %+v", result)
	}
	gotTarget = h.reloadTarget(target.ID)
	if gotTarget.CurrentValue != 11 {
		t.Fatalf("current value: want=11 got=%v", gotTarget.CurrentValue)
	}
	// Session-level evaluation records session provenance only; there is
	// no single instance to point at.
	if gotTarget.CompletedSessionID == nil || *gotTarget.CompletedSessionID != second.ID {
		t.Fatalf("completed_session_id: want=%s got=%v", second.ID, gotTarget.CompletedSessionID)
	}
	if gotTarget.CompletedInstanceID != nil {
		t.Fatalf("sum targets carry no instance provenance, got %v", gotTarget.CompletedInstanceID)
	}
}

func TestSumCompletionSurvivesInstanceDeletion(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	distance := uuid.New()
	cycling := uuid.New()
	target := h.seedSumTarget(goal, cycling, cond(distance, ">=", 5))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	inst := h.seedInstance(session, cycling, true, metricVal(distance, 7))

	h.emit(sessionCompletedEvent(session))
	if !h.reloadTarget(target.ID).Completed {
		t.Fatalf("target should be completed")
	}

	// Reversal keys on instance provenance alone; a sum completion has
	// none, so deleting the contributing instance reverts nothing.
	if err := h.instances.SoftDeleteByIDs(h.dbc, []uuid.UUID{inst.ID}); err != nil {
		t.Fatalf("soft delete instance: %v", err)
	}
	result := h.emit(instanceDeletedEvent(inst, goal.RootID))
	if !result.Empty() {
		t.Fatalf("sum completions are not reverted by deletions, got %+v", result)
	}
	if !h.reloadTarget(target.ID).Completed {
		t.Fatalf("sum target must stay completed")
	}
}

func TestFrequencyTargetCountsDistinctSessions(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	yoga := uuid.New()
	target := h.seedFrequencyTarget(goal, yoga, 2, 0)

	first := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(first, goal)
	// Two instances in one session still count as one session.
	h.seedInstance(first, yoga, true)
	h.seedInstance(first, yoga, true)

	result := h.emit(sessionCompletedEvent(first))
	if !result.Empty() {
		t.Fatalf("one session of two must not complete, got %+v", result)
	}

	second := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(second, goal)
	h.seedInstance(second, yoga, true)

	result = h.emit(sessionCompletedEvent(second))
	if len(result.AchievedTargets) != 1 || result.AchievedTargets[0] != target.ID {
		t.Fatalf("two sessions should complete, got %+v", result)
	}
	gotTarget := h.reloadTarget(target.ID)
	if gotTarget.CurrentValue != 2 || gotTarget.TargetValue != 2 {
		t.Fatalf("progress: want=2/2 got=%v/%v", gotTarget.CurrentValue, gotTarget.TargetValue)
	}
	if gotTarget.CompletedInstanceID != nil {
		t.Fatalf("frequency targets carry no instance provenance")
	}
}

func TestProgramBlockWindowScopesSumTarget(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	program := h.seedProgram(goal.RootID)
	start := time.Now().AddDate(0, 0, -7)
	end := time.Now().AddDate(0, 0, 7)
	block := h.seedBlock(program, &start, &end)

	distance := uuid.New()
	rowing := uuid.New()
	blockID := block.ID
	target := &types.Target{
		ID:               uuid.New(),
		GoalID:           goal.ID,
		Type:             types.TargetTypeSum,
		ActivityID:       &rowing,
		MetricConditions: types.EncodeMetricConditions([]types.MetricCondition{cond(distance, ">=", 5)}),
		TimeScope:        types.TimeScopeProgramBlock,
		LinkedBlockID:    &blockID,
	}
	if _, err := h.targets.Create(h.dbc, []*types.Target{target}); err != nil {
		t.Fatalf("create block-scoped target: %v", err)
	}

	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)

	// An old instance outside the block window must not count.
	stale := h.seedInstance(session, rowing, true, metricVal(distance, 100))
	past := time.Now().AddDate(0, 0, -30)
	if err := h.instances.UpdateFields(h.dbc, stale.ID, map[string]interface{}{"completed_at": past}); err != nil {
		t.Fatalf("backdate instance: %v", err)
	}
	h.seedInstance(session, rowing, true, metricVal(distance, 3))

	result := h.emit(sessionCompletedEvent(session))
	if !result.Empty() {
		t.Fatalf("3 of 5 inside the window must not complete, got %+v", result)
	}
	gotTarget := h.reloadTarget(target.ID)
	if gotTarget.CurrentValue != 3 {
		t.Fatalf("window total: want=3 got=%v", gotTarget.CurrentValue)
	}

	h.seedInstance(session, rowing, true, metricVal(distance, 2.5))
	result = h.emit(sessionCompletedEvent(session))
	if len(result.AchievedTargets) != 1 {
		t.Fatalf("5.5 of 5 should complete, got %+v", result)
	}
}
