package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	"github.com/yungbote/fractal-backend/internal/data/repos/testutil"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
)

// eventRecorder captures every event crossing the bus, in emission order.
type eventRecorder struct {
	seen []events.Event
}

func (r *eventRecorder) record(dbc dbctx.Context, evt events.Event) (any, error) {
	r.seen = append(r.seen, evt)
	return nil, nil
}

func (r *eventRecorder) count(kind events.Kind) int {
	n := 0
	for _, e := range r.seen {
		if e.EventKind() == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) indexOf(kind events.Kind) int {
	for i, e := range r.seen {
		if e.EventKind() == kind {
			return i
		}
	}
	return -1
}

func (r *eventRecorder) reset() { r.seen = nil }

type cascadeHarness struct {
	t         *testing.T
	dbc       dbctx.Context
	bus       *events.Bus
	engine    *CascadeEngine
	reversion *ReversionEngine
	recorder  *eventRecorder

	goals     repos.GoalRepo
	targets   repos.TargetRepo
	sessions  repos.SessionRepo
	instances repos.ActivityInstanceRepo
	programs  repos.ProgramRepo
	blocks    repos.ProgramBlockRepo
	days      repos.ProgramDayRepo
	templates repos.SessionTemplateRepo
	eventLogs repos.EventLogRepo
}

// newCascadeHarness wires a full engine against a per-test transaction that
// rolls back on cleanup. Audit registers before the engine so the trail
// rows exist for every emitted event.
func newCascadeHarness(t *testing.T) *cascadeHarness {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	goals := repos.NewGoalRepo(db, log)
	targets := repos.NewTargetRepo(db, log)
	sessions := repos.NewSessionRepo(db, log)
	instances := repos.NewActivityInstanceRepo(db, log)
	programs := repos.NewProgramRepo(db, log)
	blocks := repos.NewProgramBlockRepo(db, log)
	days := repos.NewProgramDayRepo(db, log)
	templates := repos.NewSessionTemplateRepo(db, log)
	eventLogs := repos.NewEventLogRepo(db, log)

	bus := events.NewBus(log, 0)
	evaluator := NewTargetEvaluator(log, instances, blocks)
	reversion := NewReversionEngine(log, bus, targets, goals)
	engine := NewCascadeEngine(log, bus, evaluator, reversion,
		goals, targets, sessions, instances, programs, blocks, days, templates)

	NewAuditLogger(log, bus, eventLogs).Register()
	recorder := &eventRecorder{}
	bus.SubscribeAll("test.recorder", recorder.record)
	engine.Register()

	return &cascadeHarness{
		t:         t,
		dbc:       dbc,
		bus:       bus,
		engine:    engine,
		reversion: reversion,
		recorder:  recorder,
		goals:     goals,
		targets:   targets,
		sessions:  sessions,
		instances: instances,
		programs:  programs,
		blocks:    blocks,
		days:      days,
		templates: templates,
		eventLogs: eventLogs,
	}
}

func (h *cascadeHarness) emit(evt events.Event) *CascadeResult {
	h.t.Helper()
	return CollectCascadeResults(h.bus.Emit(h.dbc, evt))
}

func (h *cascadeHarness) seedRootGoal() *types.Goal {
	h.t.Helper()
	id := uuid.New()
	g := &types.Goal{ID: id, RootID: id, Title: "Root goal"}
	if _, err := h.goals.Create(h.dbc, []*types.Goal{g}); err != nil {
		h.t.Fatalf("create root goal: %v", err)
	}
	return g
}

func (h *cascadeHarness) seedChildGoal(parent *types.Goal, viaChildren bool) *types.Goal {
	h.t.Helper()
	parentID := parent.ID
	g := &types.Goal{
		ID:                   uuid.New(),
		RootID:               parent.RootID,
		ParentID:             &parentID,
		Title:                "Child goal",
		CompletedViaChildren: viaChildren,
	}
	if _, err := h.goals.Create(h.dbc, []*types.Goal{g}); err != nil {
		h.t.Fatalf("create child goal: %v", err)
	}
	return g
}

func (h *cascadeHarness) setViaChildren(goal *types.Goal) {
	h.t.Helper()
	if err := h.goals.UpdateFields(h.dbc, goal.ID, map[string]interface{}{"completed_via_children": true}); err != nil {
		h.t.Fatalf("set completed_via_children: %v", err)
	}
	goal.CompletedViaChildren = true
}

func (h *cascadeHarness) seedThresholdTarget(goal *types.Goal, activityID uuid.UUID, conds ...types.MetricCondition) *types.Target {
	h.t.Helper()
	tg := &types.Target{
		ID:               uuid.New(),
		GoalID:           goal.ID,
		Type:             types.TargetTypeThreshold,
		ActivityID:       &activityID,
		MetricConditions: types.EncodeMetricConditions(conds),
		TimeScope:        types.TimeScopeAllTime,
	}
	if _, err := h.targets.Create(h.dbc, []*types.Target{tg}); err != nil {
		h.t.Fatalf("create threshold target: %v", err)
	}
	return tg
}

func (h *cascadeHarness) seedSumTarget(goal *types.Goal, activityID uuid.UUID, conds ...types.MetricCondition) *types.Target {
	h.t.Helper()
	tg := &types.Target{
		ID:               uuid.New(),
		GoalID:           goal.ID,
		Type:             types.TargetTypeSum,
		ActivityID:       &activityID,
		MetricConditions: types.EncodeMetricConditions(conds),
		TimeScope:        types.TimeScopeAllTime,
	}
	if _, err := h.targets.Create(h.dbc, []*types.Target{tg}); err != nil {
		h.t.Fatalf("create sum target: %v", err)
	}
	return tg
}

func (h *cascadeHarness) seedFrequencyTarget(goal *types.Goal, activityID uuid.UUID, count, windowDays int) *types.Target {
	h.t.Helper()
	tg := &types.Target{
		ID:             uuid.New(),
		GoalID:         goal.ID,
		Type:           types.TargetTypeFrequency,
		ActivityID:     &activityID,
		TimeScope:      types.TimeScopeAllTime,
		FrequencyCount: count,
		FrequencyDays:  windowDays,
	}
	if _, err := h.targets.Create(h.dbc, []*types.Target{tg}); err != nil {
		h.t.Fatalf("create frequency target: %v", err)
	}
	return tg
}

func (h *cascadeHarness) seedSession(rootID uuid.UUID, completed bool) *types.Session {
	h.t.Helper()
	s := &types.Session{ID: uuid.New(), RootID: rootID, Title: "Session", Completed: completed}
	if completed {
		now := time.Now()
		s.CompletedAt = &now
	}
	if _, err := h.sessions.Create(h.dbc, []*types.Session{s}); err != nil {
		h.t.Fatalf("create session: %v", err)
	}
	return s
}

func (h *cascadeHarness) linkSessionGoal(session *types.Session, goal *types.Goal) {
	h.t.Helper()
	if err := h.sessions.LinkGoal(h.dbc, session.ID, goal.ID); err != nil {
		h.t.Fatalf("link session goal: %v", err)
	}
}

func (h *cascadeHarness) seedInstance(session *types.Session, activityID uuid.UUID, completed bool, values ...types.MetricValue) *types.ActivityInstance {
	h.t.Helper()
	inst := &types.ActivityInstance{
		ID:           uuid.New(),
		SessionID:    session.ID,
		ActivityID:   activityID,
		Completed:    completed,
		MetricValues: types.EncodeMetricValues(values),
	}
	if completed {
		now := time.Now()
		inst.CompletedAt = &now
	}
	if _, err := h.instances.Create(h.dbc, []*types.ActivityInstance{inst}); err != nil {
		h.t.Fatalf("create instance: %v", err)
	}
	return inst
}

func (h *cascadeHarness) seedProgram(rootID uuid.UUID) *types.Program {
	h.t.Helper()
	p := &types.Program{ID: uuid.New(), RootID: rootID, Name: "Program"}
	if _, err := h.programs.Create(h.dbc, []*types.Program{p}); err != nil {
		h.t.Fatalf("create program: %v", err)
	}
	return p
}

func (h *cascadeHarness) seedBlock(program *types.Program, start, end *time.Time) *types.ProgramBlock {
	h.t.Helper()
	b := &types.ProgramBlock{ID: uuid.New(), ProgramID: program.ID, Name: "Block", StartDate: start, EndDate: end}
	if _, err := h.blocks.Create(h.dbc, []*types.ProgramBlock{b}); err != nil {
		h.t.Fatalf("create block: %v", err)
	}
	return b
}

func (h *cascadeHarness) seedDay(block *types.ProgramBlock) *types.ProgramDay {
	h.t.Helper()
	d := &types.ProgramDay{ID: uuid.New(), BlockID: block.ID, Name: "Day"}
	if _, err := h.days.Create(h.dbc, []*types.ProgramDay{d}); err != nil {
		h.t.Fatalf("create day: %v", err)
	}
	return d
}

func (h *cascadeHarness) seedTemplate(day *types.ProgramDay, required bool) *types.SessionTemplate {
	h.t.Helper()
	tpl := &types.SessionTemplate{ID: uuid.New(), ProgramDayID: day.ID, Name: "Template", Required: required}
	if _, err := h.templates.Create(h.dbc, []*types.SessionTemplate{tpl}); err != nil {
		h.t.Fatalf("create template: %v", err)
	}
	return tpl
}

// seedProgramSession creates a completed session instantiated from a
// template on a program day.
func (h *cascadeHarness) seedProgramSession(rootID uuid.UUID, tpl *types.SessionTemplate, day *types.ProgramDay) *types.Session {
	h.t.Helper()
	now := time.Now()
	templateID := tpl.ID
	dayID := day.ID
	s := &types.Session{
		ID:           uuid.New(),
		RootID:       rootID,
		Title:        "Program session",
		Completed:    true,
		CompletedAt:  &now,
		TemplateID:   &templateID,
		ProgramDayID: &dayID,
	}
	if _, err := h.sessions.Create(h.dbc, []*types.Session{s}); err != nil {
		h.t.Fatalf("create program session: %v", err)
	}
	return s
}

func (h *cascadeHarness) linkBlockGoal(block *types.ProgramBlock, goal *types.Goal) {
	h.t.Helper()
	if err := h.blocks.LinkGoal(h.dbc, block.ID, goal.ID); err != nil {
		h.t.Fatalf("link block goal: %v", err)
	}
}

func (h *cascadeHarness) reloadTarget(id uuid.UUID) *types.Target {
	h.t.Helper()
	tg, err := h.targets.GetByID(h.dbc, id)
	if err != nil {
		h.t.Fatalf("reload target: %v", err)
	}
	if tg == nil {
		h.t.Fatalf("target %s not found", id)
	}
	return tg
}

func (h *cascadeHarness) reloadGoal(id uuid.UUID) *types.Goal {
	h.t.Helper()
	g, err := h.goals.GetByID(h.dbc, id)
	if err != nil {
		h.t.Fatalf("reload goal: %v", err)
	}
	if g == nil {
		h.t.Fatalf("goal %s not found", id)
	}
	return g
}

func cond(metricID uuid.UUID, op string, value float64) types.MetricCondition {
	return types.MetricCondition{MetricID: metricID, Operator: op, Value: value}
}

func metricVal(metricID uuid.UUID, v any) types.MetricValue {
	return types.MetricValue{MetricID: metricID, Value: v}
}

func sessionCompletedEvent(s *types.Session) events.Event {
	return events.SessionCompleted{Meta: events.NewMeta("test"), SessionID: s.ID, RootID: s.RootID}
}

func instanceDeletedEvent(inst *types.ActivityInstance, rootID uuid.UUID) events.Event {
	return events.ActivityInstanceDeleted{Meta: events.NewMeta("test"), InstanceID: inst.ID, RootID: rootID}
}

// The reference flow: a goal with a reps >= 10 threshold target, a
// completed session holding an instance with reps = 12. Completing the
// session completes the target with full provenance and the goal right
// after it; deleting the instance undoes both.
func TestSessionCompletionCompletesTargetAndGoal(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	squat := uuid.New()
	target := h.seedThresholdTarget(goal, squat, cond(reps, ">=", 10))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	inst := h.seedInstance(session, squat, true, metricVal(reps, 12))

	result := h.emit(sessionCompletedEvent(session))

	if len(result.AchievedTargets) != 1 || result.AchievedTargets[0] != target.ID {
		t.Fatalf("achieved targets: want=[%s] got=%v", target.ID, result.AchievedTargets)
	}
	if len(result.CompletedGoals) != 1 || result.CompletedGoals[0] != goal.ID {
		t.Fatalf("completed goals: want=[%s] got=%v", goal.ID, result.CompletedGoals)
	}

	gotTarget := h.reloadTarget(target.ID)
	if !gotTarget.Completed {
		t.Fatalf("target should be completed")
	}
	if gotTarget.CompletedSessionID == nil || *gotTarget.CompletedSessionID != session.ID {
		t.Fatalf("completed_session_id: want=%s got=%v", session.ID, gotTarget.CompletedSessionID)
	}
	if gotTarget.CompletedInstanceID == nil || *gotTarget.CompletedInstanceID != inst.ID {
		t.Fatalf("completed_instance_id: want=%s got=%v", inst.ID, gotTarget.CompletedInstanceID)
	}

	gotGoal := h.reloadGoal(goal.ID)
	if !gotGoal.Completed {
		t.Fatalf("goal should be completed")
	}
	if gotGoal.CompletionReason != types.GoalCompletionAllTargets {
		t.Fatalf("completion_reason: want=%s got=%s", types.GoalCompletionAllTargets, gotGoal.CompletionReason)
	}

	achievedAt := h.recorder.indexOf(events.KindTargetAchieved)
	completedAt := h.recorder.indexOf(events.KindGoalCompleted)
	if achievedAt < 0 || completedAt < 0 || achievedAt > completedAt {
		t.Fatalf("event order: target.achieved at %d, goal.completed at %d", achievedAt, completedAt)
	}
	if n := h.recorder.count(events.KindTargetAchieved); n != 1 {
		t.Fatalf("target.achieved count: want=1 got=%d", n)
	}
	if n := h.recorder.count(events.KindGoalCompleted); n != 1 {
		t.Fatalf("goal.completed count: want=1 got=%d", n)
	}
}

func TestSessionCompletionIsIdempotent(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	squat := uuid.New()
	h.seedThresholdTarget(goal, squat, cond(reps, ">=", 10))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	h.seedInstance(session, squat, true, metricVal(reps, 12))

	first := h.emit(sessionCompletedEvent(session))
	if first.Empty() {
		t.Fatalf("first emission should complete the target")
	}

	h.recorder.reset()
	second := h.emit(sessionCompletedEvent(session))
	if !second.Empty() {
		t.Fatalf("second emission should be a no-op, got %+v", second)
	}
	if n := h.recorder.count(events.KindTargetAchieved); n != 0 {
		t.Fatalf("no target.achieved on re-emission, got %d", n)
	}
	if n := h.recorder.count(events.KindGoalCompleted); n != 0 {
		t.Fatalf("no goal.completed on re-emission, got %d", n)
	}
}

func TestConditionsAreConjunctive(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	weight := uuid.New()
	squat := uuid.New()
	target := h.seedThresholdTarget(goal, squat,
		cond(reps, ">=", 10), cond(weight, ">=", 100))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	// Each instance meets one condition; no single instance meets both.
	h.seedInstance(session, squat, true, metricVal(reps, 12))
	h.seedInstance(session, squat, true, metricVal(weight, 140))

	result := h.emit(sessionCompletedEvent(session))
	if !result.Empty() {
		t.Fatalf("split conditions must not satisfy the target, got %+v", result)
	}
	if h.reloadTarget(target.ID).Completed {
		t.Fatalf("target should stay open")
	}

	// One instance meeting both conditions does satisfy it.
	h.seedInstance(session, squat, true, metricVal(reps, 10), metricVal(weight, 102.5))
	result = h.emit(sessionCompletedEvent(session))
	if len(result.AchievedTargets) != 1 {
		t.Fatalf("achieved targets: want=1 got=%v", result.AchievedTargets)
	}
}

func TestInstanceDeletionRevertsTargetAndGoal(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	squat := uuid.New()
	target := h.seedThresholdTarget(goal, squat, cond(reps, ">=", 10))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	inst := h.seedInstance(session, squat, true, metricVal(reps, 12))

	h.emit(sessionCompletedEvent(session))
	if !h.reloadGoal(goal.ID).Completed {
		t.Fatalf("goal should be completed before reversal")
	}

	h.recorder.reset()
	if err := h.instances.SoftDeleteByIDs(h.dbc, []uuid.UUID{inst.ID}); err != nil {
		t.Fatalf("soft delete instance: %v", err)
	}
	result := h.emit(instanceDeletedEvent(inst, goal.RootID))

	if len(result.RevertedTargets) != 1 || result.RevertedTargets[0] != target.ID {
		t.Fatalf("reverted targets: want=[%s] got=%v", target.ID, result.RevertedTargets)
	}
	if len(result.UncompletedGoals) != 1 || result.UncompletedGoals[0] != goal.ID {
		t.Fatalf("uncompleted goals: want=[%s] got=%v", goal.ID, result.UncompletedGoals)
	}

	gotTarget := h.reloadTarget(target.ID)
	if gotTarget.Completed || gotTarget.CompletedAt != nil ||
		gotTarget.CompletedSessionID != nil || gotTarget.CompletedInstanceID != nil {
		t.Fatalf("target should be fully reopened, got %+v", gotTarget)
	}
	gotGoal := h.reloadGoal(goal.ID)
	if gotGoal.Completed || gotGoal.CompletionReason != "" {
		t.Fatalf("goal should be reopened with reason cleared, got completed=%v reason=%q",
			gotGoal.Completed, gotGoal.CompletionReason)
	}
	if n := h.recorder.count(events.KindTargetReverted); n != 1 {
		t.Fatalf("target.reverted count: want=1 got=%d", n)
	}
	if n := h.recorder.count(events.KindGoalUncompleted); n != 1 {
		t.Fatalf("goal.uncompleted count: want=1 got=%d", n)
	}
}

func TestReversalOnlyTouchesProvenance(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	squat := uuid.New()
	deadlift := uuid.New()
	squatTarget := h.seedThresholdTarget(goal, squat, cond(reps, ">=", 5))
	deadliftTarget := h.seedThresholdTarget(goal, deadlift, cond(reps, ">=", 5))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	squatInst := h.seedInstance(session, squat, true, metricVal(reps, 8))
	h.seedInstance(session, deadlift, true, metricVal(reps, 8))

	h.emit(sessionCompletedEvent(session))
	if !h.reloadGoal(goal.ID).Completed {
		t.Fatalf("goal should be completed")
	}

	// Deleting an instance that earned nothing reverts nothing.
	unrelated := h.seedInstance(session, squat, true, metricVal(reps, 1))
	result := h.emit(instanceDeletedEvent(unrelated, goal.RootID))
	if !result.Empty() {
		t.Fatalf("unrelated deletion must be a no-op, got %+v", result)
	}

	// Deleting the squat instance reverts only the squat target.
	result = h.emit(instanceDeletedEvent(squatInst, goal.RootID))
	if len(result.RevertedTargets) != 1 || result.RevertedTargets[0] != squatTarget.ID {
		t.Fatalf("reverted targets: want=[%s] got=%v", squatTarget.ID, result.RevertedTargets)
	}
	if !h.reloadTarget(deadliftTarget.ID).Completed {
		t.Fatalf("deadlift target must stay completed")
	}
	if h.reloadGoal(goal.ID).Completed {
		t.Fatalf("goal should reopen, one target is open again")
	}
}

func TestParentGoalCompletesOnceWhenAllChildrenComplete(t *testing.T) {
	h := newCascadeHarness(t)
	parent := h.seedRootGoal()
	h.setViaChildren(parent)
	left := h.seedChildGoal(parent, false)
	right := h.seedChildGoal(parent, false)
	reps := uuid.New()
	rowing := uuid.New()
	h.seedThresholdTarget(left, rowing, cond(reps, ">=", 1))
	h.seedThresholdTarget(right, rowing, cond(reps, ">=", 5))

	session := h.seedSession(parent.RootID, true)
	h.linkSessionGoal(session, left)
	h.seedInstance(session, rowing, true, metricVal(reps, 3))
	h.emit(sessionCompletedEvent(session))

	if !h.reloadGoal(left.ID).Completed {
		t.Fatalf("left child should be completed")
	}
	if h.reloadGoal(parent.ID).Completed {
		t.Fatalf("parent must wait for the right child")
	}

	h.recorder.reset()
	second := h.seedSession(parent.RootID, true)
	h.linkSessionGoal(second, right)
	h.seedInstance(second, rowing, true, metricVal(reps, 6))
	result := h.emit(sessionCompletedEvent(second))

	gotParent := h.reloadGoal(parent.ID)
	if !gotParent.Completed {
		t.Fatalf("parent should complete with the last child")
	}
	if gotParent.CompletionReason != types.GoalCompletionAllChildren {
		t.Fatalf("parent reason: want=%s got=%s", types.GoalCompletionAllChildren, gotParent.CompletionReason)
	}
	// Exactly two: the right child and the parent.
	if n := h.recorder.count(events.KindGoalCompleted); n != 2 {
		t.Fatalf("goal.completed count: want=2 got=%d", n)
	}
	if len(result.CompletedGoals) != 2 {
		t.Fatalf("completed goals: want=2 got=%v", result.CompletedGoals)
	}
}

func TestAncestorChainCompletesDepthFirst(t *testing.T) {
	h := newCascadeHarness(t)
	root := h.seedRootGoal()
	h.setViaChildren(root)
	mid := h.seedChildGoal(root, true)
	leaf := h.seedChildGoal(mid, false)
	reps := uuid.New()
	plank := uuid.New()
	h.seedThresholdTarget(leaf, plank, cond(reps, ">=", 1))

	session := h.seedSession(root.RootID, true)
	h.linkSessionGoal(session, leaf)
	h.seedInstance(session, plank, true, metricVal(reps, 2))
	result := h.emit(sessionCompletedEvent(session))

	for _, g := range []*types.Goal{leaf, mid, root} {
		if !h.reloadGoal(g.ID).Completed {
			t.Fatalf("goal %s should be completed", g.Title)
		}
	}
	if len(result.CompletedGoals) != 3 {
		t.Fatalf("completed goals: want=3 got=%v", result.CompletedGoals)
	}
	if n := h.recorder.count(events.KindGoalCompleted); n != 3 {
		t.Fatalf("goal.completed count: want=3 got=%d", n)
	}
}

func TestParentWithoutChildrenNeverAutoCompletes(t *testing.T) {
	h := newCascadeHarness(t)
	root := h.seedRootGoal()
	h.setViaChildren(root)
	only := h.seedChildGoal(root, true) // opted in, but has no children itself
	reps := uuid.New()
	run := uuid.New()
	h.seedThresholdTarget(only, run, cond(reps, ">=", 1))

	session := h.seedSession(root.RootID, true)
	h.linkSessionGoal(session, only)
	h.seedInstance(session, run, true, metricVal(reps, 2))
	h.emit(sessionCompletedEvent(session))

	// The child completed through its target, not through its (absent)
	// children; the root completed because its only child is done.
	if got := h.reloadGoal(only.ID); !got.Completed || got.CompletionReason != types.GoalCompletionAllTargets {
		t.Fatalf("child: want completed via targets, got completed=%v reason=%q", got.Completed, got.CompletionReason)
	}
	if got := h.reloadGoal(root.ID); !got.Completed || got.CompletionReason != types.GoalCompletionAllChildren {
		t.Fatalf("root: want completed via children, got completed=%v reason=%q", got.Completed, got.CompletionReason)
	}
}

func TestGoalWithoutTargetsNeverAutoCompletes(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)

	result := h.emit(sessionCompletedEvent(session))
	if !result.Empty() {
		t.Fatalf("no targets means nothing to cascade, got %+v", result)
	}
	if h.reloadGoal(goal.ID).Completed {
		t.Fatalf("goal without targets must not auto-complete")
	}
}

func TestInstanceCompletedEventCompletesThresholdTarget(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	pushup := uuid.New()
	target := h.seedThresholdTarget(goal, pushup, cond(reps, ">=", 20))
	session := h.seedSession(goal.RootID, false)
	inst := h.seedInstance(session, pushup, true, metricVal(reps, 25))

	result := h.emit(events.ActivityInstanceCompleted{
		Meta:       events.NewMeta("test"),
		InstanceID: inst.ID,
		SessionID:  session.ID,
		RootID:     goal.RootID,
		ActivityID: pushup,
	})

	if len(result.AchievedTargets) != 1 || result.AchievedTargets[0] != target.ID {
		t.Fatalf("achieved targets: want=[%s] got=%v", target.ID, result.AchievedTargets)
	}
	gotTarget := h.reloadTarget(target.ID)
	if gotTarget.CompletedInstanceID == nil || *gotTarget.CompletedInstanceID != inst.ID {
		t.Fatalf("completed_instance_id: want=%s got=%v", inst.ID, gotTarget.CompletedInstanceID)
	}
	if gotTarget.CompletedSessionID == nil || *gotTarget.CompletedSessionID != session.ID {
		t.Fatalf("completed_session_id: want=%s got=%v", session.ID, gotTarget.CompletedSessionID)
	}
	if !h.reloadGoal(goal.ID).Completed {
		t.Fatalf("goal should complete, its only target is done")
	}
}

func TestInstanceUpdateFlipsCompletionBothWays(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	pullup := uuid.New()
	target := h.seedThresholdTarget(goal, pullup, cond(reps, ">=", 10))
	session := h.seedSession(goal.RootID, false)
	inst := h.seedInstance(session, pullup, true, metricVal(reps, 11))

	updated := func(fields ...string) events.Event {
		return events.ActivityInstanceUpdated{
			Meta:          events.NewMeta("test"),
			InstanceID:    inst.ID,
			SessionID:     session.ID,
			RootID:        goal.RootID,
			UpdatedFields: fields,
		}
	}

	// An update not touching completion is ignored.
	result := h.emit(updated("position"))
	if !result.Empty() {
		t.Fatalf("position update must not cascade, got %+v", result)
	}

	result = h.emit(updated("completed"))
	if len(result.AchievedTargets) != 1 {
		t.Fatalf("achieved targets: want=1 got=%v", result.AchievedTargets)
	}
	if !h.reloadTarget(target.ID).Completed {
		t.Fatalf("target should be completed")
	}

	// Flip the instance back to incomplete; the same update kind reverts.
	if err := h.instances.UpdateFields(h.dbc, inst.ID, map[string]interface{}{
		"completed":    false,
		"completed_at": nil,
	}); err != nil {
		t.Fatalf("un-complete instance: %v", err)
	}
	result = h.emit(updated("completed"))
	if len(result.RevertedTargets) != 1 || result.RevertedTargets[0] != target.ID {
		t.Fatalf("reverted targets: want=[%s] got=%v", target.ID, result.RevertedTargets)
	}
	if h.reloadTarget(target.ID).Completed {
		t.Fatalf("target should be reopened")
	}
}

func TestMalformedEventsAreNoOps(t *testing.T) {
	h := newCascadeHarness(t)

	results := h.bus.Emit(h.dbc, events.SessionCompleted{Meta: events.NewMeta("test")})
	if got := CollectCascadeResults(results); !got.Empty() {
		t.Fatalf("nil session id must no-op, got %+v", got)
	}
	results = h.bus.Emit(h.dbc, events.SessionCompleted{Meta: events.NewMeta("test"), SessionID: uuid.New()})
	if got := CollectCascadeResults(results); !got.Empty() {
		t.Fatalf("unknown session must no-op, got %+v", got)
	}
	results = h.bus.Emit(h.dbc, events.ActivityInstanceDeleted{Meta: events.NewMeta("test")})
	if got := CollectCascadeResults(results); !got.Empty() {
		t.Fatalf("nil instance id must no-op, got %+v", got)
	}
}

func TestAuditTrailRecordsWholeCascade(t *testing.T) {
	h := newCascadeHarness(t)
	goal := h.seedRootGoal()
	reps := uuid.New()
	squat := uuid.New()
	h.seedThresholdTarget(goal, squat, cond(reps, ">=", 10))
	session := h.seedSession(goal.RootID, true)
	h.linkSessionGoal(session, goal)
	h.seedInstance(session, squat, true, metricVal(reps, 12))

	h.emit(sessionCompletedEvent(session))

	rootID := goal.RootID
	for _, want := range []events.Kind{
		events.KindSessionCompleted,
		events.KindTargetAchieved,
		events.KindGoalCompleted,
	} {
		n, err := h.eventLogs.CountByName(h.dbc, string(want), &rootID)
		if err != nil {
			t.Fatalf("count %s: %v", want, err)
		}
		if n != 1 {
			t.Fatalf("event_log rows for %s: want=1 got=%d", want, n)
		}
	}
	trail, err := h.eventLogs.GetByRootID(h.dbc, rootID, 0)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length: want=3 got=%d", len(trail))
	}
	for _, row := range trail {
		if row.EventID == uuid.Nil || len(row.Data) == 0 {
			t.Fatalf("trail row missing identity or payload: %+v", row)
		}
	}
}
