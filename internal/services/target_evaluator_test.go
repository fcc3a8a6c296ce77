package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/data/repos/testutil"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
)

// pureEvaluator needs no database: threshold evaluation and the fail-closed
// guards never touch the repos.
func pureEvaluator(t *testing.T) *TargetEvaluator {
	t.Helper()
	return NewTargetEvaluator(testutil.Logger(t), nil, nil)
}

func thresholdTargetFor(activityID uuid.UUID, conds ...types.MetricCondition) *types.Target {
	return &types.Target{
		ID:               uuid.New(),
		GoalID:           uuid.New(),
		Type:             types.TargetTypeThreshold,
		ActivityID:       &activityID,
		MetricConditions: types.EncodeMetricConditions(conds),
		TimeScope:        types.TimeScopeAllTime,
	}
}

func flatInstance(activityID uuid.UUID, values ...types.MetricValue) *types.ActivityInstance {
	return &types.ActivityInstance{
		ID:           uuid.New(),
		SessionID:    uuid.New(),
		ActivityID:   activityID,
		Completed:    true,
		MetricValues: types.EncodeMetricValues(values),
	}
}

func bundle(instances ...*types.ActivityInstance) map[uuid.UUID][]*types.ActivityInstance {
	out := make(map[uuid.UUID][]*types.ActivityInstance)
	for _, inst := range instances {
		out[inst.ActivityID] = append(out[inst.ActivityID], inst)
	}
	return out
}

func TestThresholdRequiresOneInstanceMeetingAllConditions(t *testing.T) {
	e := pureEvaluator(t)
	reps := uuid.New()
	weight := uuid.New()
	bench := uuid.New()
	target := thresholdTargetFor(bench, cond(reps, ">=", 8), cond(weight, ">=", 80))

	// Conditions split across instances never satisfy.
	split := bundle(
		flatInstance(bench, metricVal(reps, 10)),
		flatInstance(bench, metricVal(weight, 100)),
	)
	if got := e.EvaluateThreshold(target, split); got.Satisfied {
		t.Fatalf("split conditions must not satisfy")
	}

	winner := flatInstance(bench, metricVal(reps, 8), metricVal(weight, 82.5))
	together := bundle(flatInstance(bench, metricVal(reps, 10)), winner)
	got := e.EvaluateThreshold(target, together)
	if !got.Satisfied {
		t.Fatalf("one instance meeting both conditions should satisfy")
	}
	if got.InstanceID == nil || *got.InstanceID != winner.ID {
		t.Fatalf("instance id: want=%s got=%v", winner.ID, got.InstanceID)
	}
}

func TestThresholdSetBundlesEvaluateIndependently(t *testing.T) {
	e := pureEvaluator(t)
	reps := uuid.New()
	weight := uuid.New()
	squat := uuid.New()
	target := thresholdTargetFor(squat, cond(reps, ">=", 5), cond(weight, ">=", 100))

	inst := &types.ActivityInstance{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		ActivityID: squat,
		Completed:  true,
		Sets: types.EncodeSetGroups([]types.SetGroup{
			{Position: 1, Metrics: []types.MetricValue{metricVal(reps, 8), metricVal(weight, 60)}},
			{Position: 2, Metrics: []types.MetricValue{metricVal(reps, 5), metricVal(weight, 105)}},
		}),
	}
	got := e.EvaluateThreshold(target, bundle(inst))
	if !got.Satisfied {
		t.Fatalf("second set meets both conditions, should satisfy")
	}

	// Sets do not pool: reps from one set and weight from another is not
	// a satisfying bundle.
	pooled := &types.ActivityInstance{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		ActivityID: squat,
		Completed:  true,
		Sets: types.EncodeSetGroups([]types.SetGroup{
			{Position: 1, Metrics: []types.MetricValue{metricVal(reps, 8)}},
			{Position: 2, Metrics: []types.MetricValue{metricVal(weight, 110)}},
		}),
	}
	if got := e.EvaluateThreshold(target, bundle(pooled)); got.Satisfied {
		t.Fatalf("conditions must hold within a single set")
	}
}

func TestThresholdEqualityUsesEpsilon(t *testing.T) {
	e := pureEvaluator(t)
	pace := uuid.New()
	run := uuid.New()

	near := thresholdTargetFor(run, cond(pace, "==", 5))
	if got := e.EvaluateThreshold(near, bundle(flatInstance(run, metricVal(pace, 5.0005)))); !got.Satisfied {
		t.Fatalf("5.0005 should equal 5 within epsilon")
	}
	if got := e.EvaluateThreshold(near, bundle(flatInstance(run, metricVal(pace, 5.01)))); got.Satisfied {
		t.Fatalf("5.01 should not equal 5")
	}

	// The single-equals spelling normalizes to the same comparison.
	spelled := thresholdTargetFor(run, types.MetricCondition{MetricID: pace, Operator: "=", Value: 5})
	if got := e.EvaluateThreshold(spelled, bundle(flatInstance(run, metricVal(pace, 5)))); !got.Satisfied {
		t.Fatalf("= should behave as ==")
	}
}

func TestThresholdFailsClosed(t *testing.T) {
	e := pureEvaluator(t)
	reps := uuid.New()
	row := uuid.New()

	// No conditions.
	bare := thresholdTargetFor(row)
	if got := e.EvaluateThreshold(bare, bundle(flatInstance(row, metricVal(reps, 100)))); got.Satisfied {
		t.Fatalf("a target without conditions must never satisfy")
	}

	// No activity.
	detached := thresholdTargetFor(row, cond(reps, ">=", 1))
	detached.ActivityID = nil
	if got := e.EvaluateThreshold(detached, bundle(flatInstance(row, metricVal(reps, 100)))); got.Satisfied {
		t.Fatalf("a target without an activity must never satisfy")
	}

	// Unreadable value.
	target := thresholdTargetFor(row, cond(reps, ">=", 1))
	if got := e.EvaluateThreshold(target, bundle(flatInstance(row, metricVal(reps, "a lot")))); got.Satisfied {
		t.Fatalf("non-numeric values must fail closed")
	}

	// Unknown operator.
	weird := thresholdTargetFor(row, types.MetricCondition{MetricID: reps, Operator: "!=", Value: 5})
	if got := e.EvaluateThreshold(weird, bundle(flatInstance(row, metricVal(reps, 10)))); got.Satisfied {
		t.Fatalf("unknown operators must fail closed")
	}

	// Condition metric absent from the instance.
	other := uuid.New()
	missing := thresholdTargetFor(row, cond(other, ">=", 1))
	if got := e.EvaluateThreshold(missing, bundle(flatInstance(row, metricVal(reps, 10)))); got.Satisfied {
		t.Fatalf("missing metrics must fail closed")
	}
}

func TestNumericStringsCoerce(t *testing.T) {
	e := pureEvaluator(t)
	reps := uuid.New()
	row := uuid.New()
	target := thresholdTargetFor(row, cond(reps, ">=", 10))
	if got := e.EvaluateThreshold(target, bundle(flatInstance(row, metricVal(reps, "12")))); !got.Satisfied {
		t.Fatalf("numeric strings should coerce and satisfy")
	}
}

func TestEvaluateUnknownTypeFailsClosed(t *testing.T) {
	e := pureEvaluator(t)
	reps := uuid.New()
	row := uuid.New()
	target := thresholdTargetFor(row, cond(reps, ">=", 1))
	target.Type = "streak"

	got, err := e.Evaluate(dbctx.Context{}, target, bundle(flatInstance(row, metricVal(reps, 5))))
	if err != nil {
		t.Fatalf("unknown type is not an error: %v", err)
	}
	if got.Satisfied {
		t.Fatalf("unknown type must fail closed")
	}
}

func TestFrequencyWithoutCountFailsClosed(t *testing.T) {
	e := pureEvaluator(t)
	activity := uuid.New()
	target := &types.Target{
		ID:         uuid.New(),
		GoalID:     uuid.New(),
		Type:       types.TargetTypeFrequency,
		ActivityID: &activity,
		TimeScope:  types.TimeScopeAllTime,
	}
	got, err := e.EvaluateFrequency(dbctx.Context{}, target)
	if err != nil {
		t.Fatalf("evaluate frequency: %v", err)
	}
	if got.Satisfied {
		t.Fatalf("frequency_count of zero must fail closed")
	}
}

func TestUnknownTimeScopeFailsClosed(t *testing.T) {
	e := pureEvaluator(t)
	distance := uuid.New()
	activity := uuid.New()
	target := &types.Target{
		ID:               uuid.New(),
		GoalID:           uuid.New(),
		Type:             types.TargetTypeSum,
		ActivityID:       &activity,
		MetricConditions: types.EncodeMetricConditions([]types.MetricCondition{cond(distance, ">=", 1)}),
		TimeScope:        "fortnight",
	}
	got, err := e.EvaluateSum(dbctx.Context{}, target)
	if err != nil {
		t.Fatalf("evaluate sum: %v", err)
	}
	if got.Satisfied {
		t.Fatalf("unknown time scope must fail closed")
	}
	if got.TargetValue != 1 {
		t.Fatalf("target value should still report the primary condition, got %v", got.TargetValue)
	}
}

func TestBlockScopedTargetWithMissingBlockFailsClosed(t *testing.T) {
	h := newCascadeHarness(t)
	e := NewTargetEvaluator(testutil.Logger(t), h.instances, h.blocks)
	distance := uuid.New()
	activity := uuid.New()
	goneBlock := uuid.New()
	target := &types.Target{
		ID:               uuid.New(),
		GoalID:           uuid.New(),
		Type:             types.TargetTypeSum,
		ActivityID:       &activity,
		MetricConditions: types.EncodeMetricConditions([]types.MetricCondition{cond(distance, ">=", 1)}),
		TimeScope:        types.TimeScopeProgramBlock,
		LinkedBlockID:    &goneBlock,
	}
	got, err := e.EvaluateSum(h.dbc, target)
	if err != nil {
		t.Fatalf("evaluate sum: %v", err)
	}
	if got.Satisfied {
		t.Fatalf("a dangling block link must fail closed")
	}
}

func TestSumRequiresEveryConditionMetricLogged(t *testing.T) {
	h := newCascadeHarness(t)
	e := NewTargetEvaluator(testutil.Logger(t), h.instances, h.blocks)
	goal := h.seedRootGoal()
	distance := uuid.New()
	calories := uuid.New()
	run := uuid.New()
	target := h.seedSumTarget(goal, run, cond(distance, ">=", 5), cond(calories, ">=", 1))

	session := h.seedSession(goal.RootID, true)
	h.seedInstance(session, run, true, metricVal(distance, 50))

	got, err := e.EvaluateSum(h.dbc, target)
	if err != nil {
		t.Fatalf("evaluate sum: %v", err)
	}
	if got.Satisfied {
		t.Fatalf("a condition on a never-logged metric must fail closed")
	}
	if got.CurrentValue != 50 {
		t.Fatalf("primary progress: want=50 got=%v", got.CurrentValue)
	}
}

func TestSumAddsFlatAndSetRows(t *testing.T) {
	h := newCascadeHarness(t)
	e := NewTargetEvaluator(testutil.Logger(t), h.instances, h.blocks)
	goal := h.seedRootGoal()
	distance := uuid.New()
	ski := uuid.New()
	target := h.seedSumTarget(goal, ski, cond(distance, ">=", 9))

	session := h.seedSession(goal.RootID, true)
	inst := h.seedInstance(session, ski, true, metricVal(distance, 3))
	if err := h.instances.UpdateFields(h.dbc, inst.ID, map[string]interface{}{
		"sets": types.EncodeSetGroups([]types.SetGroup{
			{Position: 1, Metrics: []types.MetricValue{metricVal(distance, 2)}},
			{Position: 2, Metrics: []types.MetricValue{metricVal(distance, 4)}},
		}),
	}); err != nil {
		t.Fatalf("attach sets: %v", err)
	}
	// An incomplete instance contributes nothing.
	h.seedInstance(session, ski, false, metricVal(distance, 100))

	got, err := e.EvaluateSum(h.dbc, target)
	if err != nil {
		t.Fatalf("evaluate sum: %v", err)
	}
	if !got.Satisfied {
		t.Fatalf("3+2+4 meets 9, should satisfy")
	}
	if got.CurrentValue != 9 {
		t.Fatalf("total: want=9 got=%v", got.CurrentValue)
	}
}

func TestCustomWindowBoundsSum(t *testing.T) {
	h := newCascadeHarness(t)
	e := NewTargetEvaluator(testutil.Logger(t), h.instances, h.blocks)
	goal := h.seedRootGoal()
	distance := uuid.New()
	walk := uuid.New()

	from := time.Now().AddDate(0, 0, -2)
	target := &types.Target{
		ID:               uuid.New(),
		GoalID:           goal.ID,
		Type:             types.TargetTypeSum,
		ActivityID:       &walk,
		MetricConditions: types.EncodeMetricConditions([]types.MetricCondition{cond(distance, ">=", 4)}),
		TimeScope:        types.TimeScopeCustom,
		StartDate:        &from,
	}
	if _, err := h.targets.Create(h.dbc, []*types.Target{target}); err != nil {
		t.Fatalf("create target: %v", err)
	}

	session := h.seedSession(goal.RootID, true)
	old := h.seedInstance(session, walk, true, metricVal(distance, 10))
	past := time.Now().AddDate(0, 0, -10)
	if err := h.instances.UpdateFields(h.dbc, old.ID, map[string]interface{}{"completed_at": past}); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	h.seedInstance(session, walk, true, metricVal(distance, 5))

	got, err := e.EvaluateSum(h.dbc, target)
	if err != nil {
		t.Fatalf("evaluate sum: %v", err)
	}
	if !got.Satisfied || got.CurrentValue != 5 {
		t.Fatalf("window total: want satisfied with 5, got satisfied=%v value=%v", got.Satisfied, got.CurrentValue)
	}
}
