package services

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// epsilonEquals tolerates floating point noise on == conditions.
const epsilonEquals = 0.001

// TargetEvaluation reports one evaluation pass over a target. InstanceID is
// set for satisfied threshold targets when a single satisfying instance is
// resolvable. CurrentValue/TargetValue mirror the primary (first) condition
// for progress display; only sum evaluation persists them.
type TargetEvaluation struct {
	Satisfied    bool
	InstanceID   *uuid.UUID
	CurrentValue float64
	TargetValue  float64
}

// TargetEvaluator decides whether a target's criterion is met. Threshold
// evaluation is pure over the instances handed in; sum and frequency read
// their window through the instance repo. Every unreadable input fails
// closed: the target stays unsatisfied and no error is raised.
type TargetEvaluator struct {
	log       *logger.Logger
	instances repos.ActivityInstanceRepo
	blocks    repos.ProgramBlockRepo
}

func NewTargetEvaluator(baseLog *logger.Logger, instances repos.ActivityInstanceRepo, blocks repos.ProgramBlockRepo) *TargetEvaluator {
	return &TargetEvaluator{
		log:       baseLog.With("service", "TargetEvaluator"),
		instances: instances,
		blocks:    blocks,
	}
}

// Evaluate dispatches on the target's type. byActivity carries the
// triggering context's instances grouped by activity id; only threshold
// targets read it. Unknown types fail closed.
func (e *TargetEvaluator) Evaluate(dbc dbctx.Context, target *types.Target, byActivity map[uuid.UUID][]*types.ActivityInstance) (TargetEvaluation, error) {
	if target == nil {
		return TargetEvaluation{}, nil
	}
	switch target.Type {
	case types.TargetTypeThreshold:
		return e.EvaluateThreshold(target, byActivity), nil
	case types.TargetTypeSum:
		return e.EvaluateSum(dbc, target)
	case types.TargetTypeFrequency:
		return e.EvaluateFrequency(dbc, target)
	default:
		e.log.Warn("Unknown target type, failing closed", "target_id", target.ID, "type", target.Type)
		return TargetEvaluation{}, nil
	}
}

// EvaluateThreshold is satisfied when any single instance of the target's
// activity meets every condition at once, either through its flat metric
// values or through one per-set bundle. Conditions are never satisfied by
// different instances each covering one of them.
func (e *TargetEvaluator) EvaluateThreshold(target *types.Target, byActivity map[uuid.UUID][]*types.ActivityInstance) TargetEvaluation {
	if target == nil || target.ActivityID == nil || *target.ActivityID == uuid.Nil {
		return TargetEvaluation{}
	}
	conditions := types.DecodeMetricConditions(target.MetricConditions)
	if len(conditions) == 0 {
		return TargetEvaluation{}
	}
	for _, inst := range byActivity[*target.ActivityID] {
		if inst == nil {
			continue
		}
		if bundleSatisfies(flatValues(inst), conditions) {
			id := inst.ID
			return TargetEvaluation{Satisfied: true, InstanceID: &id}
		}
		for _, set := range types.DecodeSetGroups(inst.Sets) {
			if bundleSatisfies(metricValueMap(set.Metrics), conditions) {
				id := inst.ID
				return TargetEvaluation{Satisfied: true, InstanceID: &id}
			}
		}
	}
	return TargetEvaluation{}
}

// EvaluateSum totals metric values per metric id across every completed
// instance of the activity in the target's window, flat rows and set rows
// alike, and requires every condition to hold against its total.
func (e *TargetEvaluator) EvaluateSum(dbc dbctx.Context, target *types.Target) (TargetEvaluation, error) {
	if target == nil || target.ActivityID == nil || *target.ActivityID == uuid.Nil {
		return TargetEvaluation{}, nil
	}
	conditions := types.DecodeMetricConditions(target.MetricConditions)
	if len(conditions) == 0 {
		return TargetEvaluation{}, nil
	}

	from, to, ok, err := e.window(dbc, target)
	if err != nil {
		return TargetEvaluation{}, err
	}
	primary := conditions[0]
	out := TargetEvaluation{TargetValue: primary.Value}
	if !ok {
		return out, nil
	}

	rows, err := e.instances.GetCompletedByActivityInWindow(dbc, *target.ActivityID, from, to)
	if err != nil {
		return TargetEvaluation{}, err
	}
	totals := map[uuid.UUID]float64{}
	seen := map[uuid.UUID]bool{}
	for _, inst := range rows {
		if inst == nil {
			continue
		}
		accumulate(totals, seen, flatValues(inst))
		for _, set := range types.DecodeSetGroups(inst.Sets) {
			accumulate(totals, seen, metricValueMap(set.Metrics))
		}
	}

	out.CurrentValue = totals[primary.MetricID]
	satisfied := true
	for _, c := range conditions {
		if !seen[c.MetricID] || !conditionMet(c.Operator, totals[c.MetricID], c.Value) {
			satisfied = false
			break
		}
	}
	out.Satisfied = satisfied
	return out, nil
}

// EvaluateFrequency counts distinct sessions holding completed instances of
// the activity in the window, not instances, and is satisfied at
// FrequencyCount sessions. A non-positive FrequencyCount fails closed.
func (e *TargetEvaluator) EvaluateFrequency(dbc dbctx.Context, target *types.Target) (TargetEvaluation, error) {
	if target == nil || target.ActivityID == nil || *target.ActivityID == uuid.Nil {
		return TargetEvaluation{}, nil
	}
	if target.FrequencyCount <= 0 {
		return TargetEvaluation{}, nil
	}
	from, to, ok, err := e.window(dbc, target)
	if err != nil {
		return TargetEvaluation{}, err
	}
	out := TargetEvaluation{TargetValue: float64(target.FrequencyCount)}
	if !ok {
		return out, nil
	}
	count, err := e.instances.DistinctSessionCountByActivityInWindow(dbc, *target.ActivityID, from, to)
	if err != nil {
		return TargetEvaluation{}, err
	}
	out.CurrentValue = float64(count)
	out.Satisfied = count >= int64(target.FrequencyCount)
	return out, nil
}

// window resolves the evaluation window from the target's time scope. ok is
// false when the scope cannot be resolved (unknown scope, or a
// program_block scope whose block is gone), which fails the evaluation
// closed. Nil bounds leave that side open.
func (e *TargetEvaluator) window(dbc dbctx.Context, target *types.Target) (from, to *time.Time, ok bool, err error) {
	switch target.TimeScope {
	case types.TimeScopeCustom:
		return target.StartDate, target.EndDate, true, nil
	case types.TimeScopeProgramBlock:
		if target.LinkedBlockID == nil || *target.LinkedBlockID == uuid.Nil {
			return nil, nil, false, nil
		}
		block, err := e.blocks.GetByID(dbc, *target.LinkedBlockID)
		if err != nil {
			return nil, nil, false, err
		}
		if block == nil {
			e.log.Warn("Linked block missing, failing window closed", "target_id", target.ID, "block_id", *target.LinkedBlockID)
			return nil, nil, false, nil
		}
		return block.StartDate, block.EndDate, true, nil
	case types.TimeScopeAllTime, "":
		// Frequency over all time still rolls over the configured
		// trailing days when set.
		if target.Type == types.TargetTypeFrequency && target.FrequencyDays > 0 {
			f := time.Now().AddDate(0, 0, -target.FrequencyDays)
			return &f, nil, true, nil
		}
		return nil, nil, true, nil
	default:
		e.log.Warn("Unknown time scope, failing window closed", "target_id", target.ID, "time_scope", target.TimeScope)
		return nil, nil, false, nil
	}
}

// conditionMet compares one readable value against a condition. Equality is
// within epsilonEquals; unknown operators fail closed.
func conditionMet(op string, have, want float64) bool {
	switch types.NormalizeOperator(op) {
	case ">=":
		return have >= want
	case "<=":
		return have <= want
	case ">":
		return have > want
	case "<":
		return have < want
	case "==":
		return math.Abs(have-want) < epsilonEquals
	default:
		return false
	}
}

// bundleSatisfies requires every condition's metric to be present and
// passing within the one bundle.
func bundleSatisfies(values map[uuid.UUID]float64, conditions []types.MetricCondition) bool {
	if len(values) == 0 || len(conditions) == 0 {
		return false
	}
	for _, c := range conditions {
		have, present := values[c.MetricID]
		if !present || !conditionMet(c.Operator, have, c.Value) {
			return false
		}
	}
	return true
}

// flatValues reads an instance's flat metric rows into a map, dropping
// values that do not coerce to numbers. Later duplicates win.
func flatValues(inst *types.ActivityInstance) map[uuid.UUID]float64 {
	return metricValueMap(types.DecodeMetricValues(inst.MetricValues))
}

func metricValueMap(list []types.MetricValue) map[uuid.UUID]float64 {
	if len(list) == 0 {
		return nil
	}
	out := map[uuid.UUID]float64{}
	for _, mv := range list {
		if mv.MetricID == uuid.Nil {
			continue
		}
		v, ok := types.CoerceMetricValue(mv.Value)
		if !ok {
			continue
		}
		out[mv.MetricID] = v
	}
	return out
}

func accumulate(totals map[uuid.UUID]float64, seen map[uuid.UUID]bool, values map[uuid.UUID]float64) {
	for id, v := range values {
		totals[id] += v
		seen[id] = true
	}
}
