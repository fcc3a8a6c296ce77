// Package events defines the closed set of domain events and the in-process
// synchronous bus that dispatches them.
//
// Every event kind is a dot-namespaced constant with a dedicated payload
// struct, so subscribers get typed payloads instead of map lookups. The set
// is closed on purpose: adding a kind means adding a payload here, not
// inventing a string at a call site.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies one event type. The segment before the dot is the
// namespace ("goal" in "goal.completed") used for prefix subscriptions.
type Kind string

const (
	KindSessionCompleted          Kind = "session.completed"
	KindActivityInstanceCompleted Kind = "activity_instance.completed"
	KindActivityInstanceUpdated   Kind = "activity_instance.updated"
	KindActivityInstanceDeleted   Kind = "activity_instance.deleted"
	KindTargetAchieved            Kind = "target.achieved"
	KindTargetReverted            Kind = "target.reverted"
	KindGoalCompleted             Kind = "goal.completed"
	KindGoalUncompleted           Kind = "goal.uncompleted"
	KindProgramDayCompleted       Kind = "program_day.completed"
	KindProgramBlockCompleted     Kind = "program_block.completed"
	KindProgramCompleted          Kind = "program.completed"
	KindProgramUpdated            Kind = "program.updated"
)

const (
	NamespaceSession          = "session"
	NamespaceActivityInstance = "activity_instance"
	NamespaceTarget           = "target"
	NamespaceGoal             = "goal"
	NamespaceProgramDay       = "program_day"
	NamespaceProgramBlock     = "program_block"
	NamespaceProgram          = "program"
)

// Namespace returns the segment before the first dot, or the whole kind if
// it has none.
func (k Kind) Namespace() string {
	s := string(k)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Sources recorded on emitted events, so the audit trail shows who emitted
// what.
const (
	SourceCascade   = "cascade_engine"
	SourceReversion = "reversion_engine"
	SourceRecompute = "recompute"
)

// Meta carries the identity every event shares. Producers build it with
// NewMeta; events are immutable once emitted.
type Meta struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Source     string    `json:"source,omitempty"`
}

func NewMeta(source string) Meta {
	return Meta{ID: uuid.New(), OccurredAt: time.Now().UTC(), Source: source}
}

// EventMeta implements half of Event for every payload embedding Meta.
func (m Meta) EventMeta() Meta { return m }

// Event is the closed union of payloads below.
type Event interface {
	EventKind() Kind
	EventMeta() Meta
}

type SessionCompleted struct {
	Meta
	SessionID uuid.UUID `json:"session_id"`
	RootID    uuid.UUID `json:"root_id"`
}

func (SessionCompleted) EventKind() Kind { return KindSessionCompleted }

type ActivityInstanceCompleted struct {
	Meta
	InstanceID  uuid.UUID  `json:"instance_id"`
	SessionID   uuid.UUID  `json:"session_id"`
	RootID      uuid.UUID  `json:"root_id"`
	ActivityID  uuid.UUID  `json:"activity_definition_id"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (ActivityInstanceCompleted) EventKind() Kind { return KindActivityInstanceCompleted }

type ActivityInstanceUpdated struct {
	Meta
	InstanceID    uuid.UUID `json:"instance_id"`
	SessionID     uuid.UUID `json:"session_id"`
	RootID        uuid.UUID `json:"root_id"`
	UpdatedFields []string  `json:"updated_fields"`
}

func (ActivityInstanceUpdated) EventKind() Kind { return KindActivityInstanceUpdated }

// Touched reports whether a field name is in UpdatedFields.
func (e ActivityInstanceUpdated) Touched(field string) bool {
	for _, f := range e.UpdatedFields {
		if strings.EqualFold(strings.TrimSpace(f), field) {
			return true
		}
	}
	return false
}

type ActivityInstanceDeleted struct {
	Meta
	InstanceID uuid.UUID `json:"instance_id"`
	RootID     uuid.UUID `json:"root_id"`
}

func (ActivityInstanceDeleted) EventKind() Kind { return KindActivityInstanceDeleted }

type TargetAchieved struct {
	Meta
	TargetID   uuid.UUID  `json:"target_id"`
	GoalID     uuid.UUID  `json:"goal_id"`
	RootID     uuid.UUID  `json:"root_id"`
	SessionID  *uuid.UUID `json:"session_id,omitempty"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
}

func (TargetAchieved) EventKind() Kind { return KindTargetAchieved }

type TargetReverted struct {
	Meta
	TargetID   uuid.UUID `json:"target_id"`
	GoalID     uuid.UUID `json:"goal_id"`
	RootID     uuid.UUID `json:"root_id"`
	InstanceID uuid.UUID `json:"instance_id"`
}

func (TargetReverted) EventKind() Kind { return KindTargetReverted }

type GoalCompleted struct {
	Meta
	GoalID uuid.UUID `json:"goal_id"`
	RootID uuid.UUID `json:"root_id"`
	Reason string    `json:"reason,omitempty"` // manual|all_targets_achieved|children_completed
}

func (GoalCompleted) EventKind() Kind { return KindGoalCompleted }

type GoalUncompleted struct {
	Meta
	GoalID uuid.UUID `json:"goal_id"`
	RootID uuid.UUID `json:"root_id"`
	Reason string    `json:"reason,omitempty"` // target_reverted
}

func (GoalUncompleted) EventKind() Kind { return KindGoalUncompleted }

type ProgramDayCompleted struct {
	Meta
	DayID     uuid.UUID `json:"day_id"`
	BlockID   uuid.UUID `json:"block_id"`
	ProgramID uuid.UUID `json:"program_id"`
	RootID    uuid.UUID `json:"root_id"`
}

func (ProgramDayCompleted) EventKind() Kind { return KindProgramDayCompleted }

type ProgramBlockCompleted struct {
	Meta
	BlockID   uuid.UUID `json:"block_id"`
	ProgramID uuid.UUID `json:"program_id"`
	RootID    uuid.UUID `json:"root_id"`
}

func (ProgramBlockCompleted) EventKind() Kind { return KindProgramBlockCompleted }

type ProgramCompleted struct {
	Meta
	ProgramID uuid.UUID `json:"program_id"`
	RootID    uuid.UUID `json:"root_id"`
}

func (ProgramCompleted) EventKind() Kind { return KindProgramCompleted }

type ProgramUpdated struct {
	Meta
	ProgramID            uuid.UUID `json:"program_id"`
	RootID               uuid.UUID `json:"root_id"`
	GoalsCompleted       int       `json:"goals_completed"`
	GoalsTotal           int       `json:"goals_total"`
	CompletionPercentage float64   `json:"completion_percentage"`
}

func (ProgramUpdated) EventKind() Kind { return KindProgramUpdated }

// RootOf pulls the fractal root id off any event that carries one, for
// subscribers that scope work per root (audit, realtime fan-out).
func RootOf(e Event) *uuid.UUID {
	var id uuid.UUID
	switch t := e.(type) {
	case SessionCompleted:
		id = t.RootID
	case ActivityInstanceCompleted:
		id = t.RootID
	case ActivityInstanceUpdated:
		id = t.RootID
	case ActivityInstanceDeleted:
		id = t.RootID
	case TargetAchieved:
		id = t.RootID
	case TargetReverted:
		id = t.RootID
	case GoalCompleted:
		id = t.RootID
	case GoalUncompleted:
		id = t.RootID
	case ProgramDayCompleted:
		id = t.RootID
	case ProgramBlockCompleted:
		id = t.RootID
	case ProgramCompleted:
		id = t.RootID
	case ProgramUpdated:
		id = t.RootID
	}
	if id == uuid.Nil {
		return nil
	}
	return &id
}
