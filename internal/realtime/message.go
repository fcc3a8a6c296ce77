// Package realtime fans completion updates out to connected clients. The
// Hub handles in-process delivery; the bus subpackage carries messages
// across processes over Redis pub/sub.
package realtime

// Event names the kind of update a message carries.
type Event string

const (
	// EventCascadeApplied summarizes everything one committed cascade
	// changed for a fractal.
	EventCascadeApplied Event = "CascadeApplied"

	EventTargetAchieved  Event = "TargetAchieved"
	EventGoalCompleted   Event = "GoalCompleted"
	EventGoalUncompleted Event = "GoalUncompleted"
	EventProgramUpdated  Event = "ProgramUpdated"
)

// Message is one realtime update. Channel scopes delivery, by convention
// "<prefix>:<root_id>" so a client follows one fractal tree.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}
