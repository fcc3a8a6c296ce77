package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/platform/logger"
	"github.com/yungbote/fractal-backend/internal/realtime"
	"github.com/yungbote/fractal-backend/internal/realtime/bus"
)

// CascadeNotifier pushes the outcome of a committed cascade to realtime
// subscribers. Call it after the transaction commits, never inside it;
// subscribers must not observe state that can still roll back. Every
// method is fire-and-forget and nil-safe so callers never branch on
// whether realtime is configured.
type CascadeNotifier interface {
	CascadeApplied(ctx context.Context, rootID uuid.UUID, result *CascadeResult)
}

type cascadeNotifier struct {
	log    *logger.Logger
	bus    bus.Bus
	prefix string
}

// NewCascadeNotifier wraps the realtime bus. A nil bus yields a notifier
// that only logs, which is how headless runs (migrations, tests) operate.
func NewCascadeNotifier(baseLog *logger.Logger, b bus.Bus, prefix string) CascadeNotifier {
	if prefix == "" {
		prefix = "fractal"
	}
	return &cascadeNotifier{
		log:    baseLog.With("service", "CascadeNotifier"),
		bus:    b,
		prefix: prefix,
	}
}

func (n *cascadeNotifier) CascadeApplied(ctx context.Context, rootID uuid.UUID, result *CascadeResult) {
	if n == nil || rootID == uuid.Nil || result.Empty() {
		return
	}
	if n.bus == nil {
		n.log.Debug("Realtime bus not configured, skipping publish", "root_id", rootID)
		return
	}
	channel := n.prefix + ":" + rootID.String()

	n.publish(ctx, realtime.Message{
		Channel: channel,
		Event:   realtime.EventCascadeApplied,
		Data: map[string]any{
			"root_id":            rootID,
			"achieved_targets":   result.AchievedTargets,
			"completed_goals":    result.CompletedGoals,
			"uncompleted_goals":  result.UncompletedGoals,
			"reverted_targets":   result.RevertedTargets,
			"completed_days":     result.CompletedDays,
			"completed_blocks":   result.CompletedBlocks,
			"completed_programs": result.CompletedPrograms,
			"updated_programs":   result.UpdatedPrograms,
		},
	})
	for _, goalID := range result.CompletedGoals {
		n.publish(ctx, realtime.Message{
			Channel: channel,
			Event:   realtime.EventGoalCompleted,
			Data:    map[string]any{"goal_id": goalID, "root_id": rootID},
		})
	}
	for _, goalID := range result.UncompletedGoals {
		n.publish(ctx, realtime.Message{
			Channel: channel,
			Event:   realtime.EventGoalUncompleted,
			Data:    map[string]any{"goal_id": goalID, "root_id": rootID},
		})
	}
	for _, programID := range result.UpdatedPrograms {
		n.publish(ctx, realtime.Message{
			Channel: channel,
			Event:   realtime.EventProgramUpdated,
			Data:    map[string]any{"program_id": programID, "root_id": rootID},
		})
	}
}

func (n *cascadeNotifier) publish(ctx context.Context, msg realtime.Message) {
	if err := n.bus.Publish(ctx, msg); err != nil {
		n.log.Warn("Failed to publish realtime message", "event", string(msg.Event), "error", err)
	}
}
