package bus

import (
	"context"

	"github.com/yungbote/fractal-backend/internal/realtime"
)

// Bus carries realtime messages between processes. Publish sends one
// message; StartForwarder delivers every message published by any process
// to onMsg until ctx is done.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}

// localBus is the single-process Bus: Publish hands the message straight
// to the hub. Used when no Redis address is configured and in tests.
type localBus struct {
	hub *realtime.Hub
}

func NewLocalBus(hub *realtime.Hub) Bus {
	return &localBus{hub: hub}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.Message) error {
	if b == nil || b.hub == nil {
		return nil
	}
	b.hub.Broadcast(msg)
	return nil
}

// StartForwarder is a no-op: local publishes already reach the hub.
func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	return nil
}

func (b *localBus) Close() error { return nil }
