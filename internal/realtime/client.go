package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// Client is one connected consumer. Outbound is buffered; the hub drops
// messages for clients that stop draining it rather than blocking the
// broadcaster.
type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	Logger   *logger.Logger
}
