package services

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

// AuditLogger persists one event_log row per emitted event, inside the
// emitter's transaction, so the trail commits or rolls back with the writes
// it describes. It subscribes to everything and should be registered before
// the cascade engine so each event is on record before its effects run.
type AuditLogger struct {
	log    *logger.Logger
	bus    *events.Bus
	events repos.EventLogRepo
}

func NewAuditLogger(baseLog *logger.Logger, bus *events.Bus, eventLogs repos.EventLogRepo) *AuditLogger {
	return &AuditLogger{
		log:    baseLog.With("service", "AuditLogger"),
		bus:    bus,
		events: eventLogs,
	}
}

// Register subscribes the audit handler. Call once after construction.
func (a *AuditLogger) Register() {
	a.bus.SubscribeAll("audit.event_log", a.record)
}

func (a *AuditLogger) record(dbc dbctx.Context, evt events.Event) (any, error) {
	meta := evt.EventMeta()
	payload, err := json.Marshal(evt)
	if err != nil {
		// Payloads are plain structs; failing to encode one is a bug
		// worth surfacing, but it must not break the cascade.
		a.log.Error("Failed to encode event payload", "event", string(evt.EventKind()), "error", err)
		payload = []byte(`{}`)
	}
	row := &types.EventLog{
		EventID:   meta.ID,
		Name:      string(evt.EventKind()),
		RootID:    events.RootOf(evt),
		Source:    meta.Source,
		Data:      datatypes.JSON(payload),
		EmittedAt: meta.OccurredAt,
	}
	if _, err := a.events.Create(dbc, []*types.EventLog{row}); err != nil {
		return nil, err
	}
	return nil, nil
}
