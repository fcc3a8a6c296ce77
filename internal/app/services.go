package app

import (
	"fmt"

	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
	"github.com/yungbote/fractal-backend/internal/realtime"
	"github.com/yungbote/fractal-backend/internal/realtime/bus"
	"github.com/yungbote/fractal-backend/internal/services"
)

type Services struct {
	Bus       *events.Bus
	Evaluator *services.TargetEvaluator
	Cascade   *services.CascadeEngine
	Reversion *services.ReversionEngine
	Audit     *services.AuditLogger
	Notifier  services.CascadeNotifier

	// RealtimeBus is nil-free: local fan-out when Redis is not configured.
	RealtimeBus bus.Bus
}

// wireServices builds the bus and every cascade collaborator against it.
// The audit logger registers before the engine so each event is on record
// ahead of its effects.
func wireServices(log *logger.Logger, cfg Config, reposet Repos, hub *realtime.Hub) (Services, error) {
	log.Info("Wiring services...")

	evtBus := events.NewBus(log, cfg.MaxCascadeDepth)

	evaluator := services.NewTargetEvaluator(log, reposet.ActivityInstance, reposet.ProgramBlock)
	reversion := services.NewReversionEngine(log, evtBus, reposet.Target, reposet.Goal)
	cascade := services.NewCascadeEngine(
		log,
		evtBus,
		evaluator,
		reversion,
		reposet.Goal,
		reposet.Target,
		reposet.Session,
		reposet.ActivityInstance,
		reposet.Program,
		reposet.ProgramBlock,
		reposet.ProgramDay,
		reposet.SessionTemplate,
	)
	audit := services.NewAuditLogger(log, evtBus, reposet.EventLog)

	audit.Register()
	cascade.Register()

	var rtBus bus.Bus
	if cfg.RedisAddr != "" {
		redisBus, err := bus.NewRedisBus(log, cfg.RedisAddr, cfg.RealtimeChannelPrefix)
		if err != nil {
			return Services{}, fmt.Errorf("init redis realtime bus: %w", err)
		}
		rtBus = redisBus
	} else {
		rtBus = bus.NewLocalBus(hub)
	}
	notifier := services.NewCascadeNotifier(log, rtBus, cfg.RealtimeChannelPrefix)

	return Services{
		Bus:         evtBus,
		Evaluator:   evaluator,
		Cascade:     cascade,
		Reversion:   reversion,
		Audit:       audit,
		Notifier:    notifier,
		RealtimeBus: rtBus,
	}, nil
}
