package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/fractal-backend/internal/app"
	"github.com/yungbote/fractal-backend/internal/data/db"
	"github.com/yungbote/fractal-backend/internal/data/repos"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/envutil"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
	"github.com/yungbote/fractal-backend/internal/services"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var roots idList
	var all bool
	var dryRun bool
	var verbose bool
	var parallel int
	flag.Var(&roots, "root", "fractal root_id to recompute (repeatable)")
	flag.BoolVar(&all, "all", false, "recompute every fractal root")
	flag.BoolVar(&dryRun, "dry-run", false, "evaluate and print without committing")
	flag.IntVar(&parallel, "parallel", 1, "roots recomputed concurrently")
	flag.BoolVar(&verbose, "verbose", false, "print per-session results")
	flag.Parse()

	logMode := envutil.GetEnv("LOG_MODE", "development", nil)
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := app.LoadConfig(log)
	pg, err := db.NewPostgresService(log, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("init postgres: %v\n", err)
		os.Exit(1)
	}
	theDB := pg.DB()

	ctx := context.Background()

	var rootIDs []uuid.UUID
	if all {
		goals := repos.NewGoalRepo(theDB, log)
		rootIDs, err = goals.ListRootIDs(dbctx.Context{Ctx: ctx})
		if err != nil {
			fmt.Printf("list roots: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, raw := range roots {
			id, parseErr := uuid.Parse(strings.TrimSpace(raw))
			if parseErr != nil || id == uuid.Nil {
				fmt.Printf("invalid root id %q\n", raw)
				os.Exit(1)
			}
			rootIDs = append(rootIDs, id)
		}
	}
	if len(rootIDs) == 0 {
		fmt.Println("nothing to recompute; pass -root or -all")
		return
	}
	if parallel < 1 {
		parallel = 1
	}

	var stdout sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, rootID := range rootIDs {
		rootID := rootID
		g.Go(func() error {
			result, replayed, err := recomputeRoot(gctx, theDB, log, rootID, dryRun, verbose, &stdout)
			if err != nil {
				return fmt.Errorf("root %s: %w", rootID, err)
			}
			stdout.Lock()
			printResult(rootID, replayed, result, dryRun)
			stdout.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Printf("recompute failed: %v\n", err)
		os.Exit(1)
	}
}

// recomputeRoot replays every completed session of one fractal through a
// bus scoped to a single transaction. Dry runs roll the transaction back,
// so the printed result is what a real run would have persisted. Realtime
// and other external surfaces are never wired here.
func recomputeRoot(ctx context.Context, theDB *gorm.DB, log *logger.Logger, rootID uuid.UUID, dryRun, verbose bool, stdout *sync.Mutex) (*services.CascadeResult, int, error) {
	tx := theDB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, 0, fmt.Errorf("begin: %w", tx.Error)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	goals := repos.NewGoalRepo(theDB, log)
	targets := repos.NewTargetRepo(theDB, log)
	sessions := repos.NewSessionRepo(theDB, log)
	instances := repos.NewActivityInstanceRepo(theDB, log)
	programs := repos.NewProgramRepo(theDB, log)
	blocks := repos.NewProgramBlockRepo(theDB, log)
	days := repos.NewProgramDayRepo(theDB, log)
	templates := repos.NewSessionTemplateRepo(theDB, log)

	evtBus := events.NewBus(log, 0)
	if !dryRun {
		services.NewAuditLogger(log, evtBus, repos.NewEventLogRepo(theDB, log)).Register()
	}
	evaluator := services.NewTargetEvaluator(log, instances, blocks)
	reversion := services.NewReversionEngine(log, evtBus, targets, goals)
	services.NewCascadeEngine(
		log, evtBus, evaluator, reversion,
		goals, targets, sessions, instances,
		programs, blocks, days, templates,
	).Register()

	rows, err := sessions.GetCompletedByRootID(dbc, rootID)
	if err != nil {
		return nil, 0, fmt.Errorf("load sessions: %w", err)
	}

	total := &services.CascadeResult{}
	for _, s := range rows {
		if s == nil || s.ID == uuid.Nil {
			continue
		}
		evt := events.SessionCompleted{Meta: events.NewMeta(events.SourceRecompute), SessionID: s.ID, RootID: s.RootID}
		res := services.CollectCascadeResults(evtBus.Emit(dbc, evt))
		total.Merge(res)
		if verbose && !res.Empty() {
			stdout.Lock()
			fmt.Printf("root=%s session=%s targets=%d goals=%d\n",
				rootID, s.ID, len(res.AchievedTargets), len(res.CompletedGoals))
			stdout.Unlock()
		}
	}

	if dryRun {
		return total, len(rows), nil
	}
	if err := tx.Commit().Error; err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return total, len(rows), nil
}

func printResult(rootID uuid.UUID, replayed int, r *services.CascadeResult, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Printf("%sroot=%s sessions=%d achieved_targets=%d completed_goals=%d completed_days=%d completed_blocks=%d completed_programs=%d updated_programs=%d\n",
		prefix, rootID, replayed,
		len(r.AchievedTargets), len(r.CompletedGoals),
		len(r.CompletedDays), len(r.CompletedBlocks),
		len(r.CompletedPrograms), len(r.UpdatedPrograms))
}
