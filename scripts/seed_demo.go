// Seeds a small demo fractal and runs the cascade against it: one goal
// with a reps threshold target, a one-day program, and a completed session
// whose single instance satisfies the target. Prints each result, then
// deletes the instance to show the reversal path. Intended for local dev
// databases only.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/fractal-backend/internal/app"
	"github.com/yungbote/fractal-backend/internal/data/db"
	"github.com/yungbote/fractal-backend/internal/data/repos"
	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/events"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/envutil"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
	"github.com/yungbote/fractal-backend/internal/services"
)

func main() {
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
	if err := pg.AutoMigrateAll(); err != nil {
		fmt.Printf("automigrate: %v\n", err)
		os.Exit(1)
	}
	theDB := pg.DB()

	ctx := context.Background()
	if err := theDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return runDemo(ctx, theDB, tx, log)
	}); err != nil {
		fmt.Printf("demo failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("demo committed")
}

func runDemo(ctx context.Context, theDB *gorm.DB, tx *gorm.DB, log *logger.Logger) error {
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	goals := repos.NewGoalRepo(theDB, log)
	targets := repos.NewTargetRepo(theDB, log)
	sessions := repos.NewSessionRepo(theDB, log)
	instances := repos.NewActivityInstanceRepo(theDB, log)
	activities := repos.NewActivityDefinitionRepo(theDB, log)
	metrics := repos.NewMetricDefinitionRepo(theDB, log)
	programs := repos.NewProgramRepo(theDB, log)
	blocks := repos.NewProgramBlockRepo(theDB, log)
	days := repos.NewProgramDayRepo(theDB, log)
	templates := repos.NewSessionTemplateRepo(theDB, log)
	eventLogs := repos.NewEventLogRepo(theDB, log)

	evtBus := events.NewBus(log, 0)
	services.NewAuditLogger(log, evtBus, eventLogs).Register()
	evaluator := services.NewTargetEvaluator(log, instances, blocks)
	reversion := services.NewReversionEngine(log, evtBus, targets, goals)
	services.NewCascadeEngine(
		log, evtBus, evaluator, reversion,
		goals, targets, sessions, instances,
		programs, blocks, days, templates,
	).Register()

	rootID := uuid.New()
	now := time.Now()

	reps := &types.MetricDefinition{ID: uuid.New(), RootID: rootID, Name: "reps"}
	if _, err := metrics.Create(dbc, []*types.MetricDefinition{reps}); err != nil {
		return fmt.Errorf("create metric: %w", err)
	}
	pushups := &types.ActivityDefinition{ID: uuid.New(), RootID: rootID, Name: "Pushups"}
	if _, err := activities.Create(dbc, []*types.ActivityDefinition{pushups}); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}

	goal := &types.Goal{ID: rootID, RootID: rootID, Title: "Get stronger"}
	if _, err := goals.Create(dbc, []*types.Goal{goal}); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	target := &types.Target{
		ID:         uuid.New(),
		GoalID:     goal.ID,
		Type:       types.TargetTypeThreshold,
		ActivityID: &pushups.ID,
		MetricConditions: types.EncodeMetricConditions([]types.MetricCondition{
			{MetricID: reps.ID, Operator: ">=", Value: 10},
		}),
		TimeScope: types.TimeScopeAllTime,
	}
	if _, err := targets.Create(dbc, []*types.Target{target}); err != nil {
		return fmt.Errorf("create target: %w", err)
	}

	program := &types.Program{ID: uuid.New(), RootID: rootID, Name: "Four week base"}
	if _, err := programs.Create(dbc, []*types.Program{program}); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	blockEnd := now.AddDate(0, 0, 28)
	block := &types.ProgramBlock{ID: uuid.New(), ProgramID: program.ID, Name: "Week one", StartDate: &now, EndDate: &blockEnd}
	if _, err := blocks.Create(dbc, []*types.ProgramBlock{block}); err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	day := &types.ProgramDay{ID: uuid.New(), BlockID: block.ID, Name: "Push day"}
	if _, err := days.Create(dbc, []*types.ProgramDay{day}); err != nil {
		return fmt.Errorf("create day: %w", err)
	}
	tpl := &types.SessionTemplate{ID: uuid.New(), ProgramDayID: day.ID, Name: "Push session", Required: true}
	if _, err := templates.Create(dbc, []*types.SessionTemplate{tpl}); err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	session := &types.Session{
		ID:           uuid.New(),
		RootID:       rootID,
		Title:        "Monday push",
		Completed:    true,
		CompletedAt:  &now,
		TemplateID:   &tpl.ID,
		ProgramDayID: &day.ID,
	}
	if _, err := sessions.Create(dbc, []*types.Session{session}); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := sessions.LinkGoal(dbc, session.ID, goal.ID); err != nil {
		return fmt.Errorf("link session goal: %w", err)
	}
	inst := &types.ActivityInstance{
		ID:          uuid.New(),
		SessionID:   session.ID,
		ActivityID:  pushups.ID,
		Completed:   true,
		CompletedAt: &now,
		MetricValues: types.EncodeMetricValues([]types.MetricValue{
			{MetricID: reps.ID, Value: 12},
		}),
	}
	if _, err := instances.Create(dbc, []*types.ActivityInstance{inst}); err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	fmt.Printf("seeded fractal root=%s\n", rootID)

	completed := services.CollectCascadeResults(evtBus.Emit(dbc, events.SessionCompleted{
		Meta: events.NewMeta("seed_demo"), SessionID: session.ID, RootID: rootID,
	}))
	fmt.Printf("session completed: targets=%d goals=%d days=%d blocks=%d programs=%d\n",
		len(completed.AchievedTargets), len(completed.CompletedGoals),
		len(completed.CompletedDays), len(completed.CompletedBlocks), len(completed.CompletedPrograms))

	// Deleting the only satisfying instance reverses target and goal.
	if err := instances.SoftDeleteByIDs(dbc, []uuid.UUID{inst.ID}); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	reverted := services.CollectCascadeResults(evtBus.Emit(dbc, events.ActivityInstanceDeleted{
		Meta: events.NewMeta("seed_demo"), InstanceID: inst.ID, RootID: rootID,
	}))
	fmt.Printf("instance deleted: reverted_targets=%d uncompleted_goals=%d\n",
		len(reverted.RevertedTargets), len(reverted.UncompletedGoals))
	return nil
}
