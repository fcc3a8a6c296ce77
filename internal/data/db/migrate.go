package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
)

func models() []any {
	return []any{

		// =========================
		// Goal tree + targets
		// =========================
		&types.Goal{},
		&types.Target{},

		// =========================
		// Activity catalog + logging
		// =========================
		&types.ActivityDefinition{},
		&types.MetricDefinition{},
		&types.Session{},
		&types.SessionGoal{},
		&types.ActivityInstance{},

		// =========================
		// Program hierarchy
		// =========================
		&types.Program{},
		&types.ProgramBlock{},
		&types.ProgramBlockGoal{},
		&types.ProgramDay{},
		&types.SessionTemplate{},

		// =========================
		// Audit trail
		// =========================
		&types.EventLog{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(models()...)
}

// DropUnusedTables removes tables no current model maps to, the leftovers of
// older schema versions. Destructive; runs only behind cmd/migrate's
// -drop-unused flag.
func DropUnusedTables(db *gorm.DB) ([]string, error) {
	keep := map[string]bool{}
	for _, m := range models() {
		if named, ok := m.(interface{ TableName() string }); ok {
			keep[named.TableName()] = true
		}
	}
	tables, err := db.Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var dropped []string
	for _, table := range tables {
		if keep[table] {
			continue
		}
		if err := db.Migrator().DropTable(table); err != nil {
			return dropped, fmt.Errorf("drop %s: %w", table, err)
		}
		dropped = append(dropped, table)
	}
	return dropped, nil
}

// EnsureCascadeIndexes creates the partial indexes the cascade engine's hot
// queries lean on. AutoMigrate covers the plain ones.
func EnsureCascadeIndexes(db *gorm.DB) error {
	// Reversion's sole lookup key.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_target_completed_instance
		ON target(completed_instance_id)
		WHERE completed_instance_id IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_target_completed_instance: %w", err)
	}
	// Active targets per goal, scanned on every evaluation pass.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_target_goal_active
		ON target(goal_id)
		WHERE deleted_at IS NULL AND completed = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_target_goal_active: %w", err)
	}
	// Sum/frequency window scans.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_instance_window
		ON activity_instance(activity_id, completed_at)
		WHERE deleted_at IS NULL AND completed = true;
	`).Error; err != nil {
		return fmt.Errorf("create idx_activity_instance_window: %w", err)
	}
	// Program-day checks: completed sessions per template.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_session_template_completed
		ON session(template_id)
		WHERE deleted_at IS NULL AND completed = true;
	`).Error; err != nil {
		return fmt.Errorf("create idx_session_template_completed: %w", err)
	}
	// Children-complete checks on completed_via_children parents.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_goal_parent_live
		ON goal(parent_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_goal_parent_live: %w", err)
	}
	// Audit reads are per fractal, newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_event_log_root_emitted
		ON event_log(root_id, emitted_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_event_log_root_emitted: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureCascadeIndexes(s.db); err != nil {
		s.log.Error("Cascade index migration failed", "error", err)
		return err
	}
	return nil
}
