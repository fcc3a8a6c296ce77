package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type EventLogRepo interface {
	Create(dbc dbctx.Context, rows []*types.EventLog) ([]*types.EventLog, error)

	// GetByRootID returns the fractal's audit trail newest first. A
	// limit <= 0 returns everything.
	GetByRootID(dbc dbctx.Context, rootID uuid.UUID, limit int) ([]*types.EventLog, error)
	CountByName(dbc dbctx.Context, name string, rootID *uuid.UUID) (int64, error)
}

type eventLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventLogRepo(db *gorm.DB, baseLog *logger.Logger) EventLogRepo {
	return &eventLogRepo{db: db, log: baseLog.With("repo", "EventLogRepo")}
}

func (r *eventLogRepo) Create(dbc dbctx.Context, rows []*types.EventLog) ([]*types.EventLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.EventLog{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *eventLogRepo) GetByRootID(dbc dbctx.Context, rootID uuid.UUID, limit int) ([]*types.EventLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.EventLog
	if rootID == uuid.Nil {
		return out, nil
	}
	query := transaction.WithContext(dbc.Ctx).
		Where("root_id = ?", rootID).
		Order("emitted_at DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventLogRepo) CountByName(dbc dbctx.Context, name string, rootID *uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if name == "" {
		return 0, nil
	}
	query := transaction.WithContext(dbc.Ctx).
		Model(&types.EventLog{}).
		Where("name = ?", name)
	if rootID != nil && *rootID != uuid.Nil {
		query = query.Where("root_id = ?", *rootID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
