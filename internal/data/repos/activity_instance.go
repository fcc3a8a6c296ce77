package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type ActivityInstanceRepo interface {
	Create(dbc dbctx.Context, rows []*types.ActivityInstance) ([]*types.ActivityInstance, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActivityInstance, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActivityInstance, error)
	GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ActivityInstance, error)
	// GetCompletedByActivityInWindow returns completed instances of the
	// activity placed inside [from, to] by COALESCE(completed_at,
	// created_at). Nil bounds leave that side open.
	GetCompletedByActivityInWindow(dbc dbctx.Context, activityID uuid.UUID, from, to *time.Time) ([]*types.ActivityInstance, error)
	// DistinctSessionCountByActivityInWindow counts the distinct sessions
	// holding such instances; frequency targets read this.
	DistinctSessionCountByActivityInWindow(dbc dbctx.Context, activityID uuid.UUID, from, to *time.Time) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type activityInstanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityInstanceRepo(db *gorm.DB, baseLog *logger.Logger) ActivityInstanceRepo {
	return &activityInstanceRepo{db: db, log: baseLog.With("repo", "ActivityInstanceRepo")}
}

func (r *activityInstanceRepo) Create(dbc dbctx.Context, rows []*types.ActivityInstance) ([]*types.ActivityInstance, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ActivityInstance{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityInstanceRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActivityInstance, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityInstance
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityInstanceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActivityInstance, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *activityInstanceRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ActivityInstance, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityInstance
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityInstanceRepo) GetCompletedByActivityInWindow(dbc dbctx.Context, activityID uuid.UUID, from, to *time.Time) ([]*types.ActivityInstance, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityInstance
	if activityID == uuid.Nil {
		return out, nil
	}
	query := transaction.WithContext(dbc.Ctx).
		Where("activity_id = ? AND completed = ?", activityID, true)
	if from != nil {
		query = query.Where("COALESCE(completed_at, created_at) >= ?", *from)
	}
	if to != nil {
		query = query.Where("COALESCE(completed_at, created_at) <= ?", *to)
	}
	if err := query.
		Order("COALESCE(completed_at, created_at) ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityInstanceRepo) DistinctSessionCountByActivityInWindow(dbc dbctx.Context, activityID uuid.UUID, from, to *time.Time) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if activityID == uuid.Nil {
		return 0, nil
	}
	query := transaction.WithContext(dbc.Ctx).
		Model(&types.ActivityInstance{}).
		Where("activity_id = ? AND completed = ?", activityID, true)
	if from != nil {
		query = query.Where("COALESCE(completed_at, created_at) >= ?", *from)
	}
	if to != nil {
		query = query.Where("COALESCE(completed_at, created_at) <= ?", *to)
	}
	var count int64
	if err := query.Distinct("session_id").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *activityInstanceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ActivityInstance{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *activityInstanceRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.ActivityInstance{}).Error
}

func (r *activityInstanceRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("id IN ?", ids).
		Delete(&types.ActivityInstance{}).Error
}
