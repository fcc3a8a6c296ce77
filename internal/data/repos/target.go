package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type TargetRepo interface {
	Create(dbc dbctx.Context, rows []*types.Target) ([]*types.Target, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Target, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Target, error)
	GetByGoalID(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Target, error)
	// GetActiveByGoalID returns the goal's live, not-yet-completed targets.
	GetActiveByGoalID(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Target, error)
	// GetActiveThresholdByActivity returns every live incomplete threshold
	// target measuring the given activity, across goals. This is the
	// activity->goal association surface used by the instance handler.
	GetActiveThresholdByActivity(dbc dbctx.Context, activityID uuid.UUID) ([]*types.Target, error)
	// GetByCompletedInstanceID is the reversion key: targets whose
	// completion provenance points at the given instance.
	GetByCompletedInstanceID(dbc dbctx.Context, instanceID uuid.UUID) ([]*types.Target, error)

	CountLiveByGoalID(dbc dbctx.Context, goalID uuid.UUID) (int64, error)
	CountIncompleteByGoalID(dbc dbctx.Context, goalID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type targetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTargetRepo(db *gorm.DB, baseLog *logger.Logger) TargetRepo {
	return &targetRepo{db: db, log: baseLog.With("repo", "TargetRepo")}
}

func (r *targetRepo) Create(dbc dbctx.Context, rows []*types.Target) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Target{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *targetRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Target
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

func (r *targetRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Target, error) {
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

func (r *targetRepo) GetByGoalID(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Target
	if goalID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("goal_id = ?", goalID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *targetRepo) GetActiveByGoalID(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Target
	if goalID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("goal_id = ? AND completed = ?", goalID, false).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *targetRepo) GetActiveThresholdByActivity(dbc dbctx.Context, activityID uuid.UUID) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Target
	if activityID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("activity_id = ? AND type = ? AND completed = ?", activityID, types.TargetTypeThreshold, false).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *targetRepo) GetByCompletedInstanceID(dbc dbctx.Context, instanceID uuid.UUID) ([]*types.Target, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Target
	if instanceID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("completed_instance_id = ?", instanceID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *targetRepo) CountLiveByGoalID(dbc dbctx.Context, goalID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if goalID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Target{}).
		Where("goal_id = ?", goalID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *targetRepo) CountIncompleteByGoalID(dbc dbctx.Context, goalID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if goalID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Target{}).
		Where("goal_id = ? AND completed = ?", goalID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *targetRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Target{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *targetRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Target{}).Error
}

func (r *targetRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.Target{}).Error
}
