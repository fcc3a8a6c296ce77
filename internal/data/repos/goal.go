package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type GoalRepo interface {
	Create(dbc dbctx.Context, rows []*types.Goal) ([]*types.Goal, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Goal, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Goal, error)
	GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.Goal, error)
	ListRootIDs(dbc dbctx.Context) ([]uuid.UUID, error)
	GetChildren(dbc dbctx.Context, parentID uuid.UUID) ([]*types.Goal, error)
	GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Goal, error)
	CountIncompleteChildren(dbc dbctx.Context, parentID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type goalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoalRepo(db *gorm.DB, baseLog *logger.Logger) GoalRepo {
	return &goalRepo{db: db, log: baseLog.With("repo", "GoalRepo")}
}

func (r *goalRepo) Create(dbc dbctx.Context, rows []*types.Goal) ([]*types.Goal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Goal{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *goalRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Goal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Goal
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

func (r *goalRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Goal, error) {
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

func (r *goalRepo) GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.Goal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Goal
	if rootID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("root_id = ?", rootID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRootIDs enumerates every live fractal root in stable id order.
func (r *goalRepo) ListRootIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []uuid.UUID
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Goal{}).
		Distinct("root_id").
		Order("root_id ASC").
		Pluck("root_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goalRepo) GetChildren(dbc dbctx.Context, parentID uuid.UUID) ([]*types.Goal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Goal
	if parentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("parent_id = ?", parentID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goalRepo) GetBySessionID(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Goal, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Goal
	if sessionID == uuid.Nil {
		return out, nil
	}
	sub := transaction.
		Model(&types.SessionGoal{}).
		Select("goal_id").
		Where("session_id = ?", sessionID)
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN (?)", sub).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goalRepo) CountIncompleteChildren(dbc dbctx.Context, parentID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if parentID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Goal{}).
		Where("parent_id = ? AND completed = ?", parentID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *goalRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Goal{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *goalRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Goal{}).Error
}

func (r *goalRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.Goal{}).Error
}
