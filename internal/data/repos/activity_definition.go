package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type ActivityDefinitionRepo interface {
	Create(dbc dbctx.Context, rows []*types.ActivityDefinition) ([]*types.ActivityDefinition, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActivityDefinition, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActivityDefinition, error)
	GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.ActivityDefinition, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type activityDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) ActivityDefinitionRepo {
	return &activityDefinitionRepo{db: db, log: baseLog.With("repo", "ActivityDefinitionRepo")}
}

func (r *activityDefinitionRepo) Create(dbc dbctx.Context, rows []*types.ActivityDefinition) ([]*types.ActivityDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ActivityDefinition{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *activityDefinitionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActivityDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityDefinition
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

func (r *activityDefinitionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActivityDefinition, error) {
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

func (r *activityDefinitionRepo) GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.ActivityDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ActivityDefinition
	if rootID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("root_id = ?", rootID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activityDefinitionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ActivityDefinition{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *activityDefinitionRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.ActivityDefinition{}).Error
}

func (r *activityDefinitionRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.ActivityDefinition{}).Error
}
