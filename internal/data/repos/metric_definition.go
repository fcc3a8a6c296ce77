package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type MetricDefinitionRepo interface {
	Create(dbc dbctx.Context, rows []*types.MetricDefinition) ([]*types.MetricDefinition, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MetricDefinition, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MetricDefinition, error)
	GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.MetricDefinition, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type metricDefinitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) MetricDefinitionRepo {
	return &metricDefinitionRepo{db: db, log: baseLog.With("repo", "MetricDefinitionRepo")}
}

func (r *metricDefinitionRepo) Create(dbc dbctx.Context, rows []*types.MetricDefinition) ([]*types.MetricDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.MetricDefinition{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *metricDefinitionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MetricDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MetricDefinition
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

func (r *metricDefinitionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MetricDefinition, error) {
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

func (r *metricDefinitionRepo) GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.MetricDefinition, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MetricDefinition
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

func (r *metricDefinitionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.MetricDefinition{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *metricDefinitionRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.MetricDefinition{}).Error
}

func (r *metricDefinitionRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.MetricDefinition{}).Error
}
