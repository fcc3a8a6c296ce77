package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type ProgramDayRepo interface {
	Create(dbc dbctx.Context, rows []*types.ProgramDay) ([]*types.ProgramDay, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ProgramDay, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProgramDay, error)
	GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) ([]*types.ProgramDay, error)

	CountLiveByBlockID(dbc dbctx.Context, blockID uuid.UUID) (int64, error)
	CountIncompleteByBlockID(dbc dbctx.Context, blockID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type programDayRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgramDayRepo(db *gorm.DB, baseLog *logger.Logger) ProgramDayRepo {
	return &programDayRepo{db: db, log: baseLog.With("repo", "ProgramDayRepo")}
}

func (r *programDayRepo) Create(dbc dbctx.Context, rows []*types.ProgramDay) ([]*types.ProgramDay, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ProgramDay{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *programDayRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ProgramDay, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProgramDay
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

func (r *programDayRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProgramDay, error) {
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

func (r *programDayRepo) GetByBlockID(dbc dbctx.Context, blockID uuid.UUID) ([]*types.ProgramDay, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProgramDay
	if blockID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("block_id = ?", blockID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programDayRepo) CountLiveByBlockID(dbc dbctx.Context, blockID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if blockID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramDay{}).
		Where("block_id = ?", blockID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *programDayRepo) CountIncompleteByBlockID(dbc dbctx.Context, blockID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if blockID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramDay{}).
		Where("block_id = ? AND completed = ?", blockID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *programDayRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ProgramDay{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *programDayRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.ProgramDay{}).Error
}

func (r *programDayRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.ProgramDay{}).Error
}
