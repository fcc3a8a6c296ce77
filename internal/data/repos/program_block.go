package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type ProgramBlockRepo interface {
	Create(dbc dbctx.Context, rows []*types.ProgramBlock) ([]*types.ProgramBlock, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ProgramBlock, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProgramBlock, error)
	GetByProgramID(dbc dbctx.Context, programID uuid.UUID) ([]*types.ProgramBlock, error)

	// LinkGoal attaches a goal to the block; re-linking is a no-op.
	LinkGoal(dbc dbctx.Context, blockID, goalID uuid.UUID) error
	GoalIDs(dbc dbctx.Context, blockID uuid.UUID) ([]uuid.UUID, error)

	CountLiveByProgramID(dbc dbctx.Context, programID uuid.UUID) (int64, error)
	CountIncompleteByProgramID(dbc dbctx.Context, programID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type programBlockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgramBlockRepo(db *gorm.DB, baseLog *logger.Logger) ProgramBlockRepo {
	return &programBlockRepo{db: db, log: baseLog.With("repo", "ProgramBlockRepo")}
}

func (r *programBlockRepo) Create(dbc dbctx.Context, rows []*types.ProgramBlock) ([]*types.ProgramBlock, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ProgramBlock{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *programBlockRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ProgramBlock, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProgramBlock
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

func (r *programBlockRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ProgramBlock, error) {
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

func (r *programBlockRepo) GetByProgramID(dbc dbctx.Context, programID uuid.UUID) ([]*types.ProgramBlock, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProgramBlock
	if programID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("program_id = ?", programID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programBlockRepo) LinkGoal(dbc dbctx.Context, blockID, goalID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if blockID == uuid.Nil || goalID == uuid.Nil {
		return nil
	}
	link := types.ProgramBlockGoal{
		ID:      uuid.New(),
		BlockID: blockID,
		GoalID:  goalID,
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}

func (r *programBlockRepo) GoalIDs(dbc dbctx.Context, blockID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if blockID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramBlockGoal{}).
		Where("block_id = ?", blockID).
		Pluck("goal_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *programBlockRepo) CountLiveByProgramID(dbc dbctx.Context, programID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if programID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramBlock{}).
		Where("program_id = ?", programID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *programBlockRepo) CountIncompleteByProgramID(dbc dbctx.Context, programID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if programID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramBlock{}).
		Where("program_id = ? AND completed = ?", programID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *programBlockRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ProgramBlock{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *programBlockRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.ProgramBlock{}).Error
}

func (r *programBlockRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.ProgramBlock{}).Error
}
