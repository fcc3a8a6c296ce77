package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type ProgramRepo interface {
	Create(dbc dbctx.Context, rows []*types.Program) ([]*types.Program, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Program, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Program, error)
	GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.Program, error)
	// GetByLinkedGoal returns programs with a live block linked to the
	// goal. The goal.completed handler recomputes aggregates on these.
	GetByLinkedGoal(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Program, error)
	// GoalIDsByProgram returns the union of goal ids linked by the
	// program's live blocks, the basis for its aggregates.
	GoalIDsByProgram(dbc dbctx.Context, programID uuid.UUID) ([]uuid.UUID, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type programRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgramRepo(db *gorm.DB, baseLog *logger.Logger) ProgramRepo {
	return &programRepo{db: db, log: baseLog.With("repo", "ProgramRepo")}
}

func (r *programRepo) Create(dbc dbctx.Context, rows []*types.Program) ([]*types.Program, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.Program{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *programRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Program, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Program
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

func (r *programRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Program, error) {
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

func (r *programRepo) GetByRootID(dbc dbctx.Context, rootID uuid.UUID) ([]*types.Program, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Program
	if rootID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("root_id = ?", rootID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programRepo) GetByLinkedGoal(dbc dbctx.Context, goalID uuid.UUID) ([]*types.Program, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Program
	if goalID == uuid.Nil {
		return out, nil
	}
	sub := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramBlockGoal{}).
		Select("program_block.program_id").
		Joins("JOIN program_block ON program_block.id = program_block_goal.block_id AND program_block.deleted_at IS NULL").
		Where("program_block_goal.goal_id = ?", goalID)
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN (?)", sub).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programRepo) GoalIDsByProgram(dbc dbctx.Context, programID uuid.UUID) ([]uuid.UUID, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if programID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ProgramBlockGoal{}).
		Joins("JOIN program_block ON program_block.id = program_block_goal.block_id AND program_block.deleted_at IS NULL").
		Where("program_block.program_id = ?", programID).
		Distinct().
		Pluck("program_block_goal.goal_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *programRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Program{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *programRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.Program{}).Error
}

func (r *programRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.Program{}).Error
}
