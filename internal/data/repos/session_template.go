package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/fractal-backend/internal/domain"
	"github.com/yungbote/fractal-backend/internal/platform/dbctx"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type SessionTemplateRepo interface {
	Create(dbc dbctx.Context, rows []*types.SessionTemplate) ([]*types.SessionTemplate, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.SessionTemplate, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SessionTemplate, error)
	GetByProgramDayID(dbc dbctx.Context, programDayID uuid.UUID) ([]*types.SessionTemplate, error)
	// GetRequiredByProgramDayID returns the templates a day's completion
	// check must see completed sessions for.
	GetRequiredByProgramDayID(dbc dbctx.Context, programDayID uuid.UUID) ([]*types.SessionTemplate, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type sessionTemplateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionTemplateRepo(db *gorm.DB, baseLog *logger.Logger) SessionTemplateRepo {
	return &sessionTemplateRepo{db: db, log: baseLog.With("repo", "SessionTemplateRepo")}
}

func (r *sessionTemplateRepo) Create(dbc dbctx.Context, rows []*types.SessionTemplate) ([]*types.SessionTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.SessionTemplate{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sessionTemplateRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.SessionTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SessionTemplate
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

func (r *sessionTemplateRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SessionTemplate, error) {
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

func (r *sessionTemplateRepo) GetByProgramDayID(dbc dbctx.Context, programDayID uuid.UUID) ([]*types.SessionTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SessionTemplate
	if programDayID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("program_day_id = ?", programDayID).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionTemplateRepo) GetRequiredByProgramDayID(dbc dbctx.Context, programDayID uuid.UUID) ([]*types.SessionTemplate, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SessionTemplate
	if programDayID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("program_day_id = ? AND required = ?", programDayID, true).
		Order("position ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionTemplateRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.SessionTemplate{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionTemplateRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.SessionTemplate{}).Error
}

func (r *sessionTemplateRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
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
		Delete(&types.SessionTemplate{}).Error
}
