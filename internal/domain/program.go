package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Program is a structured plan: Program -> ProgramBlock -> ProgramDay ->
// SessionTemplate. Completion flows strictly upward and is monotonic; the
// cascade engine never un-completes a day, block, or program.
type Program struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RootID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"root_id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	Completed   bool       `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	// Aggregates over the union of block-linked goals, recomputed on
	// goal.completed.
	GoalsCompleted       int            `gorm:"column:goals_completed;not null;default:0" json:"goals_completed"`
	GoalsTotal           int            `gorm:"column:goals_total;not null;default:0" json:"goals_total"`
	CompletionPercentage float64        `gorm:"column:completion_percentage;not null;default:0" json:"completion_percentage"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Program) TableName() string { return "program" }

func (p *Program) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProgramBlock is a phase of a program. Its date range doubles as the
// evaluation window for targets with time_scope=program_block.
type ProgramBlock struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	Program     *Program       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramID;references:ID" json:"program,omitempty"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Position    int            `gorm:"column:position;not null;default:0" json:"position"`
	StartDate   *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate     *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	Completed   bool           `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProgramBlock) TableName() string { return "program_block" }

func (b *ProgramBlock) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// ProgramBlockGoal links a block to a goal it trains. Program aggregates
// are computed over the union of these links across the program's blocks.
type ProgramBlockGoal struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	BlockID   uuid.UUID     `gorm:"type:uuid;column:block_id;not null;index:idx_program_block_goal,unique,priority:1" json:"block_id"`
	Block     *ProgramBlock `gorm:"constraint:OnDelete:CASCADE;foreignKey:BlockID;references:ID" json:"block,omitempty"`
	GoalID    uuid.UUID     `gorm:"type:uuid;not null;index:idx_program_block_goal,unique,priority:2" json:"goal_id"`
	Goal      *Goal         `gorm:"constraint:OnDelete:CASCADE;foreignKey:GoalID;references:ID" json:"goal,omitempty"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

func (ProgramBlockGoal) TableName() string { return "program_block_goal" }

func (bg *ProgramBlockGoal) BeforeCreate(tx *gorm.DB) error {
	if bg.ID == uuid.Nil {
		bg.ID = uuid.New()
	}
	return nil
}

type ProgramDay struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BlockID     uuid.UUID      `gorm:"type:uuid;column:block_id;not null;index" json:"block_id"`
	Block       *ProgramBlock  `gorm:"constraint:OnDelete:CASCADE;foreignKey:BlockID;references:ID" json:"block,omitempty"`
	Name        string         `gorm:"column:name" json:"name,omitempty"`
	Position    int            `gorm:"column:position;not null;default:0" json:"position"`
	Completed   bool           `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProgramDay) TableName() string { return "program_day" }

func (d *ProgramDay) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// SessionTemplate prescribes a session for a program day. A day completes
// when every Required template has a matching completed session.
type SessionTemplate struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramDayID uuid.UUID      `gorm:"type:uuid;column:program_day_id;not null;index" json:"program_day_id"`
	ProgramDay   *ProgramDay    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProgramDayID;references:ID" json:"program_day,omitempty"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	Position     int            `gorm:"column:position;not null;default:0" json:"position"`
	Required     bool           `gorm:"column:required;not null;default:true" json:"required"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SessionTemplate) TableName() string { return "session_template" }

func (t *SessionTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
