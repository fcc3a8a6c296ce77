package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// Why a goal's Completed flag flipped to true.
	GoalCompletionManual      = "manual"
	GoalCompletionAllTargets  = "all_targets_achieved"
	GoalCompletionAllChildren = "children_completed"
	// Why a completed goal was reopened.
	GoalUncompleteTargetReverted = "target_reverted"
)

// Goal is a node in a fractal tree. The root goal of a tree has
// RootID == ID; every descendant carries the same RootID.
type Goal struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RootID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"root_id"`
	ParentID    *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"` // nil for the fractal root
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description,omitempty"`
	Position    int        `gorm:"column:position;not null;default:0" json:"position"`
	// Opts this goal into auto-completion when all children complete.
	CompletedViaChildren bool           `gorm:"column:completed_via_children;not null;default:false" json:"completed_via_children"`
	Completed            bool           `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt          *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CompletionReason     string         `gorm:"column:completion_reason" json:"completion_reason,omitempty"` // manual|all_targets_achieved|children_completed
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Goal) TableName() string { return "goal" }

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
