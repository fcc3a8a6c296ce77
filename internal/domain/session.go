package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session is a container of ActivityInstances, linked to zero or more Goals
// through SessionGoal rows.
type Session struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RootID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"root_id"`
	Title         string     `gorm:"column:title;not null" json:"title"`
	ScheduledDate *time.Time `gorm:"column:scheduled_date;index" json:"scheduled_date,omitempty"`
	Completed     bool       `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	// Program context: set when the session was instantiated from a template.
	TemplateID   *uuid.UUID     `gorm:"type:uuid;column:template_id;index" json:"template_id,omitempty"`
	ProgramDayID *uuid.UUID     `gorm:"type:uuid;column:program_day_id;index" json:"program_day_id,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ProgramDayRef resolves the session's program day, preferring the FK and
// falling back to metadata {"program_day_id": "..."} written by older
// clients.
func (s *Session) ProgramDayRef() *uuid.UUID {
	if s == nil {
		return nil
	}
	if s.ProgramDayID != nil && *s.ProgramDayID != uuid.Nil {
		return s.ProgramDayID
	}
	if emptyJSON(s.Metadata) {
		return nil
	}
	var meta struct {
		ProgramDayID string `json:"program_day_id"`
	}
	if err := json.Unmarshal(s.Metadata, &meta); err != nil {
		return nil
	}
	id, err := uuid.Parse(meta.ProgramDayID)
	if err != nil || id == uuid.Nil {
		return nil
	}
	return &id
}

// SessionGoal links a Session to a Goal it works toward. Rows are hard
// deleted; the link either exists or it does not.
type SessionGoal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index:idx_session_goal,unique,priority:1" json:"session_id"`
	Session   *Session  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	GoalID    uuid.UUID `gorm:"type:uuid;not null;index:idx_session_goal,unique,priority:2" json:"goal_id"`
	Goal      *Goal     `gorm:"constraint:OnDelete:CASCADE;foreignKey:GoalID;references:ID" json:"goal,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SessionGoal) TableName() string { return "session_goal" }

func (sg *SessionGoal) BeforeCreate(tx *gorm.DB) error {
	if sg.ID == uuid.Nil {
		sg.ID = uuid.New()
	}
	return nil
}
