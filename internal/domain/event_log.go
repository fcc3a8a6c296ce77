package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventLog is the audit trail: one row per event emitted on the bus,
// written by the audit subscriber inside the same transaction as the
// cascade it describes. Rows are append-only and hard (no soft delete).
type EventLog struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID uuid.UUID  `gorm:"type:uuid;column:event_id;not null;index" json:"event_id"`
	Name    string     `gorm:"column:name;not null;index" json:"name"`
	RootID  *uuid.UUID `gorm:"type:uuid;column:root_id;index" json:"root_id,omitempty"`
	Source  string     `gorm:"column:source" json:"source,omitempty"`
	// Typed payload serialized as emitted.
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	EmittedAt time.Time      `gorm:"column:emitted_at;not null;index" json:"emitted_at"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (EventLog) TableName() string { return "event_log" }

func (e *EventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
