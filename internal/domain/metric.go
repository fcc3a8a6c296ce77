package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetricDefinition names a measurable quantity ("reps", "minutes", "kg").
// Targets and logged metric values reference it by id.
type MetricDefinition struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RootID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"root_id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Unit      string         `gorm:"column:unit" json:"unit,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MetricDefinition) TableName() string { return "metric_definition" }

func (m *MetricDefinition) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
