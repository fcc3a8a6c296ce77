package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityDefinition names a repeatable activity ("Barbell squat",
// "Scales practice") that instances and targets reference.
type ActivityDefinition struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RootID      uuid.UUID `gorm:"type:uuid;not null;index" json:"root_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	// Metric ids commonly logged for this activity, as a JSON array of uuids.
	DefaultMetrics datatypes.JSON `gorm:"column:default_metrics;type:jsonb" json:"default_metrics,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ActivityDefinition) TableName() string { return "activity_definition" }

func (d *ActivityDefinition) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ActivityInstance is one recorded occurrence of an activity inside a
// Session. Metric values live flat on the instance and optionally nested
// per set; both forms are JSON so clients can log anything, and evaluation
// fails closed on values it cannot read as numbers.
type ActivityInstance struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Session      *Session       `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	ActivityID   uuid.UUID      `gorm:"type:uuid;column:activity_id;not null;index" json:"activity_id"`
	Position     int            `gorm:"column:position;not null;default:0" json:"position"`
	Completed    bool           `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	MetricValues datatypes.JSON `gorm:"column:metric_values;type:jsonb" json:"metric_values,omitempty"`
	Sets         datatypes.JSON `gorm:"column:sets;type:jsonb" json:"sets,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ActivityInstance) TableName() string { return "activity_instance" }

func (a *ActivityInstance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// OccurredAt places the instance on a timeline for window queries.
func (a *ActivityInstance) OccurredAt() time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.CreatedAt
}

// MetricValue is one logged measurement. Value stays untyped on purpose:
// clients may send strings or nulls, and evaluation coerces or fails closed.
type MetricValue struct {
	MetricID uuid.UUID `json:"metric_id"`
	Value    any       `json:"value"`
}

// SetGroup is one set's worth of measurements within an instance.
type SetGroup struct {
	Position int           `json:"position,omitempty"`
	Metrics  []MetricValue `json:"metrics,omitempty"`
}

func DecodeMetricValues(raw datatypes.JSON) []MetricValue {
	if emptyJSON(raw) {
		return nil
	}
	var list []MetricValue
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]MetricValue, 0, len(list))
	for _, mv := range list {
		if mv.MetricID == uuid.Nil {
			continue
		}
		out = append(out, mv)
	}
	return out
}

func EncodeMetricValues(list []MetricValue) datatypes.JSON {
	if len(list) == 0 {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(mustJSON(list))
}

func DecodeSetGroups(raw datatypes.JSON) []SetGroup {
	if emptyJSON(raw) {
		return nil
	}
	var list []SetGroup
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func EncodeSetGroups(list []SetGroup) datatypes.JSON {
	if len(list) == 0 {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(mustJSON(list))
}

// CoerceMetricValue reads a logged value as a float64. JSON numbers decode
// as float64; json.Number and numeric strings are tolerated; everything
// else reports false and the caller fails closed.
func CoerceMetricValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		var n json.Number = json.Number(s)
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func emptyJSON(raw datatypes.JSON) bool {
	if len(raw) == 0 {
		return true
	}
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
