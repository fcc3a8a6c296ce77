package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TargetTypeThreshold = "threshold" // one instance (or one set) meets every condition
	TargetTypeSum       = "sum"       // per-metric totals over a window meet every condition
	TargetTypeFrequency = "frequency" // distinct sessions in a window reach a count
)

const (
	TimeScopeAllTime      = "all_time"
	TimeScopeCustom       = "custom"
	TimeScopeProgramBlock = "program_block"
)

// Target is a measurable completion criterion attached to exactly one Goal.
type Target struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GoalID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"goal_id"`
	Goal       *Goal      `gorm:"constraint:OnDelete:CASCADE;foreignKey:GoalID;references:ID" json:"goal,omitempty"`
	Type       string     `gorm:"column:type;not null;index" json:"type"` // threshold|sum|frequency
	ActivityID *uuid.UUID `gorm:"type:uuid;column:activity_id;index" json:"activity_id,omitempty"`
	// Conjunction of conditions; see MetricCondition.
	MetricConditions datatypes.JSON `gorm:"column:metric_conditions;type:jsonb" json:"metric_conditions,omitempty"`
	TimeScope        string         `gorm:"column:time_scope;not null;default:'all_time'" json:"time_scope"` // all_time|custom|program_block
	StartDate        *time.Time     `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate          *time.Time     `gorm:"column:end_date" json:"end_date,omitempty"`
	LinkedBlockID    *uuid.UUID     `gorm:"type:uuid;column:linked_block_id;index" json:"linked_block_id,omitempty"`
	FrequencyDays    int            `gorm:"column:frequency_days;not null;default:0" json:"frequency_days"`
	FrequencyCount   int            `gorm:"column:frequency_count;not null;default:0" json:"frequency_count"`
	// Primary-condition progress, refreshed by sum evaluation.
	CurrentValue float64 `gorm:"column:current_value;not null;default:0" json:"current_value"`
	TargetValue  float64 `gorm:"column:target_value;not null;default:0" json:"target_value"`
	// Provenance: set iff Completed; the sole key used for reversal.
	Completed           bool           `gorm:"column:completed;not null;default:false;index" json:"completed"`
	CompletedAt         *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CompletedSessionID  *uuid.UUID     `gorm:"type:uuid;column:completed_session_id" json:"completed_session_id,omitempty"`
	CompletedInstanceID *uuid.UUID     `gorm:"type:uuid;column:completed_instance_id;index" json:"completed_instance_id,omitempty"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Target) TableName() string { return "target" }

func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// MetricCondition is one clause of a target's conjunction, stored in the
// metric_conditions JSON column.
type MetricCondition struct {
	MetricID uuid.UUID `json:"metric_id"`
	Operator string    `json:"operator"` // >=|<=|==|>|<
	Value    float64   `json:"value"`
}

// NormalizeOperator collapses operator spellings; unknown operators come back
// empty so evaluation fails closed.
func NormalizeOperator(op string) string {
	switch strings.TrimSpace(op) {
	case ">=", "gte":
		return ">="
	case "<=", "lte":
		return "<="
	case ">", "gt":
		return ">"
	case "<", "lt":
		return "<"
	case "==", "=", "eq":
		return "=="
	default:
		return ""
	}
}

func DecodeMetricConditions(raw datatypes.JSON) []MetricCondition {
	if len(raw) == 0 {
		return nil
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	var list []MetricCondition
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]MetricCondition, 0, len(list))
	for _, c := range list {
		if c.MetricID == uuid.Nil {
			continue
		}
		c.Operator = NormalizeOperator(c.Operator)
		out = append(out, c)
	}
	return out
}

func EncodeMetricConditions(list []MetricCondition) datatypes.JSON {
	if len(list) == 0 {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(mustJSON(list))
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
