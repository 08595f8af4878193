package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is the catalogue entry a slot points at. The grading logic
// for each type lives behind the question engine; the attempt service
// only needs the identity, the default mark and the current version.
type Question struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:255" validate:"required"`
	DefaultMark float64 `json:"default_mark" gorm:"default:1" validate:"min=0"`

	// Version increments whenever the question content or its grading
	// key changes. Usage slots graded against an older version are
	// candidates for regrading.
	Version int `json:"version" gorm:"default:1"`

	// GradingKey is the engine-specific grading definition.
	GradingKey datatypes.JSON `json:"grading_key" gorm:"type:jsonb"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}
