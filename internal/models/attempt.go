package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptState string

const (
	AttemptInProgress AttemptState = "inprogress"
	AttemptOverdue    AttemptState = "overdue"
	AttemptFinished   AttemptState = "finished"
	AttemptAbandoned  AttemptState = "abandoned"
)

// IsFinal reports whether the state accepts no further transitions.
func (s AttemptState) IsFinal() bool {
	return s == AttemptFinished || s == AttemptAbandoned
}

// Attempt is one user's run through a quiz.
type Attempt struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	QuizID        uint         `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_quiz_user_attempt,priority:1"`
	UserID        string       `json:"user_id" gorm:"not null;index;size:255;uniqueIndex:idx_quiz_user_attempt,priority:2"`
	AttemptNumber int          `json:"attempt_number" gorm:"not null;uniqueIndex:idx_quiz_user_attempt,priority:3"`
	State         AttemptState `json:"state" gorm:"default:inprogress;index"`

	// QuestionUsageID links the attempt to its per-question grading
	// state held by the question engine.
	QuestionUsageID string `json:"question_usage_id" gorm:"not null;size:36;index"`

	// Timing
	TimeStart    time.Time  `json:"time_start"`
	TimeFinish   *time.Time `json:"time_finish"`
	TimeModified time.Time  `json:"time_modified"`

	// TimeCheckState is the next instant at which the state machine
	// may need to transition this attempt (deadline, or deadline plus
	// grace period once overdue). Nil when no transition is pending.
	TimeCheckState *time.Time `json:"time_check_state" gorm:"index"`

	CurrentPage int  `json:"current_page" gorm:"default:1"`
	Preview     bool `json:"preview" gorm:"default:false;index"`

	// SumGrades is nil until the attempt has been graded.
	SumGrades *float64 `json:"sum_grades"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Quiz Quiz `json:"quiz,omitempty" gorm:"foreignKey:QuizID"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

// QuestionUsage is the grading container for one attempt. The question
// engine owns its contents; the attempt service only reads totals.
type QuestionUsage struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UniqueID string `json:"unique_id" gorm:"not null;size:36;uniqueIndex"`
	QuizID   uint   `json:"quiz_id" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slots []UsageSlot `json:"slots,omitempty" gorm:"foreignKey:UsageID"`
}

func (QuestionUsage) TableName() string {
	return "question_usages"
}

// UsageSlot holds the engine-side grading state for one slot of one
// attempt.
type UsageSlot struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	UsageID    uint    `json:"usage_id" gorm:"not null;index;uniqueIndex:idx_usage_slot,priority:1"`
	Slot       int     `json:"slot" gorm:"not null;uniqueIndex:idx_usage_slot,priority:2"`
	QuestionID uint    `json:"question_id" gorm:"not null"`
	MaxMark    float64 `json:"max_mark" gorm:"default:1"`

	// Fraction is nil until the slot has something gradable.
	Fraction *float64 `json:"fraction"`

	// ResponseData is the engine's opaque response payload, written as
	// the student saves.
	ResponseData datatypes.JSON `json:"response_data,omitempty" gorm:"type:jsonb"`

	// QuestionVersion records which version of the question graded
	// this slot; regrading bumps it to the current version.
	QuestionVersion int `json:"question_version" gorm:"default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UsageSlot) TableName() string {
	return "question_usage_slots"
}

// RegradeRecord remembers a fraction change produced by a regrade
// pass. Regraded is false for dry-run rows, which mark slots still
// needing a committed regrade.
type RegradeRecord struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	QuestionUsageID string  `json:"question_usage_id" gorm:"not null;size:36;index"`
	Slot            int     `json:"slot" gorm:"not null"`
	OldFraction     float64 `json:"old_fraction"`
	NewFraction     float64 `json:"new_fraction"`
	Regraded        bool    `json:"regraded" gorm:"default:false;index"`

	TimeModified time.Time `json:"time_modified"`
}

func (RegradeRecord) TableName() string {
	return "quiz_regrade_records"
}
