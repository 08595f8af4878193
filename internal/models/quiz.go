package models

import (
	"time"

	"gorm.io/datatypes"
)

type GradingMethod string

const (
	GradeHighest GradingMethod = "highest"
	GradeAverage GradingMethod = "average"
	GradeFirst   GradingMethod = "first"
	GradeLast    GradingMethod = "last"
)

type OverdueHandling string

const (
	OverdueAutoSubmit  OverdueHandling = "autosubmit"
	OverdueGracePeriod OverdueHandling = "graceperiod"
	OverdueAutoAbandon OverdueHandling = "autoabandon"
)

type NavigationMethod string

const (
	NavigationFree       NavigationMethod = "free"
	NavigationSequential NavigationMethod = "sequential"
)

type Quiz struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	CourseID    uint    `json:"course_id" gorm:"not null;index"`
	Title       string  `json:"title" gorm:"not null;size:255" validate:"required,quiz_title"`
	Description *string `json:"description" gorm:"type:text"`
	CreatedBy   string  `json:"created_by" gorm:"not null;index;size:255"`

	// Timing window. Zero values mean unbounded.
	TimeOpen  *time.Time `json:"time_open"`
	TimeClose *time.Time `json:"time_close"`

	// TimeLimit is in seconds; 0 means no limit.
	TimeLimit       int             `json:"time_limit" gorm:"default:0" validate:"min=0"`
	OverdueHandling OverdueHandling `json:"overdue_handling" gorm:"default:autosubmit" validate:"overdue_handling"`
	GracePeriod     int             `json:"grace_period" gorm:"default:0" validate:"min=0"`

	// MaxAttempts 0 means unlimited.
	MaxAttempts   int           `json:"max_attempts" gorm:"default:0" validate:"min=0"`
	GradingMethod GradingMethod `json:"grading_method" gorm:"default:highest" validate:"grading_method"`

	NavigationMethod NavigationMethod `json:"navigation_method" gorm:"default:free" validate:"navigation_method"`
	QuestionsPerPage int              `json:"questions_per_page" gorm:"default:1" validate:"min=0"`
	ShuffleQuestions bool             `json:"shuffle_questions"`

	// Access restrictions.
	Password          string `json:"-" gorm:"size:255"`
	SubnetRestriction string `json:"subnet_restriction" gorm:"size:255"`
	DelayAttempt1     int    `json:"delay_attempt_1" gorm:"default:0" validate:"min=0"` // seconds before 2nd attempt
	DelayAttempt2     int    `json:"delay_attempt_2" gorm:"default:0" validate:"min=0"` // seconds before 3rd+

	// Grading.
	SumGrades float64 `json:"sum_grades"`
	MaxGrade  float64 `json:"max_grade" gorm:"default:10"`

	ReviewOptions datatypes.JSON `json:"review_options" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Sections []QuizSection `json:"sections,omitempty" gorm:"foreignKey:QuizID"`
	Slots    []QuizSlot    `json:"slots,omitempty" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizSection groups a contiguous run of slots under a heading. The
// first section of a quiz always starts at slot 1.
type QuizSection struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	QuizID           uint   `json:"quiz_id" gorm:"not null;index"`
	FirstSlot        int    `json:"first_slot" gorm:"not null" validate:"min=1"`
	Heading          string `json:"heading" gorm:"size:255"`
	ShuffleQuestions bool   `json:"shuffle_questions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizSection) TableName() string {
	return "quiz_sections"
}

// QuizSlot places one question at a position in the quiz layout.
// SlotNumber runs contiguously from 1; Page numbers are dense from 1.
type QuizSlot struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	QuizID     uint    `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_quiz_slot_number,priority:1"`
	SlotNumber int     `json:"slot_number" gorm:"not null;uniqueIndex:idx_quiz_slot_number,priority:2" validate:"min=1"`
	Page       int     `json:"page" gorm:"not null" validate:"min=1"`
	QuestionID uint    `json:"question_id" gorm:"not null;index"`
	MaxMark    float64 `json:"max_mark" gorm:"default:1" validate:"min=0"`

	// RequirePrevious blocks the question until the previous slot is
	// completed, independent of the quiz navigation method.
	RequirePrevious bool `json:"require_previous"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizSlot) TableName() string {
	return "quiz_slots"
}

// UserOverride relaxes or tightens quiz settings for one user. Nil
// fields fall through to the quiz value.
type UserOverride struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	QuizID uint   `json:"quiz_id" gorm:"not null;index;uniqueIndex:idx_override_quiz_user,priority:1"`
	UserID string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_override_quiz_user,priority:2"`

	TimeOpen  *time.Time `json:"time_open"`
	TimeClose *time.Time `json:"time_close"`
	TimeLimit *int       `json:"time_limit" validate:"omitempty,min=0"`
	Attempts  *int       `json:"attempts" validate:"omitempty,min=0"`
	Password  *string    `json:"-" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserOverride) TableName() string {
	return "quiz_user_overrides"
}

// EffectiveSettings is a Quiz with any user override already folded
// in. Access rules and the attempt lifecycle only ever see this view.
type EffectiveSettings struct {
	Quiz

	// ExtraPasswords are additional accepted passwords contributed by
	// overrides.
	ExtraPasswords []string `json:"-"`
}

// ApplyOverride folds a user override into the quiz settings.
func (q Quiz) ApplyOverride(o *UserOverride) EffectiveSettings {
	eff := EffectiveSettings{Quiz: q}
	if o == nil {
		return eff
	}
	if o.TimeOpen != nil {
		eff.TimeOpen = o.TimeOpen
	}
	if o.TimeClose != nil {
		eff.TimeClose = o.TimeClose
	}
	if o.TimeLimit != nil {
		eff.TimeLimit = *o.TimeLimit
	}
	if o.Attempts != nil {
		eff.MaxAttempts = *o.Attempts
	}
	if o.Password != nil && *o.Password != "" {
		eff.ExtraPasswords = append(eff.ExtraPasswords, *o.Password)
	}
	return eff
}
