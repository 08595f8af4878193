package validator

import (
	"encoding/json"
	"time"
)

// ===== ATTEMPT REQUESTS =====

// StartAttemptRequest represents the request structure for starting an attempt
type StartAttemptRequest struct {
	QuizID        uint              `json:"quiz_id" validate:"required"`
	Preview       bool              `json:"preview"`
	PreflightData map[string]string `json:"preflight_data"`
}

// SaveAttemptRequest carries in-progress response data. Responses maps
// slot numbers to the question engine's opaque payload; slots absent
// from the map keep their stored responses.
type SaveAttemptRequest struct {
	Responses map[int]json.RawMessage `json:"responses" validate:"required,min=1"`
}

// NavigateRequest moves the student's current page within an attempt
type NavigateRequest struct {
	Page int `json:"page" validate:"required,min=1"`
}

// PreflightCheckRequest validates gate data (password etc.) ahead of starting
type PreflightCheckRequest struct {
	QuizID uint              `json:"quiz_id" validate:"required"`
	Data   map[string]string `json:"data" validate:"required"`
}

// ListAttemptsRequest filters attempt listings for a quiz
type ListAttemptsRequest struct {
	State           string     `form:"state" validate:"omitempty,oneof=inprogress overdue finished abandoned"`
	StateGroup      string     `form:"state_group" validate:"omitempty,oneof=all finished unfinished"`
	UserID          string     `form:"user_id"`
	IncludePreviews bool       `form:"include_previews"`
	DateFrom        *time.Time `form:"date_from"`
	DateTo          *time.Time `form:"date_to"`
	Limit           int        `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset          int        `form:"offset" validate:"omitempty,min=0"`
	SortBy          string     `form:"sort_by" validate:"omitempty,oneof=attempt_number sum_grades time_start"`
	SortOrder       string     `form:"sort_order" validate:"omitempty,oneof=asc desc"`
}

// ===== STRUCTURE REQUESTS =====

// MoveSlotRequest repositions a slot within the quiz layout.
// AfterSlotNumber of zero moves the slot to the very beginning.
type MoveSlotRequest struct {
	AfterSlotNumber int `json:"after_slot_number" validate:"min=0"`
	Page            int `json:"page" validate:"required,min=1"`
}

// SetSlotMaxMarkRequest changes the maximum mark of a slot
type SetSlotMaxMarkRequest struct {
	MaxMark float64 `json:"max_mark" validate:"min=0"`
}

// AddSectionRequest starts a new section heading at the given page
type AddSectionRequest struct {
	Page    int    `json:"page" validate:"required,min=2"`
	Heading string `json:"heading" validate:"max=255"`
}

// UpdateSectionRequest edits an existing section heading
type UpdateSectionRequest struct {
	Heading          *string `json:"heading" validate:"omitempty,max=255"`
	ShuffleQuestions *bool   `json:"shuffle_questions"`
}

// ===== OVERRIDE REQUESTS =====

// OverrideCreateRequest grants a single user altered quiz settings
type OverrideCreateRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	TimeOpen  *time.Time `json:"time_open"`
	TimeClose *time.Time `json:"time_close"`
	TimeLimit *int       `json:"time_limit" validate:"omitempty,min=0"`
	Attempts  *int       `json:"attempts" validate:"omitempty,min=0"`
	Password  *string    `json:"password" validate:"omitempty,max=255"`
}

// HasAnyValue reports whether the override changes at least one setting
func (r *OverrideCreateRequest) HasAnyValue() bool {
	return r.TimeOpen != nil || r.TimeClose != nil || r.TimeLimit != nil ||
		r.Attempts != nil || r.Password != nil
}

// OverrideUpdateRequest edits an existing override
type OverrideUpdateRequest struct {
	TimeOpen  *time.Time `json:"time_open"`
	TimeClose *time.Time `json:"time_close"`
	TimeLimit *int       `json:"time_limit" validate:"omitempty,min=0"`
	Attempts  *int       `json:"attempts" validate:"omitempty,min=0"`
	Password  *string    `json:"password" validate:"omitempty,max=255"`
}

// ===== REGRADE REQUESTS =====

// RegradeRequest selects which attempts of a quiz to regrade.
// Empty UserIDs and AttemptIDs means all real attempts.
type RegradeRequest struct {
	DryRun     bool     `json:"dry_run"`
	UserIDs    []string `json:"user_ids"`
	AttemptIDs []uint   `json:"attempt_ids"`
}
