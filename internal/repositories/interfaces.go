package repositories

import (
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

// AttemptStateGroup selects attempts by lifecycle phase rather than a
// single state.
type AttemptStateGroup string

const (
	// AttemptGroupAll matches every state.
	AttemptGroupAll AttemptStateGroup = "all"
	// AttemptGroupFinished matches finished and abandoned attempts.
	AttemptGroupFinished AttemptStateGroup = "finished"
	// AttemptGroupUnfinished matches in-progress and overdue attempts.
	AttemptGroupUnfinished AttemptStateGroup = "unfinished"
)

// States returns the attempt states the group covers; nil means no
// state filter.
func (g AttemptStateGroup) States() []models.AttemptState {
	switch g {
	case AttemptGroupFinished:
		return []models.AttemptState{models.AttemptFinished, models.AttemptAbandoned}
	case AttemptGroupUnfinished:
		return []models.AttemptState{models.AttemptInProgress, models.AttemptOverdue}
	default:
		return nil
	}
}

type AttemptFilters struct {
	State           *models.AttemptState `json:"state"`
	StateGroup      AttemptStateGroup    `json:"state_group"`
	UserID          *string              `json:"user_id"`
	IncludePreviews bool                 `json:"include_previews"`
	DateFrom        *time.Time           `json:"date_from"`
	DateTo          *time.Time           `json:"date_to"`
	Limit           int                  `json:"limit"`
	Offset          int                  `json:"offset"`
	SortBy          string               `json:"sort_by"`    // "time_start", "attempt_number", "sum_grades"
	SortOrder       string               `json:"sort_order"` // "asc", "desc"
}

type OverrideFilters struct {
	UserID *string `json:"user_id"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts  int                        `json:"total_attempts"`
	StateBreakdown map[models.AttemptState]int `json:"state_breakdown"`
	AverageGrade   float64                    `json:"average_grade"`
	PreviewCount   int                        `json:"preview_count"`
}

// RegradeSlots maps a question usage unique ID to the slots in it
// still needing a committed regrade.
type RegradeSlots map[string][]int
