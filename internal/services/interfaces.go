package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use validator request types
type StartAttemptRequest = validator.StartAttemptRequest
type SaveAttemptRequest = validator.SaveAttemptRequest
type NavigateRequest = validator.NavigateRequest
type PreflightCheckRequest = validator.PreflightCheckRequest
type ListAttemptsRequest = validator.ListAttemptsRequest
type MoveSlotRequest = validator.MoveSlotRequest
type SetSlotMaxMarkRequest = validator.SetSlotMaxMarkRequest
type AddSectionRequest = validator.AddSectionRequest
type UpdateSectionRequest = validator.UpdateSectionRequest
type OverrideCreateRequest = validator.OverrideCreateRequest
type OverrideUpdateRequest = validator.OverrideUpdateRequest
type RegradeRequest = validator.RegradeRequest

// ===== ATTEMPT RELATED DTOs =====

type AttemptResponse struct {
	*models.Attempt
	TimeLeft  *int64     `json:"time_left,omitempty"` // seconds, only while unfinished
	EndTime   *time.Time `json:"end_time,omitempty"`
	CanSubmit bool       `json:"can_submit"`
	CanResume bool       `json:"can_resume"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// TimerResponse describes the countdown for an unfinished attempt.
// EndTime is nil when no rule imposes a deadline.
type TimerResponse struct {
	AttemptID uint                `json:"attempt_id"`
	State     models.AttemptState `json:"state"`
	EndTime   *time.Time          `json:"end_time,omitempty"`
	TimeLeft  *int64              `json:"time_left,omitempty"`
}

// AccessInfoResponse summarises the rule chain's verdict for a user
type AccessInfoResponse struct {
	QuizID             uint     `json:"quiz_id"`
	RuleDescriptions   []string `json:"rule_descriptions"`
	PreventAccess      []string `json:"prevent_access,omitempty"`
	PreventNewAttempt  []string `json:"prevent_new_attempt,omitempty"`
	IsFinished         bool     `json:"is_finished"`
	PreflightRequired  bool     `json:"preflight_required"`
	NumAttempts        int      `json:"num_attempts"`
	MaxAttempts        int      `json:"max_attempts"` // 0 = unlimited
	AttemptsRemaining  *int     `json:"attempts_remaining,omitempty"`
	UnfinishedAttempt  *uint    `json:"unfinished_attempt,omitempty"`
}

// ===== STRUCTURE RELATED DTOs =====

type SlotResponse struct {
	*models.QuizSlot
	QuestionName string `json:"question_name,omitempty"`
}

type SectionResponse struct {
	*models.QuizSection
	Slots []*SlotResponse `json:"slots"`
}

type StructureResponse struct {
	QuizID    uint               `json:"quiz_id"`
	Locked    bool               `json:"locked"`
	SumGrades float64            `json:"sum_grades"`
	PageCount int                `json:"page_count"`
	Sections  []*SectionResponse `json:"sections"`
}

// ===== OVERRIDE RELATED DTOs =====

type OverrideResponse struct {
	*models.UserOverride
	HasPassword bool `json:"has_password"`
}

type OverrideListResponse struct {
	Overrides []*OverrideResponse `json:"overrides"`
	Total     int64               `json:"total"`
}

// ===== REGRADE RELATED DTOs =====

// RegradeSlotChange records one slot whose fraction moved during a regrade
type RegradeSlotChange struct {
	AttemptID   uint    `json:"attempt_id"`
	UserID      string  `json:"user_id"`
	Slot        int     `json:"slot"`
	OldFraction float64 `json:"old_fraction"`
	NewFraction float64 `json:"new_fraction"`
}

type RegradeReport struct {
	QuizID           uint                `json:"quiz_id"`
	DryRun           bool                `json:"dry_run"`
	AttemptsTotal    int                 `json:"attempts_total"`
	AttemptsRegraded int                 `json:"attempts_regraded"`
	AttemptsSkipped  int                 `json:"attempts_skipped"`
	SlotsChanged     int                 `json:"slots_changed"`
	Changes          []RegradeSlotChange `json:"changes"`
	Errors           []string            `json:"errors,omitempty"`
	FinishedAt       time.Time           `json:"finished_at"`
}

type RegradeSummary struct {
	QuizID                 uint  `json:"quiz_id"`
	AttemptsNeedingRegrade int64 `json:"attempts_needing_regrade"`
	PendingSlotChanges     int   `json:"pending_slot_changes"`
}

// ===== SERVICE INTERFACES =====

// AttemptService manages the attempt lifecycle
type AttemptService interface {
	// Lifecycle
	Start(ctx context.Context, req *StartAttemptRequest, userID, clientIP string) (*AttemptResponse, error)
	SaveAttempt(ctx context.Context, attemptID uint, req *SaveAttemptRequest, userID string) (*AttemptResponse, error)
	SubmitAndFinish(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	Abandon(ctx context.Context, attemptID uint, userID string) error

	// Access
	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	GetTimer(ctx context.Context, attemptID uint, userID string) (*TimerResponse, error)
	List(ctx context.Context, quizID uint, req *ListAttemptsRequest, userID string) (*AttemptListResponse, error)
	GetAccessInfo(ctx context.Context, quizID uint, userID, clientIP string) (*AccessInfoResponse, error)
	CheckPreflight(ctx context.Context, req *PreflightCheckRequest, userID, clientIP string) error

	// Navigation
	Navigate(ctx context.Context, attemptID uint, req *NavigateRequest, userID string) (*AttemptResponse, error)

	// Background maintenance
	ProcessExpiredAttempts(ctx context.Context, limit int) (int, error)
}

// StructureService edits the slot and section layout of a quiz
type StructureService interface {
	GetStructure(ctx context.Context, quizID uint, userID string) (*StructureResponse, error)

	MoveSlot(ctx context.Context, quizID, slotID uint, req *MoveSlotRequest, userID string) error
	RemoveSlot(ctx context.Context, quizID, slotID uint, userID string) error
	UpdateSlotMaxMark(ctx context.Context, quizID, slotID uint, req *SetSlotMaxMarkRequest, userID string) error
	SetRequirePrevious(ctx context.Context, quizID, slotID uint, require bool, userID string) error

	AddSectionHeading(ctx context.Context, quizID uint, req *AddSectionRequest, userID string) (*SectionResponse, error)
	UpdateSection(ctx context.Context, quizID, sectionID uint, req *UpdateSectionRequest, userID string) error
	RemoveSectionHeading(ctx context.Context, quizID, sectionID uint, userID string) error
}

// RegradeService recomputes stored marks after grading changes
type RegradeService interface {
	Regrade(ctx context.Context, quizID uint, req *RegradeRequest, userID string) (*RegradeReport, error)
	RegradeAttemptsNeedingIt(ctx context.Context, quizID uint, userID string) (*RegradeReport, error)
	GetSummary(ctx context.Context, quizID uint, userID string) (*RegradeSummary, error)
}

// OverrideService manages per-user setting overrides
type OverrideService interface {
	Create(ctx context.Context, quizID uint, req *OverrideCreateRequest, userID string) (*OverrideResponse, error)
	Update(ctx context.Context, quizID, overrideID uint, req *OverrideUpdateRequest, userID string) (*OverrideResponse, error)
	Delete(ctx context.Context, quizID, overrideID uint, userID string) error
	GetByID(ctx context.Context, quizID, overrideID uint, userID string) (*OverrideResponse, error)
	List(ctx context.Context, quizID uint, userID string) (*OverrideListResponse, error)
}

// ReportService exports attempt data for teachers
type ReportService interface {
	ExportAttemptsOverview(ctx context.Context, quizID uint, userID string) ([]byte, error)
}

// QuestionEngine is the grading boundary. Implementations own response
// storage and produce a fraction in [0,1] per slot.
type QuestionEngine interface {
	// CreateUsage builds and persists the per-attempt usage with one slot
	// per quiz slot.
	CreateUsage(ctx context.Context, tx *gorm.DB, quiz *models.Quiz, slots []*models.QuizSlot) (*models.QuestionUsage, error)

	// SaveResponses stores in-progress response payloads, keyed by slot
	// number. Slots absent from the map are left untouched.
	SaveResponses(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage, responses map[int]json.RawMessage) error

	// FinishGrading grades all slots of a submitted usage and persists the
	// resulting fractions.
	FinishGrading(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage) error

	// RegradeSlot re-marks one slot against the current question version
	// and returns the new fraction plus that version, persisting nothing.
	// finished indicates the attempt had been submitted before the
	// regrade.
	RegradeSlot(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage, slot *models.UsageSlot, finished bool) (float64, int, error)
}

// ServiceManager provides access to all services with lifecycle management
type ServiceManager interface {
	Attempt() AttemptService
	Structure() StructureService
	Regrade() RegradeService
	Override() OverrideService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ===== SHARED HELPERS =====

// canManageQuiz reports whether the user may administer the quiz
func canManageQuiz(ctx context.Context, repo repositories.Repository, userID string) (bool, error) {
	user, err := repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return user.Role == models.RoleTeacher || user.Role == models.RoleAdmin, nil
}
