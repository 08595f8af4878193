package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// ===== SENTINEL ERRORS =====

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSectionNotFound  = errors.New("section not found")
	ErrOverrideNotFound = errors.New("override not found")
	ErrUserNotFound     = errors.New("user not found")

	ErrAttemptCannotStart  = errors.New("attempt cannot be started")
	ErrAttemptInProgress   = errors.New("user already has an unfinished attempt")
	ErrAttemptNotActive    = errors.New("attempt is not active")
	ErrAttemptClosed       = errors.New("attempt is already closed")
	ErrPreflightRequired   = errors.New("preflight checks must pass before starting")
	ErrOutOfSequenceAccess = errors.New("page not reachable under sequential navigation")
	ErrPageNotFound        = errors.New("page does not exist in this attempt")

	ErrStructureLocked    = errors.New("quiz structure is locked by existing attempts")
	ErrLastSlotInSection  = errors.New("cannot remove the only slot of a section")
	ErrFirstSectionFixed  = errors.New("the first section of a quiz cannot be removed")
	ErrOverrideExists     = errors.New("an override for this user already exists")
	ErrNothingToRegrade   = errors.New("no attempts match the regrade selection")
	ErrServiceUnavailable = errors.New("service not initialized")
)

// ===== TYPED ERRORS =====

// PermissionError indicates the user may not perform an action on a resource
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ValidationError carries a single field-level failure raised by a service
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// AccessDeniedError collects the rule messages that block quiz access
type AccessDeniedError struct {
	UserID  string
	QuizID  uint
	Reasons []string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access to quiz %d denied for user %s: %s",
		e.QuizID, e.UserID, strings.Join(e.Reasons, "; "))
}

func NewAccessDeniedError(userID string, quizID uint, reasons []string) *AccessDeniedError {
	return &AccessDeniedError{UserID: userID, QuizID: quizID, Reasons: reasons}
}

// AttemptStateError indicates an operation invalid for the attempt's state
type AttemptStateError struct {
	AttemptID uint
	State     models.AttemptState
	Operation string
}

func (e *AttemptStateError) Error() string {
	return fmt.Sprintf("attempt %d is %s, cannot %s", e.AttemptID, e.State, e.Operation)
}

func NewAttemptStateError(attemptID uint, state models.AttemptState, operation string) *AttemptStateError {
	return &AttemptStateError{AttemptID: attemptID, State: state, Operation: operation}
}

// RegradeInconsistencyError indicates stored usage data no longer matches
// the quiz structure, so the affected attempt was skipped
type RegradeInconsistencyError struct {
	AttemptID uint
	UsageID   string
	Slot      int
	Message   string
}

func (e *RegradeInconsistencyError) Error() string {
	return fmt.Sprintf("regrade of attempt %d (usage %s, slot %d) skipped: %s",
		e.AttemptID, e.UsageID, e.Slot, e.Message)
}

func NewRegradeInconsistencyError(attemptID uint, usageID string, slot int, message string) *RegradeInconsistencyError {
	return &RegradeInconsistencyError{AttemptID: attemptID, UsageID: usageID, Slot: slot, Message: message}
}

// IsPermissionError reports whether err is a permission failure
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsAccessDeniedError reports whether err is a rule-chain denial
func IsAccessDeniedError(err error) bool {
	var ae *AccessDeniedError
	return errors.As(err, &ae)
}
