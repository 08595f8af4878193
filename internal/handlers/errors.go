package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// handleServiceError maps service-level errors to HTTP responses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Typed errors first
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var svcValidation *services.ValidationError
	if errors.As(err, &svcValidation) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: svcValidation.Message,
			Details: map[string]interface{}{
				"field": svcValidation.Field,
				"value": svcValidation.Value,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	var accessDenied *services.AccessDeniedError
	if errors.As(err, &accessDenied) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Quiz access denied",
			Details: map[string]interface{}{
				"quiz_id": accessDenied.QuizID,
				"reasons": accessDenied.Reasons,
			},
		})
		return
	}

	var stateError *services.AttemptStateError
	if errors.As(err, &stateError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is already closed",
			Details: map[string]interface{}{
				"attempt_id": stateError.AttemptID,
				"state":      stateError.State,
				"operation":  stateError.Operation,
			},
		})
		return
	}

	var regradeError *services.RegradeInconsistencyError
	if errors.As(err, &regradeError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Regrade inconsistency",
			Details: regradeError.Error(),
		})
		return
	}

	// Sentinel errors
	switch {
	case errors.Is(err, services.ErrQuizNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Quiz not found"})
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, services.ErrSlotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Slot not found"})
	case errors.Is(err, services.ErrSectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Section not found"})
	case errors.Is(err, services.ErrOverrideNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Override not found"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
	case errors.Is(err, services.ErrPageNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Page not found"})
	case errors.Is(err, services.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "An attempt is already in progress"})
	case errors.Is(err, services.ErrAttemptCannotStart):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Cannot start a new attempt"})
	case errors.Is(err, services.ErrAttemptClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is already closed"})
	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is not active"})
	case errors.Is(err, services.ErrPreflightRequired):
		c.JSON(http.StatusPreconditionRequired, ErrorResponse{Message: "Preflight checks required before starting"})
	case errors.Is(err, services.ErrOutOfSequenceAccess):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Pages must be visited in order"})
	case errors.Is(err, services.ErrStructureLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Quiz structure is locked by existing attempts"})
	case errors.Is(err, services.ErrLastSlotInSection):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Cannot remove the last slot of a section"})
	case errors.Is(err, services.ErrFirstSectionFixed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "The first section heading cannot be removed"})
	case errors.Is(err, services.ErrOverrideExists):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "An override for this user already exists"})
	case errors.Is(err, services.ErrNothingToRegrade):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: "No attempts to regrade"})
	case errors.Is(err, services.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "Service unavailable"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
