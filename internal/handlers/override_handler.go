package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/utils"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type OverrideHandler struct {
	BaseHandler
	overrideService services.OverrideService
	validator       *validator.Validator
}

func NewOverrideHandler(
	overrideService services.OverrideService,
	validator *validator.Validator,
	logger utils.Logger,
) *OverrideHandler {
	return &OverrideHandler{
		BaseHandler:     NewBaseHandler(logger),
		overrideService: overrideService,
		validator:       validator,
	}
}

// CreateOverride creates a per-user settings override
// @Summary Create override
// @Description Creates a per-user override of quiz timing, attempts or password
// @Tags overrides
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param override body services.OverrideCreateRequest true "Override data"
// @Success 201 {object} services.OverrideResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/overrides [post]
func (h *OverrideHandler) CreateOverride(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	var req services.OverrideCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating override", "quiz_id", quizID, "target_user", req.UserID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	override, err := h.overrideService.Create(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, override)
}

// UpdateOverride updates fields of an existing override
// @Summary Update override
// @Description Updates individual fields of a per-user override
// @Tags overrides
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param id path uint true "Override ID"
// @Param override body services.OverrideUpdateRequest true "Override updates"
// @Success 200 {object} services.OverrideResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/overrides/{id} [put]
func (h *OverrideHandler) UpdateOverride(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	overrideID := h.parseIDParam(c, "id")
	if overrideID == 0 {
		return
	}

	var req services.OverrideUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating override", "quiz_id", quizID, "override_id", overrideID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	override, err := h.overrideService.Update(c.Request.Context(), quizID, overrideID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, override)
}

// DeleteOverride removes an override
// @Summary Delete override
// @Description Removes a per-user override; base quiz settings apply again
// @Tags overrides
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param id path uint true "Override ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/overrides/{id} [delete]
func (h *OverrideHandler) DeleteOverride(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	overrideID := h.parseIDParam(c, "id")
	if overrideID == 0 {
		return
	}

	h.LogRequest(c, "Deleting override", "quiz_id", quizID, "override_id", overrideID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.overrideService.Delete(c.Request.Context(), quizID, overrideID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Override deleted",
	})
}

// GetOverride fetches a single override
// @Summary Get override
// @Tags overrides
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param id path uint true "Override ID"
// @Success 200 {object} services.OverrideResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/overrides/{id} [get]
func (h *OverrideHandler) GetOverride(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	overrideID := h.parseIDParam(c, "id")
	if overrideID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	override, err := h.overrideService.GetByID(c.Request.Context(), quizID, overrideID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, override)
}

// ListOverrides lists all overrides for a quiz
// @Summary List overrides
// @Tags overrides
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.OverrideListResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/overrides [get]
func (h *OverrideHandler) ListOverrides(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	overrides, err := h.overrideService.List(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overrides)
}
