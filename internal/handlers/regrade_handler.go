package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/utils"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type RegradeHandler struct {
	BaseHandler
	regradeService services.RegradeService
	validator      *validator.Validator
}

func NewRegradeHandler(
	regradeService services.RegradeService,
	validator *validator.Validator,
	logger utils.Logger,
) *RegradeHandler {
	return &RegradeHandler{
		BaseHandler:    NewBaseHandler(logger),
		regradeService: regradeService,
		validator:      validator,
	}
}

// Regrade runs a batch regrade over a quiz's closed attempts
// @Summary Regrade attempts
// @Description Recomputes marks for closed attempts, optionally as a dry run
// @Tags regrade
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param regrade body services.RegradeRequest true "Regrade scope"
// @Success 200 {object} services.RegradeReport
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/regrades [post]
func (h *RegradeHandler) Regrade(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	var req services.RegradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Regrading attempts", "quiz_id", quizID, "dry_run", req.DryRun)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	report, err := h.regradeService.Regrade(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// RegradeNeeded commits pending changes found by an earlier dry run
// @Summary Regrade attempts needing it
// @Description Regrades only the attempts a previous dry run flagged
// @Tags regrade
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.RegradeReport
// @Failure 403 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/regrades/resume [post]
func (h *RegradeHandler) RegradeNeeded(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Regrading attempts flagged by dry run", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	report, err := h.regradeService.RegradeAttemptsNeedingIt(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetSummary reports how many attempts still need regrading
// @Summary Get regrade summary
// @Description Counts attempts with uncommitted regrade changes
// @Tags regrade
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.RegradeSummary
// @Failure 403 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/regrades/summary [get]
func (h *RegradeHandler) GetSummary(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	summary, err := h.regradeService.GetSummary(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
