package handlers

import (
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/utils"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new quiz attempt
// @Summary Start quiz attempt
// @Description Starts a new attempt for a quiz after running the access rule chain
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Starting quiz attempt", "quiz_id", quizID)

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.QuizID = quizID

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, userID, c.ClientIP())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SaveAttempt stores in-progress responses for an attempt
// @Summary Save attempt responses
// @Description Saves response data for an open attempt without finishing it
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body services.SaveAttemptRequest true "Responses by slot number"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/save [post]
func (h *AttemptHandler) SaveAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SaveAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body", Details: err.Error()})
		return
	}

	h.LogRequest(c, "Saving quiz attempt responses", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.SaveAttempt(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAttempt submits and finishes an attempt
// @Summary Submit quiz attempt
// @Description Explicitly submits an attempt, grading it and marking it finished
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting quiz attempt", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.SubmitAndFinish(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// AbandonAttempt abandons an attempt without grading
// @Summary Abandon quiz attempt
// @Description Marks an attempt abandoned; no grade is recorded
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/abandon [post]
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Abandoning quiz attempt", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.Abandon(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt abandoned",
	})
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Description Retrieves an attempt, applying any pending time-based transition first
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetTimer returns countdown information for an attempt
// @Summary Get attempt timer
// @Description Returns the effective end time and seconds remaining for an attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.TimerResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/timer [get]
func (h *AttemptHandler) GetTimer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	timer, err := h.attemptService.GetTimer(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, timer)
}

// Navigate moves an in-progress attempt to another page
// @Summary Navigate attempt
// @Description Moves the attempt to the requested page, enforcing sequential navigation
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param page body services.NavigateRequest true "Target page"
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/page [put]
func (h *AttemptHandler) Navigate(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Navigating attempt", "attempt_id", id, "page", req.Page)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Navigate(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists attempts for a quiz
// @Summary List attempts
// @Description Lists attempts with state and user filters; students see only their own
// @Tags attempts
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param state query string false "Attempt state filter"
// @Param state_group query string false "State group: all, finished, unfinished"
// @Param user_id query string false "User filter (teachers only)"
// @Success 200 {object} services.AttemptListResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Listing attempts", "quiz_id", quizID)

	var req services.ListAttemptsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempts, err := h.attemptService.List(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// GetAccessInfo reports the access rule verdict for the calling user
// @Summary Get quiz access info
// @Description Returns rule descriptions, access verdicts and attempt counts
// @Tags attempts
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.AccessInfoResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/access [get]
func (h *AttemptHandler) GetAccessInfo(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	info, err := h.attemptService.GetAccessInfo(c.Request.Context(), quizID, userID, c.ClientIP())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// CheckPreflight validates preflight data (password etc.) without starting
// @Summary Check preflight data
// @Description Validates preflight submissions such as the quiz password
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param data body services.PreflightCheckRequest true "Preflight data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/preflight [post]
func (h *AttemptHandler) CheckPreflight(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	var req services.PreflightCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.QuizID = quizID

	h.LogRequest(c, "Checking preflight data", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.attemptService.CheckPreflight(c.Request.Context(), &req, userID, c.ClientIP()); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Preflight checks passed",
	})
}

// ProcessExpiredAttempts runs one expiry sweep over open attempts
// @Summary Process expired attempts
// @Description Applies overdue handling to open attempts whose deadline has passed
// @Tags attempts
// @Produce json
// @Param limit query int false "Maximum attempts to process" default(100)
// @Success 200 {object} SuccessResponse{data=int}
// @Failure 500 {object} ErrorResponse
// @Router /attempts/process-expired [post]
func (h *AttemptHandler) ProcessExpiredAttempts(c *gin.Context) {
	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid limit value",
			})
			return
		}
		limit = parsed
	}

	h.LogRequest(c, "Processing expired attempts", "limit", limit)

	processed, err := h.attemptService.ProcessExpiredAttempts(c.Request.Context(), limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Expired attempts processed",
		Data:    processed,
	})
}
