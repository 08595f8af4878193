package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/services"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/utils"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type StructureHandler struct {
	BaseHandler
	structureService services.StructureService
	validator        *validator.Validator
}

func NewStructureHandler(
	structureService services.StructureService,
	validator *validator.Validator,
	logger utils.Logger,
) *StructureHandler {
	return &StructureHandler{
		BaseHandler:      NewBaseHandler(logger),
		structureService: structureService,
		validator:        validator,
	}
}

// GetStructure returns the slot and section layout of a quiz
// @Summary Get quiz structure
// @Description Returns sections, slots, pages and the structure lock state
// @Tags structure
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.StructureResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/structure [get]
func (h *StructureHandler) GetStructure(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	structure, err := h.structureService.GetStructure(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, structure)
}

// MoveSlot moves a slot to a new position and page
// @Summary Move slot
// @Description Moves a slot after another slot, renumbering slots and compacting pages
// @Tags structure
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param slot path uint true "Slot ID"
// @Param move body services.MoveSlotRequest true "Target position"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/slots/{slot}/move [put]
func (h *StructureHandler) MoveSlot(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	slotID := h.parseIDParam(c, "slot")
	if slotID == 0 {
		return
	}

	var req services.MoveSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Moving slot", "quiz_id", quizID, "slot_id", slotID, "after", req.AfterSlotNumber)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.MoveSlot(c.Request.Context(), quizID, slotID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Slot moved",
	})
}

// RemoveSlot deletes a slot from the quiz
// @Summary Remove slot
// @Description Deletes a slot, closes the numbering gap and updates the grade total
// @Tags structure
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param slot path uint true "Slot ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/slots/{slot} [delete]
func (h *StructureHandler) RemoveSlot(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	slotID := h.parseIDParam(c, "slot")
	if slotID == 0 {
		return
	}

	h.LogRequest(c, "Removing slot", "quiz_id", quizID, "slot_id", slotID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.RemoveSlot(c.Request.Context(), quizID, slotID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Slot removed",
	})
}

// UpdateSlotMaxMark changes the maximum mark of a slot
// @Summary Set slot max mark
// @Description Updates a slot's maximum mark and propagates it to existing attempts
// @Tags structure
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param slot path uint true "Slot ID"
// @Param mark body services.SetSlotMaxMarkRequest true "New max mark"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/slots/{slot}/maxmark [put]
func (h *StructureHandler) UpdateSlotMaxMark(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	slotID := h.parseIDParam(c, "slot")
	if slotID == 0 {
		return
	}

	var req services.SetSlotMaxMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating slot max mark", "quiz_id", quizID, "slot_id", slotID, "max_mark", req.MaxMark)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.UpdateSlotMaxMark(c.Request.Context(), quizID, slotID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Slot max mark updated",
	})
}

type setRequirePreviousRequest struct {
	RequirePrevious bool `json:"require_previous"`
}

// SetRequirePrevious toggles the dependency of a slot on its predecessor
// @Summary Set require-previous flag
// @Description Marks a slot as unavailable until the previous slot is completed
// @Tags structure
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param slot path uint true "Slot ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/slots/{slot}/require-previous [put]
func (h *StructureHandler) SetRequirePrevious(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	slotID := h.parseIDParam(c, "slot")
	if slotID == 0 {
		return
	}

	var req setRequirePreviousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Setting require previous", "quiz_id", quizID, "slot_id", slotID, "require", req.RequirePrevious)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.SetRequirePrevious(c.Request.Context(), quizID, slotID, req.RequirePrevious, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Slot dependency updated",
	})
}

// AddSectionHeading starts a new section at the first slot of a page
// @Summary Add section heading
// @Description Creates a section heading beginning at the given page
// @Tags structure
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param section body services.AddSectionRequest true "Section data"
// @Success 201 {object} services.SectionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/sections [post]
func (h *StructureHandler) AddSectionHeading(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	var req services.AddSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Adding section heading", "quiz_id", quizID, "page", req.Page)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	section, err := h.structureService.AddSectionHeading(c.Request.Context(), quizID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, section)
}

// UpdateSection changes a section's heading or shuffle setting
// @Summary Update section
// @Description Updates the heading text or shuffle flag of a section
// @Tags structure
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param id path uint true "Section ID"
// @Param section body services.UpdateSectionRequest true "Section updates"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/sections/{id} [put]
func (h *StructureHandler) UpdateSection(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	var req services.UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating section", "quiz_id", quizID, "section_id", sectionID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.UpdateSection(c.Request.Context(), quizID, sectionID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Section updated",
	})
}

// RemoveSectionHeading deletes a section heading
// @Summary Remove section heading
// @Description Deletes a section heading; its slots join the previous section
// @Tags structure
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param id path uint true "Section ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{quiz_id}/sections/{id} [delete]
func (h *StructureHandler) RemoveSectionHeading(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	h.LogRequest(c, "Removing section heading", "quiz_id", quizID, "section_id", sectionID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.structureService.RemoveSectionHeading(c.Request.Context(), quizID, sectionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Section heading removed",
	})
}
