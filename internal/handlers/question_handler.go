package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

// QuestionHandler serves standalone question management endpoints.
type QuestionHandler struct {
	BaseHandler
	questionService services.QuestionService
}

func NewQuestionHandler(questionService services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:     NewBaseHandler(logger),
		questionService: questionService,
	}
}

// CreateQuestion handles POST /api/v1/questions
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), &req, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "question created", question)
}

// GetQuestion handles GET /api/v1/questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	questionID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	question, err := h.questionService.GetByID(c.Request.Context(), questionID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

// ListQuestions handles GET /api/v1/questions
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	limit, offset := ParsePagination(c)
	filters := repositories.QuestionFilters{
		Limit:  limit,
		Offset: offset,
	}
	if qType := c.Query("type"); qType != "" {
		t := models.QuestionType(qType)
		filters.Type = &t
	}

	questions, total, err := h.questionService.List(c.Request.Context(), filters)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: questions, Total: total})
}

// UpdateQuestion handles PUT /api/v1/questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	questionID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), questionID, &req, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "question updated", question)
}

// DeleteQuestion handles DELETE /api/v1/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	questionID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), questionID, actorID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "question deleted", nil)
}
