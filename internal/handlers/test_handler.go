package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testing-system/testing-service/internal/repositories"
	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

// TestHandler serves test lifecycle and ordered-question endpoints.
type TestHandler struct {
	BaseHandler
	testService  services.TestService
	orderService services.TestQuestionService
}

func NewTestHandler(testService services.TestService, orderService services.TestQuestionService, logger utils.Logger) *TestHandler {
	return &TestHandler{
		BaseHandler:  NewBaseHandler(logger),
		testService:  testService,
		orderService: orderService,
	}
}

// CreateTest handles POST /api/v1/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), &req, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "test created", test)
}

// GetTest handles GET /api/v1/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, test)
}

// ListTests handles GET /api/v1/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	limit, offset := ParsePagination(c)
	filters := repositories.TestFilters{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if title := c.Query("title"); title != "" {
		filters.Title = &title
	}

	tests, total, err := h.testService.List(c.Request.Context(), filters)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: tests, Total: total})
}

// UpdateTest handles PUT /api/v1/tests/:id
func (h *TestHandler) UpdateTest(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req services.UpdateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), testID, &req, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "test updated", test)
}

// DeleteTest handles DELETE /api/v1/tests/:id
func (h *TestHandler) DeleteTest(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), testID, actorID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "test deleted", nil)
}

// GetStartedTests handles GET /api/v1/users/:id/tests
func (h *TestHandler) GetStartedTests(c *gin.Context) {
	userID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	tests, err := h.testService.GetStartedByUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: tests, Total: int64(len(tests))})
}

// GetUserResults handles GET /api/v1/users/:id/results
func (h *TestHandler) GetUserResults(c *gin.Context) {
	userID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	results, err := h.testService.GetUserResults(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: results, Total: int64(len(results))})
}

// ===== ORDERED QUESTION MANAGEMENT =====

type addQuestionRequest struct {
	Order *int `json:"order,omitempty"`
}

type reorderRequest struct {
	QuestionIDs []uint `json:"question_ids" binding:"required"`
}

// GetTestQuestions handles GET /api/v1/tests/:id/questions
func (h *TestHandler) GetTestQuestions(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}

	links, err := h.orderService.GetOrderedQuestions(c.Request.Context(), testID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: links, Total: int64(len(links))})
}

// AddQuestionToTest handles POST /api/v1/tests/:id/questions/:question_id
func (h *TestHandler) AddQuestionToTest(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	// Body is optional; without it the question is appended.
	var req addQuestionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	link, err := h.orderService.AddQuestion(c.Request.Context(), testID, questionID, req.Order, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "question added to test", link)
}

// RemoveQuestionFromTest handles DELETE /api/v1/tests/:id/questions/:question_id
func (h *TestHandler) RemoveQuestionFromTest(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	if err := h.orderService.RemoveQuestion(c.Request.Context(), testID, questionID, actorID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "question removed from test", nil)
}

// ReorderTestQuestions handles PUT /api/v1/tests/:id/questions/reorder
func (h *TestHandler) ReorderTestQuestions(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.orderService.Reorder(c.Request.Context(), testID, req.QuestionIDs, actorID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "questions reordered", nil)
}
