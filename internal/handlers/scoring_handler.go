package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

// ScoringHandler serves answer submission and result endpoints.
type ScoringHandler struct {
	BaseHandler
	scoringService services.ScoringService
}

func NewScoringHandler(scoringService services.ScoringService, logger utils.Logger) *ScoringHandler {
	return &ScoringHandler{
		BaseHandler:    NewBaseHandler(logger),
		scoringService: scoringService,
	}
}

type submitAnswerRequest struct {
	Answer interface{} `json:"answer"`
}

type submitAllRequest struct {
	Answers map[uint]interface{} `json:"answers" binding:"required"`
}

type verifyAnswerRequest struct {
	IsCorrect bool `json:"is_correct"`
}

// SubmitAnswer handles POST /api/v1/tests/:id/questions/:question_id/answer.
// The answer is submitted on behalf of the acting user.
func (h *ScoringHandler) SubmitAnswer(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}
	userID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	answer, err := h.scoringService.SubmitAnswer(c.Request.Context(), userID, testID, questionID, req.Answer)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "answer submitted", answer)
}

// SubmitAllAnswers handles POST /api/v1/tests/:id/answers
func (h *ScoringHandler) SubmitAllAnswers(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req submitAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	report, err := h.scoringService.SubmitAllAnswers(c.Request.Context(), userID, testID, req.Answers)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "answers submitted", report)
}

// GetResult handles GET /api/v1/tests/:id/results/:user_id
func (h *ScoringHandler) GetResult(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := ParseUintParam(c, "user_id")
	if !ok {
		return
	}

	report, err := h.scoringService.GetResult(c.Request.Context(), userID, testID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetOwnResult handles GET /api/v1/tests/:id/result for the acting user
func (h *ScoringHandler) GetOwnResult(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := ActingUserID(c)
	if !ok {
		return
	}

	report, err := h.scoringService.GetResult(c.Request.Context(), userID, testID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetQuestionAnswers handles GET /api/v1/questions/:id/answers. An optional
// user_id query narrows to one user; non-admins only ever see their own.
func (h *ScoringHandler) GetQuestionAnswers(c *gin.Context) {
	questionID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var filterUserID *uint
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.RespondWithError(c, http.StatusBadRequest, "invalid user_id", err)
			return
		}
		id := uint(parsed)
		filterUserID = &id
	}

	answers, err := h.scoringService.ListQuestionAnswers(c.Request.Context(), questionID, filterUserID, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: answers, Total: int64(len(answers))})
}

// RecomputeScore handles POST /api/v1/tests/:id/results/:user_id/recompute
func (h *ScoringHandler) RecomputeScore(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := ParseUintParam(c, "user_id")
	if !ok {
		return
	}

	result, err := h.scoringService.ComputeScore(c.Request.Context(), userID, testID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "score recomputed", result)
}

// VerifyTextAnswer handles POST /api/v1/tests/:id/questions/:question_id/verify/:user_id
func (h *ScoringHandler) VerifyTextAnswer(c *gin.Context) {
	testID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}
	userID, ok := ParseUintParam(c, "user_id")
	if !ok {
		return
	}
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req verifyAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	answer, err := h.scoringService.VerifyTextAnswer(c.Request.Context(), userID, testID, questionID, req.IsCorrect, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "answer verified", answer)
}
