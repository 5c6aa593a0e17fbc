package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/testing-system/testing-service/internal/errors"
	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse wraps paginated collections
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging and response functionality
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogError logs error details with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{Message: message}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil {
		h.LogError(c, err, message, "status_code", statusCode)
	}
	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Message: message, Data: data})
}

// HandleServiceError maps service errors onto HTTP status codes
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	switch {
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, err.Error(), err)
	case services.IsPermissionDenied(err):
		h.RespondWithError(c, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, services.ErrUnrelatedQuestion):
		h.RespondWithError(c, http.StatusUnprocessableEntity, err.Error(), err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "validation failed", err, validationDetails(err))
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "internal server error", err)
	}
}

// validationDetails extracts the per-field breakdown when available
func validationDetails(err error) interface{} {
	var verrs apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	var single *apperrors.ValidationError
	if errors.As(err, &single) {
		return apperrors.ValidationErrors{*single}
	}
	return err.Error()
}

// ===== REQUEST HELPERS =====

// ParseUintParam parses a numeric path parameter
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "invalid " + name + " parameter",
		})
		return 0, false
	}
	return uint(value), true
}

// ActingUserID resolves the acting user from the context (set by auth
// middleware) or the X-User-ID header the gateway forwards.
func ActingUserID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	header := c.GetHeader("X-User-ID")
	if header == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing acting user"})
		return 0, false
	}
	id, err := strconv.ParseUint(header, 10, 32)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "invalid acting user"})
		return 0, false
	}
	return uint(id), true
}

// ParsePagination reads limit/offset query parameters with sane defaults
func ParsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
