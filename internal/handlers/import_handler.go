package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/testing-system/testing-service/internal/models"
	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

// ImportHandler serves batch import endpoints.
type ImportHandler struct {
	BaseHandler
	importService services.ImportService
}

func NewImportHandler(importService services.ImportService, logger utils.Logger) *ImportHandler {
	return &ImportHandler{
		BaseHandler:   NewBaseHandler(logger),
		importService: importService,
	}
}

type importBatchRequest struct {
	Rows       []models.ImportRow `json:"rows" binding:"required"`
	UpdateMode bool               `json:"update_mode"`
}

// ImportBatch handles POST /api/v1/import with a JSON body
func (h *ImportHandler) ImportBatch(c *gin.Context) {
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	var req importBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	stats, err := h.importService.ImportBatch(c.Request.Context(), req.Rows, req.UpdateMode, actorID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "import completed", stats)
}

// ImportFile handles POST /api/v1/import/file with a multipart upload.
// The file extension selects the parser: .csv or .xlsx.
func (h *ImportHandler) ImportFile(c *gin.Context) {
	actorID, ok := ActingUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "missing file upload", err)
		return
	}
	updateMode := c.DefaultPostForm("update_mode", "false") == "true"

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "failed to open upload", err)
		return
	}
	defer file.Close()

	var stats *models.ImportStats
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		stats, err = h.importService.ImportCSV(c.Request.Context(), file, updateMode, actorID)
	case ".xlsx":
		stats, err = h.importService.ImportExcel(c.Request.Context(), file, updateMode, actorID)
	default:
		h.RespondWithError(c, http.StatusBadRequest, "unsupported file type, expected .csv or .xlsx", nil)
		return
	}
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "import completed", stats)
}
