package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-scheduler/internal/dto"
	"github.com/noah-isme/office-scheduler/internal/middleware"
	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/internal/service"
	appErrors "github.com/noah-isme/office-scheduler/pkg/errors"
	"github.com/noah-isme/office-scheduler/pkg/response"
)

type ledgerService interface {
	ForEvent(ctx context.Context, eventID int64) ([]models.ConflictRecord, error)
	Refresh(ctx context.Context, eventID int64) ([]models.ConflictRecord, error)
	Count(ctx context.Context) (int, bool, error)
	List(ctx context.Context) ([]models.ConflictReportRow, bool, error)
	Export(ctx context.Context, format string) (*service.LedgerExport, error)
}

// ConflictHandler serves the conflict ledger.
type ConflictHandler struct {
	service ledgerService
}

// NewConflictHandler constructs handler.
func NewConflictHandler(svc ledgerService) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// ForEvent godoc
// @Summary Recorded conflicts for an event
// @Tags Conflicts
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/conflicts [get]
func (h *ConflictHandler) ForEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	records, err := h.service.ForEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Refresh godoc
// @Summary Rebuild the ledger rows of an event
// @Tags Conflicts
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/conflicts/refresh [post]
func (h *ConflictHandler) Refresh(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	records, err := h.service.Refresh(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditDetails(c, map[string]interface{}{"conflicts": len(records)})
	response.JSON(c, http.StatusOK, records, nil)
}

// Count godoc
// @Summary Number of recorded conflicts
// @Tags Conflicts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conflicts/count [get]
func (h *ConflictHandler) Count(c *gin.Context) {
	count, hit, err := h.service.Count(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, dto.ConflictCount{Count: count}, nil, middleware.ExtractMeta(c))
}

// List godoc
// @Summary Conflict report
// @Tags Conflicts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	rows, hit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, rows, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the conflict report
// @Tags Conflicts
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /conflicts/export [get]
func (h *ConflictHandler) Export(c *gin.Context) {
	var query dto.ConflictExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditDetails(c, map[string]interface{}{"file_name": file.FileName, "bytes": strconv.Itoa(len(file.Data))})
	response.Attachment(c, file.ContentType, file.FileName, file.Data)
}
