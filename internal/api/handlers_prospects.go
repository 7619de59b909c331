// handlers_prospects.go - Aggregated prospect table and export handlers
package api

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/aggregate"
	"github.com/prospect-scanner/backend/internal/export"
	"github.com/prospect-scanner/backend/internal/models"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ProspectHandlerImpl implements the ProspectHandler interface
type ProspectHandlerImpl struct {
	ws         Workspace
	exportName string
	log        *zap.Logger
}

// NewProspectHandler creates a new prospect handler instance. exportName is
// the download name used when a request does not pass ?filename=.
func NewProspectHandler(ws Workspace, exportName string, log *zap.Logger) ProspectHandler {
	return &ProspectHandlerImpl{ws: ws, exportName: exportName, log: log}
}

type prospectsResponse struct {
	Prospects []models.Prospect `json:"prospects" msgpack:"prospects"`
	Total     int               `json:"total" msgpack:"total"`
	Matched   int               `json:"matched" msgpack:"matched"`
	Query     string            `json:"query,omitempty" msgpack:"query,omitempty"`
}

func (h *ProspectHandlerImpl) table(query string) prospectsResponse {
	all := aggregate.Flatten(h.ws.Snapshot().Files)
	matched := aggregate.Filter(all, query)
	return prospectsResponse{
		Prospects: matched,
		Total:     len(all),
		Matched:   len(matched),
		Query:     query,
	}
}

// HandleListProspects returns the aggregated records, filtered by ?q=
func (h *ProspectHandlerImpl) HandleListProspects(c echo.Context) error {
	return c.JSON(http.StatusOK, h.table(c.QueryParam("q")))
}

// HandleListProspectsMsgpack returns the same table in MessagePack format
func (h *ProspectHandlerImpl) HandleListProspectsMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.table(c.QueryParam("q")))
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleExportCSV downloads every extracted record as CSV. The search filter
// does not apply to exports.
func (h *ProspectHandlerImpl) HandleExportCSV(c echo.Context) error {
	records := aggregate.Flatten(h.ws.Snapshot().Files)
	if len(records) == 0 {
		return NewConflictError("no extracted records to export")
	}

	name := export.Filename(c.QueryParam("filename"), h.exportName, ".csv")
	setAttachment(c, name)
	h.log.Info("api.export.csv", zap.Int("rows", len(records)), zap.String("filename", name))
	return c.Blob(http.StatusOK, "text/csv;charset=utf-8", []byte(export.ToCSV(records)))
}

// HandleExportXLSX downloads every extracted record as a workbook
func (h *ProspectHandlerImpl) HandleExportXLSX(c echo.Context) error {
	records := aggregate.Flatten(h.ws.Snapshot().Files)
	if len(records) == 0 {
		return NewConflictError("no extracted records to export")
	}

	data, err := export.ToXLSX(records)
	if err != nil {
		return NewInternalError("failed to build workbook", err)
	}

	name := export.Filename(c.QueryParam("filename"), h.exportName, ".xlsx")
	setAttachment(c, name)
	h.log.Info("api.export.xlsx", zap.Int("rows", len(records)), zap.String("filename", name))
	return c.Blob(http.StatusOK, mimeXLSX, data)
}

func setAttachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}
