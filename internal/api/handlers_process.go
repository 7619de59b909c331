// handlers_process.go - Extraction run handlers
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/processor"
)

// ProcessHandlerImpl implements the ProcessHandler interface
type ProcessHandlerImpl struct {
	ws      Workspace
	runner  Runner
	baseCtx context.Context
	log     *zap.Logger
}

// NewProcessHandler creates a process handler. Background runs use baseCtx so
// they outlive the request that started them.
func NewProcessHandler(ws Workspace, runner Runner, baseCtx context.Context, log *zap.Logger) ProcessHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &ProcessHandlerImpl{ws: ws, runner: runner, baseCtx: baseCtx, log: log}
}

type processResponse struct {
	Status    string                   `json:"status"` // "processing", "completed", "idle"
	Result    *processor.Result        `json:"result,omitempty"`
	Workspace models.WorkspaceSnapshot `json:"workspace"`
}

// HandleStartProcess starts a run over pending and errored files.
// With ?wait=true the request blocks until the run finishes. A run is never
// cancelled mid-batch, so a client going away does not stop it.
func (h *ProcessHandlerImpl) HandleStartProcess(c echo.Context) error {
	if c.QueryParam("wait") == "true" {
		res, err := h.runner.Run(context.WithoutCancel(c.Request().Context()))
		if err != nil {
			return h.runError(err)
		}
		status := "completed"
		if res.Attempted == 0 && res.Skipped == 0 {
			status = "idle"
		}
		return c.JSON(http.StatusOK, processResponse{Status: status, Result: res, Workspace: h.ws.Snapshot()})
	}

	started, err := h.runner.Start(h.baseCtx)
	if err != nil {
		return h.runError(err)
	}
	if !started {
		return c.JSON(http.StatusOK, processResponse{Status: "idle", Workspace: h.ws.Snapshot()})
	}

	h.log.Info("api.process.started")
	return c.JSON(http.StatusAccepted, processResponse{Status: "processing", Workspace: h.ws.Snapshot()})
}

func (h *ProcessHandlerImpl) runError(err error) error {
	if errors.Is(err, processor.ErrAlreadyProcessing) {
		return NewConflictError("processing already in progress")
	}
	return NewInternalError("failed to start processing", err)
}

// HandleGetWorkspace returns the current snapshot
func (h *ProcessHandlerImpl) HandleGetWorkspace(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.Snapshot())
}
