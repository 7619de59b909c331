// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/processor"
	"github.com/prospect-scanner/backend/internal/storage"
	"github.com/prospect-scanner/backend/internal/workspace"
)

// FileHandler handles image intake and removal
type FileHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandleListFiles(c echo.Context) error
	HandlePreview(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleReset(c echo.Context) error
}

// ProcessHandler handles extraction runs
type ProcessHandler interface {
	HandleStartProcess(c echo.Context) error
	HandleGetWorkspace(c echo.Context) error
}

// ProspectHandler handles the aggregated table and its exports
type ProspectHandler interface {
	HandleListProspects(c echo.Context) error
	HandleListProspectsMsgpack(c echo.Context) error
	HandleExportCSV(c echo.Context) error
	HandleExportXLSX(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ProgressHandler streams workspace changes
type ProgressHandler interface {
	HandleProgress(c echo.Context) error
}

// Workspace is the file set the handlers operate on.
// This allows mocking in tests
type Workspace interface {
	Snapshot() models.WorkspaceSnapshot
	File(id string) (models.UploadedFile, bool)
	Intake(ctx context.Context, candidates []workspace.Candidate) (*workspace.IntakeResult, error)
	Remove(ctx context.Context, id string) error
	Reset(ctx context.Context) error
	IsProcessing() bool
	MaxFiles() int
	Store() storage.Store
	Subscribe() (<-chan models.WorkspaceSnapshot, func())
}

// Runner starts extraction runs
type Runner interface {
	Run(ctx context.Context) (*processor.Result, error)
	Start(ctx context.Context) (bool, error)
}

var (
	_ Workspace = (*workspace.Manager)(nil)
	_ Runner    = (*processor.Processor)(nil)
)
