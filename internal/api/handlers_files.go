// handlers_files.go - Image intake, preview and removal handlers
package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/storage"
	"github.com/prospect-scanner/backend/internal/workspace"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	ws  Workspace
	log *zap.Logger
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(ws Workspace, log *zap.Logger) FileHandler {
	return &FileHandlerImpl{ws: ws, log: log}
}

type uploadResponse struct {
	Accepted  []models.UploadedFile    `json:"accepted"`
	Rejected  []string                 `json:"rejected,omitempty"`
	Workspace models.WorkspaceSnapshot `json:"workspace"`
}

// HandleUploadFiles accepts a multipart batch under the "files" field
func (h *FileHandlerImpl) HandleUploadFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}

	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		return NewValidationError("files")
	}

	candidates := make([]workspace.Candidate, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}
		opened = append(opened, src)
		candidates = append(candidates, workspace.Candidate{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Reader:      src,
		})
	}

	res, err := h.ws.Intake(c.Request().Context(), candidates)
	if err != nil {
		if errors.Is(err, workspace.ErrTooManyFiles) {
			return NewIntakeLimitError(workspace.TooManyFilesMessage(h.ws.MaxFiles()))
		}
		if errors.Is(err, workspace.ErrProcessing) {
			return NewConflictError("cannot add files while processing")
		}
		h.log.Error("api.upload.failed", zap.Error(err))
		return NewInternalError("failed to store files", err)
	}

	accepted := res.Accepted
	if accepted == nil {
		accepted = []models.UploadedFile{}
	}
	return c.JSON(http.StatusCreated, uploadResponse{
		Accepted:  accepted,
		Rejected:  res.Rejected,
		Workspace: h.ws.Snapshot(),
	})
}

// HandleListFiles returns the workspace snapshot
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ws.Snapshot())
}

// HandlePreview streams the stored image for a file
func (h *FileHandlerImpl) HandlePreview(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	file, ok := h.ws.File(id)
	if !ok {
		return NewNotFoundError("file", id)
	}

	rc, err := h.ws.Store().Open(c.Request().Context(), file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewNotFoundError("file", id)
		}
		return NewInternalError("failed to open image", err)
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "private, max-age=300")
	return c.Stream(http.StatusOK, file.ContentType, rc)
}

// HandleDeleteFile removes a file and releases its preview
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.ws.Remove(c.Request().Context(), id); err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return NewNotFoundError("file", id)
		}
		return NewInternalError("failed to remove file", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleReset clears the workspace unless a run is active
func (h *FileHandlerImpl) HandleReset(c echo.Context) error {
	if err := h.ws.Reset(c.Request().Context()); err != nil {
		if errors.Is(err, workspace.ErrProcessing) {
			return NewConflictError("cannot reset while processing")
		}
		return NewInternalError("failed to reset workspace", err)
	}
	return c.JSON(http.StatusOK, h.ws.Snapshot())
}
