// routes.go - Route registration helpers
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Workspace Workspace
	Runner    Runner
	Logger    *zap.Logger
	BaseCtx   context.Context
	Version   string
	Provider  string

	// ExportFilename is the default download name for exports.
	ExportFilename string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Files     FileHandler
	Process   ProcessHandler
	Prospects ProspectHandler
	Progress  ProgressHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Provider, deps.Workspace),
		Files:     NewFileHandler(deps.Workspace, log.Named("files")),
		Process:   NewProcessHandler(deps.Workspace, deps.Runner, deps.BaseCtx, log.Named("process")),
		Prospects: NewProspectHandler(deps.Workspace, deps.ExportFilename, log.Named("prospects")),
		Progress:  NewWebSocketHandler(deps.Workspace, log.Named("ws")),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// WebSocket progress feed
	api.GET("/ws/progress", handlers.Progress.HandleProgress)

	// Workspace and runs
	api.GET("/workspace", handlers.Process.HandleGetWorkspace)
	api.POST("/process", handlers.Process.HandleStartProcess)
	api.POST("/reset", handlers.Files.HandleReset)

	// File intake
	files := api.Group("/files")
	files.GET("", handlers.Files.HandleListFiles)
	files.POST("", handlers.Files.HandleUploadFiles)
	files.GET("/:id/preview", handlers.Files.HandlePreview)
	files.DELETE("/:id", handlers.Files.HandleDeleteFile)

	// Aggregated table
	prospects := api.Group("/prospects")
	prospects.GET("", handlers.Prospects.HandleListProspects)
	prospects.GET("/msgpack", handlers.Prospects.HandleListProspectsMsgpack)
	prospects.GET("/export.csv", handlers.Prospects.HandleExportCSV)
	prospects.GET("/export.xlsx", handlers.Prospects.HandleExportXLSX)
}

// MiddlewareConfig controls the common middleware stack
type MiddlewareConfig struct {
	Logger         *zap.Logger
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   []string
	RequestTimeout time.Duration
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/api/ws/")
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("http.request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("http.request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("http.panic", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.RequestTimeout,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				// Uploads, blocking runs and the feed can take longer.
				return strings.HasPrefix(path, "/api/ws/") ||
					strings.HasPrefix(path, "/api/files") ||
					(path == "/api/process" && c.QueryParam("wait") == "true")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if !cfg.EnableCORS {
		return
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
}
