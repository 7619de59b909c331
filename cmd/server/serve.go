package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prospect-scanner/backend/internal/api"
	"github.com/prospect-scanner/backend/internal/config"
	"github.com/prospect-scanner/backend/internal/extract"
	"github.com/prospect-scanner/backend/internal/processor"
	"github.com/prospect-scanner/backend/internal/web"
	"github.com/prospect-scanner/backend/internal/workspace"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log := a.cfg, a.log

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	api.ExposeErrorDetails = cfg.Advanced.ExposeErrorDetails

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	extractor, closeExtractor, err := extract.New(ctx, extractorSettings(cfg), log.Named("extract"))
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	defer closeExtractor()

	ws := workspace.NewManager(store,
		workspace.WithMaxFiles(cfg.Intake.MaxFiles),
		workspace.WithLogger(log.Named("workspace")),
	)
	proc := processor.New(ws, extractor, log.Named("processor"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		Logger:         log.Named("http"),
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		RequestTimeout: config.Seconds(cfg.Server.RequestTimeoutSeconds),
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Workspace:      ws,
		Runner:         proc,
		Logger:         log.Named("api"),
		BaseCtx:        ctx,
		Version:        Version,
		Provider:       cfg.Extraction.Provider,
		ExportFilename: cfg.Export.Filename,
	}))
	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("server.static_routes_failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      e,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeoutSeconds),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeoutSeconds),
	}

	printBanner(a.configPath, cfg)
	log.Info("server.start",
		zap.String("addr", srv.Addr),
		zap.String("provider", cfg.Extraction.Provider),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("max_files", cfg.Intake.MaxFiles),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server.shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.Server.ShutdownGraceSeconds))
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// The run context is ctx, so an active run winds down with it.
		proc.Wait()
		if rerr := ws.Reset(shutdownCtx); rerr != nil {
			log.Warn("workspace.release_failed", zap.Error(rerr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server.stopped")
	return nil
}

func printBanner(configPath string, cfg *config.AppConfig) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Prospect Scanner Server                         ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Provider:   %-45s║\n", cfg.Extraction.Provider)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.ServerAddr())
	fmt.Printf("║  Storage:   %-46s║\n", cfg.Storage.Backend)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
