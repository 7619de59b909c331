package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prospect-scanner/backend/internal/aggregate"
	"github.com/prospect-scanner/backend/internal/export"
	"github.com/prospect-scanner/backend/internal/extract"
	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/processor"
	"github.com/prospect-scanner/backend/internal/storage"
	"github.com/prospect-scanner/backend/internal/workspace"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		out     string
		xlsxOut string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract <image>...",
		Short: "Extract prospects from images and write a CSV file",
		Long: `Runs the same intake and sequential extraction as the server over local image
files and writes every extracted record to a CSV file. Non-image files are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if out == "" {
				out = a.cfg.Export.Filename
			}
			return a.runExtract(ctx, args, out, xlsxOut)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "CSV output path (default from export.filename)")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write an XLSX workbook to this path")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall time limit")
	return cmd
}

func (a *app) runExtract(ctx context.Context, paths []string, out, xlsxOut string) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	// Keep structured logs out of the progress display.
	log := a.log.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))

	tmp, err := os.MkdirTemp("", "prospect-scanner-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	store, err := storage.NewLocalStore(tmp)
	if err != nil {
		return err
	}
	ws := workspace.NewManager(store,
		workspace.WithMaxFiles(cfg.Intake.MaxFiles),
		workspace.WithLogger(log.Named("workspace")),
	)

	res, err := intakePaths(ctx, ws, paths)
	if err != nil {
		return err
	}
	for _, name := range res.Rejected {
		printWarning("skipped %s: not an image", name)
	}
	if len(res.Accepted) == 0 {
		return errors.New("no images to process")
	}

	extractor, closeExtractor, err := extract.New(ctx, extractorSettings(cfg), log.Named("extract"))
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	defer closeExtractor()

	bar := newProgressBar(len(res.Accepted), "Extracting")
	proc := processor.New(ws, extractor, log.Named("processor"))
	proc.OnItem(func(ev processor.ItemEvent) {
		bar.Describe(ev.File.Name)
		_ = bar.Add(1)
	})

	result, err := proc.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	snap := ws.Snapshot()
	for _, f := range snap.Files {
		switch f.Status {
		case models.FileStatusCompleted:
			printSuccess("%s: %d records", f.Name, len(f.ExtractedData))
		case models.FileStatusError:
			printError("%s: %s", f.Name, f.Error)
		}
	}

	records := aggregate.Flatten(snap.Files)
	if err := os.WriteFile(out, []byte(export.ToCSV(records)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	printInfo("%d records from %d of %d images written to %s", len(records), result.Completed, result.Attempted, out)

	if xlsxOut != "" {
		data, err := export.ToXLSX(records)
		if err != nil {
			return err
		}
		if err := os.WriteFile(xlsxOut, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", xlsxOut, err)
		}
		printInfo("workbook written to %s", xlsxOut)
	}

	if result.Completed == 0 && result.Failed > 0 {
		return fmt.Errorf("all %d images failed", result.Failed)
	}
	return nil
}

// intakePaths opens each file and hands the batch to the workspace. Content
// types are sniffed from the data.
func intakePaths(ctx context.Context, ws *workspace.Manager, paths []string) (*workspace.IntakeResult, error) {
	candidates := make([]workspace.Candidate, 0, len(paths))
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		candidates = append(candidates, workspace.Candidate{
			Name:   filepath.Base(p),
			Reader: f,
		})
	}

	res, err := ws.Intake(ctx, candidates)
	if errors.Is(err, workspace.ErrTooManyFiles) {
		return nil, errors.New(workspace.TooManyFilesMessage(ws.MaxFiles()))
	}
	return res, err
}
