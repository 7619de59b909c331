// Package processor runs the sequential extraction pass over the workspace.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/extract"
	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/storage"
	"github.com/prospect-scanner/backend/internal/workspace"
)

// ErrAlreadyProcessing is returned when a run is requested during a run.
var ErrAlreadyProcessing = errors.New("processing already in progress")

// Result summarises one run.
type Result struct {
	Attempted  int   `json:"attempted"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"durationMs"`
}

// ItemEvent reports the outcome of one file, for progress displays.
type ItemEvent struct {
	File    models.UploadedFile
	Index   int
	Total   int
	Records int
	Err     error
}

// Processor walks pending and errored files one at a time.
type Processor struct {
	ws        *workspace.Manager
	extractor extract.Extractor
	log       *zap.Logger

	mu      sync.Mutex
	onItem  func(ItemEvent)
	running sync.WaitGroup
}

// New creates a processor over ws using extractor.
func New(ws *workspace.Manager, extractor extract.Extractor, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{ws: ws, extractor: extractor, log: log}
}

// OnItem registers a callback invoked after each file finishes.
func (p *Processor) OnItem(fn func(ItemEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onItem = fn
}

// Run processes every pending or errored file in list order and returns when
// the batch is done. With nothing to process it returns immediately without
// touching the processing flag. Per-file failures never fail the run.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	ids, err := p.ws.BeginRun()
	if err != nil {
		if errors.Is(err, workspace.ErrProcessing) {
			return nil, ErrAlreadyProcessing
		}
		return nil, err
	}
	if len(ids) == 0 {
		return &Result{}, nil
	}

	p.running.Add(1)
	defer p.running.Done()
	return p.run(ctx, ids), nil
}

// Start begins a run in the background. The returned bool is false when there
// was nothing to process.
func (p *Processor) Start(ctx context.Context) (bool, error) {
	ids, err := p.ws.BeginRun()
	if err != nil {
		if errors.Is(err, workspace.ErrProcessing) {
			return false, ErrAlreadyProcessing
		}
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}

	p.running.Add(1)
	go func() {
		defer p.running.Done()
		p.run(ctx, ids)
	}()
	return true, nil
}

// Wait blocks until background runs have finished.
func (p *Processor) Wait() {
	p.running.Wait()
}

func (p *Processor) run(ctx context.Context, ids []string) (res *Result) {
	start := time.Now()
	res = &Result{}
	var current string

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("processor.run.panic", zap.String("file_id", current), zap.Any("panic", r))
			if current != "" {
				p.ws.Fail(current, fmt.Sprintf("extraction panicked: %v", r))
				res.Failed++
			}
		}
		p.ws.EndRun()
		res.DurationMs = time.Since(start).Milliseconds()
		p.log.Info("processor.run.done",
			zap.Int("attempted", res.Attempted),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
			zap.Int64("elapsed_ms", res.DurationMs),
		)
	}()

	p.log.Info("processor.run.start", zap.Int("files", len(ids)))

	for i, id := range ids {
		file, ok := p.ws.MarkProcessing(id)
		if !ok {
			// Removed (or reset) since the run began.
			res.Skipped++
			continue
		}
		res.Attempted++
		current = file.ID

		records, err := p.processOne(ctx, file)
		if err != nil {
			res.Failed++
			p.log.Error("processor.item.failed",
				zap.String("file_id", file.ID),
				zap.String("name", file.Name),
				zap.Error(err),
			)
			p.ws.Fail(file.ID, err.Error())
		} else {
			res.Completed++
			p.log.Info("processor.item.completed",
				zap.String("file_id", file.ID),
				zap.String("name", file.Name),
				zap.Int("records", len(records)),
			)
			p.ws.Complete(file.ID, records)
		}

		current = ""
		p.notify(ItemEvent{File: file, Index: i + 1, Total: len(ids), Records: len(records), Err: err})
	}
	return res
}

func (p *Processor) processOne(ctx context.Context, file models.UploadedFile) ([]models.Prospect, error) {
	data, err := storage.ReadAll(ctx, p.ws.Store(), file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}

	records, err := p.extractor.Extract(ctx, extract.Image{
		Name:     file.Name,
		MIMEType: file.ContentType,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting: %w", err)
	}
	if records == nil {
		records = make([]models.Prospect, 0)
	}
	return records, nil
}

func (p *Processor) notify(ev ItemEvent) {
	p.mu.Lock()
	fn := p.onItem
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
