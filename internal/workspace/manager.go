package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/prospect-scanner/backend/internal/storage"
)

// IntakeResult reports what happened to an intake batch.
type IntakeResult struct {
	Accepted []models.UploadedFile `json:"accepted"`
	Rejected []string              `json:"rejected,omitempty"`
}

// Manager guards the workspace state and executes transition side effects.
type Manager struct {
	mu            sync.RWMutex
	state         State
	store         storage.Store
	log           *zap.Logger
	maxFiles      int
	previewPrefix string

	subMu sync.Mutex
	subs  map[int]chan models.WorkspaceSnapshot
	next  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxFiles overrides the file cap.
func WithMaxFiles(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxFiles = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithPreviewPrefix sets the URL prefix of preview handles.
func WithPreviewPrefix(prefix string) Option {
	return func(m *Manager) {
		m.previewPrefix = prefix
	}
}

// NewManager creates an empty workspace backed by store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		log:           zap.NewNop(),
		maxFiles:      DefaultMaxFiles,
		previewPrefix: "/api/files/",
		subs:          make(map[int]chan models.WorkspaceSnapshot),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MaxFiles returns the configured cap.
func (m *Manager) MaxFiles() int {
	return m.maxFiles
}

// Store returns the blob store behind the workspace.
func (m *Manager) Store() storage.Store {
	return m.store
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() models.WorkspaceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot(m.state)
}

// File returns one file by id.
func (m *Manager) File(id string) (models.UploadedFile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := indexOf(m.state.Files, id); i >= 0 {
		return m.state.Files[i], true
	}
	return models.UploadedFile{}, false
}

// IsProcessing reports whether a run is active.
func (m *Manager) IsProcessing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Processing
}

// update applies fn under the lock and publishes the resulting snapshot.
// Publishing under the lock keeps subscribers in transition order.
func (m *Manager) update(fn func(State) State) models.WorkspaceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = fn(m.state)
	snap := Snapshot(m.state)
	m.publish(snap)
	return snap
}

// Intake filters candidates to images and adds them as pending files. A batch
// that would exceed the cap is rejected whole with ErrTooManyFiles, and any
// batch is refused with ErrProcessing while a run is active. A batch with no
// images leaves the workspace untouched.
func (m *Manager) Intake(ctx context.Context, candidates []Candidate) (*IntakeResult, error) {
	m.mu.RLock()
	processing := m.state.Processing
	m.mu.RUnlock()
	if processing {
		return &IntakeResult{}, ErrProcessing
	}

	images, rejected := classify(candidates)
	result := &IntakeResult{Rejected: rejected}

	for _, name := range rejected {
		m.log.Info("workspace.intake.skipped_non_image", zap.String("name", name))
	}
	if len(images) == 0 {
		return result, nil
	}

	// Reject early so nothing is written for a batch that cannot fit.
	m.mu.RLock()
	overCap := len(m.state.Files)+len(images) > m.maxFiles
	m.mu.RUnlock()
	if overCap {
		return result, m.rejectBatch(len(images))
	}

	incoming := make([]models.UploadedFile, 0, len(images))
	for _, img := range images {
		info, err := m.store.Save(ctx, img.name, img.contentType, img.body)
		if err != nil {
			m.releaseAll(ctx, incoming)
			return result, fmt.Errorf("storing %s: %w", img.name, err)
		}
		id := uuid.New().String()
		incoming = append(incoming, models.UploadedFile{
			ID:          id,
			Name:        img.name,
			ContentType: info.ContentType,
			Size:        info.Size,
			StorageKey:  info.Key,
			PreviewURL:  m.previewPrefix + id + "/preview",
			CreatedAt:   time.Now(),
		})
	}

	var intakeErr error
	m.update(func(s State) State {
		next, err := Intake(s, incoming, m.maxFiles)
		intakeErr = err
		return next
	})
	if intakeErr != nil {
		// A run started or another batch won the race for the remaining slots.
		m.releaseAll(ctx, incoming)
		m.log.Warn("workspace.intake.rejected", zap.Int("batch", len(incoming)), zap.Int("max", m.maxFiles))
		return result, intakeErr
	}

	m.log.Info("workspace.intake.accepted", zap.Int("count", len(incoming)))
	result.Accepted = incoming
	return result, nil
}

func (m *Manager) rejectBatch(size int) error {
	m.update(func(s State) State {
		s.Error = TooManyFilesMessage(m.maxFiles)
		return s
	})
	m.log.Warn("workspace.intake.rejected", zap.Int("batch", size), zap.Int("max", m.maxFiles))
	return ErrTooManyFiles
}

// Remove deletes a file in any status and releases its preview.
func (m *Manager) Remove(ctx context.Context, id string) error {
	var cmds []Command
	var err error
	m.update(func(s State) State {
		next, c, e := Remove(s, id)
		cmds, err = c, e
		return next
	})
	if err != nil {
		return err
	}
	m.execute(ctx, cmds)
	m.log.Info("workspace.file.removed", zap.String("file_id", id))
	return nil
}

// Reset clears the workspace. It fails with ErrProcessing during a run.
func (m *Manager) Reset(ctx context.Context) error {
	var cmds []Command
	var err error
	m.update(func(s State) State {
		next, c, e := Reset(s)
		cmds, err = c, e
		return next
	})
	if err != nil {
		return err
	}
	m.execute(ctx, cmds)
	m.log.Info("workspace.reset", zap.Int("released", len(cmds)))
	return nil
}

// BeginRun captures the runnable files and sets the processing flag. An empty
// result means there was nothing to do and the flag was left untouched.
func (m *Manager) BeginRun() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ids, err := BeginRun(m.state)
	if err != nil {
		return nil, err
	}
	m.state = next
	if len(ids) > 0 {
		m.publish(Snapshot(m.state))
	}
	return ids, nil
}

// MarkProcessing moves a file to processing. It returns false if the file was
// removed or is no longer runnable.
func (m *Manager) MarkProcessing(id string) (models.UploadedFile, bool) {
	var file models.UploadedFile
	var ok bool
	m.update(func(s State) State {
		next, f, o := MarkProcessing(s, id)
		file, ok = f, o
		return next
	})
	return file, ok
}

// Complete stores the records of a processed file.
func (m *Manager) Complete(id string, records []models.Prospect) {
	m.update(func(s State) State { return Complete(s, id, records) })
}

// Fail marks a processed file as errored.
func (m *Manager) Fail(id string, reason string) {
	m.update(func(s State) State { return Fail(s, id, reason) })
}

// EndRun clears the processing flag.
func (m *Manager) EndRun() {
	m.update(EndRun)
}

func (m *Manager) execute(ctx context.Context, cmds []Command) {
	for _, c := range cmds {
		switch c.Kind {
		case CommandReleasePreview:
			if err := m.store.Delete(ctx, c.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
				m.log.Warn("workspace.preview.release_failed",
					zap.String("file_id", c.FileID),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *Manager) releaseAll(ctx context.Context, files []models.UploadedFile) {
	cmds := make([]Command, 0, len(files))
	for _, f := range files {
		cmds = append(cmds, releaseCommand(f))
	}
	m.execute(ctx, cmds)
}

// Subscribe returns a channel that receives the latest snapshot after every
// change, and a function that ends the subscription. Slow readers only see
// the most recent snapshot.
func (m *Manager) Subscribe() (<-chan models.WorkspaceSnapshot, func()) {
	ch := make(chan models.WorkspaceSnapshot, 1)

	m.subMu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Manager) publish(snap models.WorkspaceSnapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale snapshot with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
