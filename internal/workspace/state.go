// Package workspace holds the set of uploaded images and the transitions
// that move them through the extraction lifecycle.
//
// Transitions are pure functions over State. They return the next state and
// any side effects (preview releases) as commands for the caller to execute.
package workspace

import (
	"errors"
	"fmt"

	"github.com/prospect-scanner/backend/internal/models"
)

// DefaultMaxFiles caps the number of files held at once.
const DefaultMaxFiles = 20

var (
	// ErrTooManyFiles rejects an intake batch that would exceed the cap.
	ErrTooManyFiles = errors.New("too many files")
	// ErrProcessing rejects operations that are blocked during a run.
	ErrProcessing = errors.New("processing in progress")
	// ErrNotFound is returned for an unknown file id.
	ErrNotFound = errors.New("file not found")
)

// TooManyFilesMessage is the user-facing intake rejection text.
func TooManyFilesMessage(max int) string {
	return fmt.Sprintf("You can only upload up to %d images at a time.", max)
}

// State is the whole workspace.
type State struct {
	Files      []models.UploadedFile
	Processing bool
	Error      string
}

// CommandKind identifies a side effect requested by a transition.
type CommandKind string

const (
	// CommandReleasePreview deletes the stored blob behind a preview handle.
	CommandReleasePreview CommandKind = "release_preview"
)

// Command is a side effect to run after a transition is applied.
type Command struct {
	Kind       CommandKind
	FileID     string
	StorageKey string
}

func releaseCommand(f models.UploadedFile) Command {
	return Command{Kind: CommandReleasePreview, FileID: f.ID, StorageKey: f.StorageKey}
}

func cloneFiles(files []models.UploadedFile) []models.UploadedFile {
	out := make([]models.UploadedFile, len(files))
	copy(out, files)
	return out
}

func indexOf(files []models.UploadedFile, id string) int {
	for i := range files {
		if files[i].ID == id {
			return i
		}
	}
	return -1
}

// Intake appends incoming files as pending. If the result would hold more
// than max files the whole batch is rejected, the error message is set and
// no file is added. Intake is refused while a run is active.
func Intake(s State, incoming []models.UploadedFile, max int) (State, error) {
	if s.Processing {
		return s, ErrProcessing
	}
	if len(s.Files)+len(incoming) > max {
		s.Error = TooManyFilesMessage(max)
		return s, ErrTooManyFiles
	}

	files := cloneFiles(s.Files)
	for _, f := range incoming {
		f.Status = models.FileStatusPending
		f.ExtractedData = nil
		f.Error = ""
		files = append(files, f)
	}
	s.Files = files
	s.Error = ""
	return s, nil
}

// Remove drops a file regardless of its status and releases its preview.
func Remove(s State, id string) (State, []Command, error) {
	i := indexOf(s.Files, id)
	if i < 0 {
		return s, nil, ErrNotFound
	}

	removed := s.Files[i]
	files := make([]models.UploadedFile, 0, len(s.Files)-1)
	files = append(files, s.Files[:i]...)
	files = append(files, s.Files[i+1:]...)
	s.Files = files

	return s, []Command{releaseCommand(removed)}, nil
}

// Reset clears every file and the error. It is refused while a run is active.
func Reset(s State) (State, []Command, error) {
	if s.Processing {
		return s, nil, ErrProcessing
	}

	cmds := make([]Command, 0, len(s.Files))
	for _, f := range s.Files {
		cmds = append(cmds, releaseCommand(f))
	}
	return State{}, cmds, nil
}

// BeginRun captures the ids of pending and error files in list order. With
// nothing to do the state is returned unchanged and the processing flag is
// not set.
func BeginRun(s State) (State, []string, error) {
	if s.Processing {
		return s, nil, ErrProcessing
	}

	var ids []string
	for _, f := range s.Files {
		if f.Status.Runnable() {
			ids = append(ids, f.ID)
		}
	}
	if len(ids) == 0 {
		return s, nil, nil
	}

	s.Processing = true
	s.Error = ""
	return s, ids, nil
}

// MarkProcessing moves a pending or error file to processing. It reports
// false when the file is gone or no longer runnable.
func MarkProcessing(s State, id string) (State, models.UploadedFile, bool) {
	i := indexOf(s.Files, id)
	if i < 0 || !s.Files[i].Status.Runnable() {
		return s, models.UploadedFile{}, false
	}

	files := cloneFiles(s.Files)
	files[i].Status = models.FileStatusProcessing
	files[i].ExtractedData = nil
	files[i].Error = ""
	s.Files = files
	return s, files[i], true
}

// Complete attaches records to a processing file. Unknown ids are ignored.
func Complete(s State, id string, records []models.Prospect) State {
	i := indexOf(s.Files, id)
	if i < 0 || s.Files[i].Status != models.FileStatusProcessing {
		return s
	}
	if records == nil {
		records = make([]models.Prospect, 0)
	}

	files := cloneFiles(s.Files)
	files[i].Status = models.FileStatusCompleted
	files[i].ExtractedData = records
	files[i].Error = ""
	s.Files = files
	return s
}

// Fail marks a processing file as errored. Unknown ids are ignored.
func Fail(s State, id string, reason string) State {
	i := indexOf(s.Files, id)
	if i < 0 || s.Files[i].Status != models.FileStatusProcessing {
		return s
	}

	files := cloneFiles(s.Files)
	files[i].Status = models.FileStatusError
	files[i].ExtractedData = nil
	files[i].Error = reason
	s.Files = files
	return s
}

// EndRun clears the processing flag.
func EndRun(s State) State {
	s.Processing = false
	return s
}

// Counts tallies files per status.
func Counts(files []models.UploadedFile) models.StatusCounts {
	c := models.StatusCounts{Total: len(files)}
	for _, f := range files {
		switch f.Status {
		case models.FileStatusPending:
			c.Pending++
		case models.FileStatusProcessing:
			c.Processing++
		case models.FileStatusCompleted:
			c.Completed++
		case models.FileStatusError:
			c.Error++
		}
	}
	return c
}

// Summary renders the one-line status shown above the file grid.
func Summary(s State) string {
	if len(s.Files) == 0 {
		return ""
	}
	c := Counts(s.Files)

	var line string
	switch {
	case s.Processing:
		line = fmt.Sprintf("Processing... (%d/%d)", c.Completed, c.Total)
	case c.Pending > 0:
		line = fmt.Sprintf("%d files ready to process", c.Pending)
	default:
		line = "All files processed"
	}
	if c.Error > 0 {
		line += fmt.Sprintf(" (%d failed)", c.Error)
	}
	return line
}

// Snapshot copies the state for readers outside the lock.
func Snapshot(s State) models.WorkspaceSnapshot {
	return models.WorkspaceSnapshot{
		Files:      cloneFiles(s.Files),
		Processing: s.Processing,
		Error:      s.Error,
		Counts:     Counts(s.Files),
		Summary:    Summary(s),
	}
}
