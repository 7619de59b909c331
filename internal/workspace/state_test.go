package workspace

import (
	"fmt"
	"testing"

	"github.com/prospect-scanner/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFiles(n int) []models.UploadedFile {
	files := make([]models.UploadedFile, n)
	for i := range files {
		files[i] = models.UploadedFile{ID: fmt.Sprintf("f%d", i+1), StorageKey: fmt.Sprintf("k%d", i+1)}
	}
	return files
}

func statuses(s State) []models.FileStatus {
	out := make([]models.FileStatus, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Status
	}
	return out
}

func TestIntake(t *testing.T) {
	tests := []struct {
		name      string
		existing  int
		incoming  int
		wantErr   bool
		wantCount int
	}{
		{"empty batch", 0, 0, false, 0},
		{"fills to the cap", 0, 20, false, 20},
		{"21 onto empty is rejected", 0, 21, true, 0},
		{"16 onto 5 is rejected", 5, 16, true, 5},
		{"15 onto 5 fits", 5, 15, false, 20},
		{"one more at the cap", 20, 1, true, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Intake(State{}, newFiles(tt.existing), DefaultMaxFiles)
			require.NoError(t, err)

			next, err := Intake(s, newFiles(tt.incoming), DefaultMaxFiles)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTooManyFiles)
				assert.Equal(t, "You can only upload up to 20 images at a time.", next.Error)
			} else {
				assert.NoError(t, err)
				assert.Empty(t, next.Error)
			}
			assert.Len(t, next.Files, tt.wantCount)
			assert.Len(t, s.Files, tt.existing, "input state is not modified")
		})
	}
}

func TestIntake_FilesStartPending(t *testing.T) {
	incoming := newFiles(2)
	incoming[0].Status = models.FileStatusCompleted
	incoming[0].ExtractedData = []models.Prospect{{Name: "stale"}}

	s, err := Intake(State{}, incoming, DefaultMaxFiles)
	require.NoError(t, err)

	for _, f := range s.Files {
		assert.Equal(t, models.FileStatusPending, f.Status)
		assert.Nil(t, f.ExtractedData)
	}
}

func TestIntake_SuccessClearsError(t *testing.T) {
	s := State{Error: TooManyFilesMessage(DefaultMaxFiles)}

	next, err := Intake(s, newFiles(1), DefaultMaxFiles)
	require.NoError(t, err)
	assert.Empty(t, next.Error)
}

func TestRemove(t *testing.T) {
	s, _ := Intake(State{}, newFiles(3), DefaultMaxFiles)
	s, _, _ = MarkProcessing(s, "f1")
	s = Complete(s, "f1", []models.Prospect{{Name: "A"}})
	s, _, _ = MarkProcessing(s, "f3")
	s = Fail(s, "f3", "boom")

	next, cmds, err := Remove(s, "f2")
	require.NoError(t, err)

	require.Len(t, cmds, 1)
	assert.Equal(t, Command{Kind: CommandReleasePreview, FileID: "f2", StorageKey: "k2"}, cmds[0])
	assert.Equal(t, []models.FileStatus{models.FileStatusCompleted, models.FileStatusError}, statuses(next))
	assert.Equal(t, []models.Prospect{{Name: "A"}}, next.Files[0].ExtractedData)

	_, _, err = Remove(next, "f2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_WhileProcessing(t *testing.T) {
	s, _ := Intake(State{}, newFiles(2), DefaultMaxFiles)
	s, _, _ = BeginRun(s)
	s, _, _ = MarkProcessing(s, "f1")

	next, cmds, err := Remove(s, "f1")
	require.NoError(t, err)
	assert.Len(t, cmds, 1)
	assert.Len(t, next.Files, 1)
	assert.True(t, next.Processing)

	// Late result for the removed file is ignored.
	after := Complete(next, "f1", []models.Prospect{{Name: "ghost"}})
	assert.Equal(t, next, after)
}

func TestReset(t *testing.T) {
	s, _ := Intake(State{}, newFiles(3), DefaultMaxFiles)
	s.Error = "old"

	next, cmds, err := Reset(s)
	require.NoError(t, err)
	assert.Len(t, cmds, 3)
	assert.Empty(t, next.Files)
	assert.Empty(t, next.Error)

	s.Processing = true
	blocked, cmds, err := Reset(s)
	assert.ErrorIs(t, err, ErrProcessing)
	assert.Nil(t, cmds)
	assert.Len(t, blocked.Files, 3)
}

func TestBeginRun(t *testing.T) {
	s, _ := Intake(State{}, newFiles(4), DefaultMaxFiles)
	s, _, _ = MarkProcessing(s, "f1")
	s = Complete(s, "f1", nil)
	s, _, _ = MarkProcessing(s, "f2")
	s = Fail(s, "f2", "boom")

	next, ids, err := BeginRun(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"f2", "f3", "f4"}, ids)
	assert.True(t, next.Processing)

	_, _, err = BeginRun(next)
	assert.ErrorIs(t, err, ErrProcessing)
}

func TestBeginRun_NothingToDo(t *testing.T) {
	s, _ := Intake(State{}, newFiles(1), DefaultMaxFiles)
	s, _, _ = MarkProcessing(s, "f1")
	s = Complete(s, "f1", nil)
	s.Error = "keep me"

	next, ids, err := BeginRun(s)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, next.Processing)
	assert.Equal(t, s, next)
}

func TestTransitions_ExtractedDataOnlyWhenCompleted(t *testing.T) {
	s, _ := Intake(State{}, newFiles(2), DefaultMaxFiles)

	s, _, ok := MarkProcessing(s, "f1")
	require.True(t, ok)
	s = Complete(s, "f1", nil)
	s, _, _ = MarkProcessing(s, "f2")
	s = Fail(s, "f2", "boom")

	assert.NotNil(t, s.Files[0].ExtractedData, "completed with no records still has data")
	assert.Empty(t, s.Files[0].ExtractedData)
	assert.Nil(t, s.Files[1].ExtractedData)
	assert.Equal(t, "boom", s.Files[1].Error)

	// Error files can be retried; completed files cannot.
	_, _, ok = MarkProcessing(s, "f1")
	assert.False(t, ok)
	s, f, ok := MarkProcessing(s, "f2")
	assert.True(t, ok)
	assert.Empty(t, f.Error)
	assert.Equal(t, models.FileStatusProcessing, s.Files[1].Status)
}

func TestCompleteAndFail_IgnoreNonProcessing(t *testing.T) {
	s, _ := Intake(State{}, newFiles(1), DefaultMaxFiles)

	assert.Equal(t, s, Complete(s, "f1", nil))
	assert.Equal(t, s, Fail(s, "f1", "x"))
}

func TestSummary(t *testing.T) {
	s, _ := Intake(State{}, newFiles(3), DefaultMaxFiles)
	assert.Equal(t, "3 files ready to process", Summary(s))

	s, _, _ = BeginRun(s)
	s, _, _ = MarkProcessing(s, "f1")
	s = Complete(s, "f1", nil)
	assert.Equal(t, "Processing... (1/3)", Summary(s))

	s, _, _ = MarkProcessing(s, "f2")
	s = Fail(s, "f2", "boom")
	s, _, _ = MarkProcessing(s, "f3")
	s = Complete(s, "f3", nil)
	s = EndRun(s)
	assert.Equal(t, "All files processed (1 failed)", Summary(s))

	assert.Equal(t, "", Summary(State{}))
}

func TestSnapshot(t *testing.T) {
	s, _ := Intake(State{}, newFiles(2), DefaultMaxFiles)
	snap := Snapshot(s)

	assert.Equal(t, models.StatusCounts{Total: 2, Pending: 2}, snap.Counts)
	snap.Files[0].Name = "mutated"
	assert.Empty(t, s.Files[0].Name, "snapshot does not alias state")
}

func TestIntake_RefusedWhileProcessing(t *testing.T) {
	s, _ := Intake(State{}, newFiles(1), DefaultMaxFiles)
	s, _, err := BeginRun(s)
	require.NoError(t, err)

	next, err := Intake(s, newFiles(1), DefaultMaxFiles)
	assert.ErrorIs(t, err, ErrProcessing)
	assert.Len(t, next.Files, 1)
}
