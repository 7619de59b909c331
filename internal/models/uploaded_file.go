package models

import "time"

// FileStatus represents where a file is in the extraction lifecycle.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusError      FileStatus = "error"
)

// Runnable reports whether a file is picked up by the next processing run.
func (s FileStatus) Runnable() bool {
	return s == FileStatusPending || s == FileStatusError
}

// UploadedFile is one image in the workspace.
// ExtractedData is non-nil exactly when Status is FileStatusCompleted.
type UploadedFile struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ContentType   string     `json:"contentType"`
	Size          int64      `json:"size"`
	StorageKey    string     `json:"-"`
	PreviewURL    string     `json:"previewUrl"`
	Status        FileStatus `json:"status"`
	ExtractedData []Prospect `json:"extractedData"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
