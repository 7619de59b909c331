package models

import "time"

// FileInfo represents metadata about a stored image blob.
type FileInfo struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
