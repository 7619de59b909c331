package models

// StatusCounts tallies files per status.
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
}

// WorkspaceSnapshot is a point-in-time copy of the workspace.
type WorkspaceSnapshot struct {
	Files      []UploadedFile `json:"files"`
	Processing bool           `json:"processing"`
	Error      string         `json:"error,omitempty"`
	Counts     StatusCounts   `json:"counts"`
	Summary    string         `json:"summary"`
}
