// Package aggregate derives the combined prospect table from workspace files.
package aggregate

import (
	"strings"

	"github.com/prospect-scanner/backend/internal/models"
)

// Flatten concatenates the records of every completed file in list order.
// Files in any other status contribute nothing.
func Flatten(files []models.UploadedFile) []models.Prospect {
	records := make([]models.Prospect, 0)
	for _, f := range files {
		if f.Status != models.FileStatusCompleted {
			continue
		}
		records = append(records, f.ExtractedData...)
	}
	return records
}

// Filter keeps records where any field contains query, ignoring case.
// An empty query matches everything.
func Filter(records []models.Prospect, query string) []models.Prospect {
	if query == "" {
		return records
	}
	needle := strings.ToLower(query)

	matched := make([]models.Prospect, 0, len(records))
	for _, r := range records {
		if matches(r, needle) {
			matched = append(matched, r)
		}
	}
	return matched
}

func matches(r models.Prospect, needle string) bool {
	for _, v := range r.Fields() {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
