// Package export renders the prospect table as downloadable files.
package export

import (
	"path/filepath"
	"strings"

	"github.com/prospect-scanner/backend/internal/models"
)

// DefaultCSVFilename is used when the caller does not name the download.
const DefaultCSVFilename = "prospects.csv"

// ToCSV renders records with a fixed header row. A field is quoted only when
// it contains a comma, a double quote or a newline; inner quotes are doubled.
// Lines are joined with "\n" and the output has no trailing newline.
func ToCSV(records []models.Prospect) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(models.ProspectColumns, ","))

	for _, r := range records {
		fields := r.Fields()
		for i, v := range fields {
			fields[i] = escapeField(v)
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n")
}

func escapeField(v string) string {
	if !strings.ContainsAny(v, ",\"\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// Filename normalises a requested download name to a bare file name with the
// given extension. Without a usable request it takes the stem of fallback,
// then of DefaultCSVFilename.
func Filename(requested, fallback, ext string) string {
	name := baseName(requested)
	if name == "" {
		name = stem(baseName(fallback))
	}
	if name == "" {
		name = stem(DefaultCSVFilename)
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return name
}

func baseName(p string) string {
	name := strings.TrimSpace(filepath.Base(filepath.Clean("/" + p)))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
