package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prospect-scanner/backend/internal/models"
)

// wrapperKey is the object key used when a backend cannot return a bare array.
const wrapperKey = "prospects"

// recordsJSON isolates the record array from model output. It strips code
// fences and unwraps {"prospects": [...]}. Blank output returns nil.
func recordsJSON(text string) ([]byte, error) {
	text = stripFences(strings.TrimSpace(text))
	if text == "" {
		return nil, nil
	}

	raw := []byte(text)
	if bytes.HasPrefix(raw, []byte("{")) {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode response object: %w", err)
		}
		inner, ok := wrapped[wrapperKey]
		if !ok {
			return nil, fmt.Errorf("response object has no %q key", wrapperKey)
		}
		raw = inner
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	return raw, nil
}

// DecodeRecords parses model output into prospects. Blank output is an empty
// result, not an error.
func DecodeRecords(text string) ([]models.Prospect, error) {
	raw, err := recordsJSON(text)
	if err != nil {
		return nil, err
	}
	return decodeArray(raw)
}

func decodeArray(raw []byte) ([]models.Prospect, error) {
	records := make([]models.Prospect, 0)
	if raw == nil {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		records = make([]models.Prospect, 0)
	}
	return records, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
