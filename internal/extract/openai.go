package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/models"
)

// OpenAIConfig configures an OpenAI-compatible chat/completions backend.
type OpenAIConfig struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // vision-capable model
	Temperature float32
	Timeout     time.Duration // zero means no client timeout
}

// OpenAI extracts records through a chat/completions endpoint, sending the
// image as a base64 data URL.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	profile    *Profile
	schema     map[string]any
	log        *zap.Logger
}

// NewOpenAI applies defaults and builds the client.
func NewOpenAI(cfg OpenAIConfig, profile *Profile, log *zap.Logger) *OpenAI {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		profile:    profile,
		schema:     profile.JSONSchema(),
		log:        log,
	}
}

// DataURL encodes image bytes the way a browser FileReader would.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Extract sends one image and validates the reply against the profile schema.
func (c *OpenAI) Extract(ctx context.Context, img Image) ([]models.Prospect, error) {
	if len(img.Data) == 0 {
		return nil, ErrNoImageData
	}
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		zap.String("req_id", rid),
		zap.String("file", img.Name),
		zap.String("model", c.cfg.Model),
		zap.Int("image_bytes", len(img.Data)),
	)

	instructions := c.profile.RenderPrompt() +
		"\n\nReturn ONLY a JSON object of the form {\"" + wrapperKey + "\": [...]} " +
		"where the array matches this JSON Schema:\n" + mustJSON(c.schema)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instructions},
					{"type": "image_url", "image_url": map[string]any{"url": DataURL(img.MIMEType, img.Data)}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			zap.String("req_id", rid),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openai response")
	}

	arr, err := recordsJSON(cc.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if arr != nil {
		if err := ValidateJSONAgainstSchema(c.schema, arr); err != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				zap.String("req_id", rid),
				zap.Error(err),
			)
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
	}

	records, err := decodeArray(arr)
	if err != nil {
		return nil, err
	}

	c.log.Info("llm.extract.ok",
		zap.String("req_id", rid),
		zap.Int("records", len(records)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return records, nil
}

func (c *OpenAI) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
