package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/prospect-scanner/backend/internal/models"
)

// GeminiConfig configures the Vertex AI backend.
type GeminiConfig struct {
	ProjectID       string
	Region          string
	Model           string
	Temperature     float32
	CredentialsFile string
}

// Gemini extracts records with a Vertex AI Gemini model. The image is sent
// inline and the model is constrained to the profile's JSON schema.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	prompt  string
	modelID string
	log     *zap.Logger
}

// NewGemini creates the Vertex client and configures the model.
func NewGemini(ctx context.Context, cfg GeminiConfig, profile *Profile, log *zap.Logger) (*Gemini, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewGemini: project and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   GenaiSchema(profile),
		Temperature:      genai.Ptr(cfg.Temperature),
	}

	return &Gemini{
		client:  client,
		model:   model,
		prompt:  profile.RenderPrompt(),
		modelID: cfg.Model,
		log:     log,
	}, nil
}

// Extract sends one image and decodes the returned records.
func (g *Gemini) Extract(ctx context.Context, img Image) ([]models.Prospect, error) {
	if len(img.Data) == 0 {
		return nil, ErrNoImageData
	}
	start := time.Now()

	resp, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		genai.Text(g.prompt),
	)
	if err != nil {
		g.log.Error("llm.gemini.generate_failed",
			zap.String("file", img.Name),
			zap.String("model", g.modelID),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		g.log.Warn("llm.gemini.empty_response", zap.String("file", img.Name))
	}

	records, err := DecodeRecords(text)
	if err != nil {
		return nil, err
	}

	g.log.Info("llm.gemini.ok",
		zap.String("file", img.Name),
		zap.Int("records", len(records)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return records, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// GenaiSchema converts the profile's record shape into a Vertex response schema.
func GenaiSchema(p *Profile) *genai.Schema {
	props := make(map[string]*genai.Schema, len(p.Fields))
	for _, f := range p.Fields {
		props[f.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.Description,
		}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   p.RequiredFields(),
		},
	}
}
