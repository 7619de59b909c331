package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Settings selects and configures a backend.
type Settings struct {
	Provider    string
	ProfilePath string
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
}

// New builds the configured extractor. The returned close function releases
// backend resources and is never nil.
func New(ctx context.Context, s Settings, log *zap.Logger) (Extractor, func() error, error) {
	profile, err := LoadProfile(s.ProfilePath)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }

	switch s.Provider {
	case ProviderGemini, "":
		g, err := NewGemini(ctx, s.Gemini, profile, log.Named("gemini"))
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case ProviderOpenAI:
		return NewOpenAI(s.OpenAI, profile, log.Named("openai")), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown extraction provider %q", s.Provider)
	}
}
