package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/prospect-scanner/backend/internal/config"
	"github.com/prospect-scanner/backend/internal/extract"
	"github.com/prospect-scanner/backend/internal/storage"
)

func buildStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (storage.Store, error) {
	if cfg.Storage.Backend == config.StorageS3 {
		s3cfg := cfg.Storage.S3
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:        s3cfg.Endpoint,
			Region:          s3cfg.Region,
			Bucket:          s3cfg.Bucket,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Prefix:          s3cfg.Prefix,
		}, log.Named("s3"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func extractorSettings(cfg *config.AppConfig) extract.Settings {
	ec := cfg.Extraction
	return extract.Settings{
		Provider:    ec.Provider,
		ProfilePath: ec.ProfilePath,
		Gemini: extract.GeminiConfig{
			ProjectID:       ec.Gemini.ProjectID,
			Region:          ec.Gemini.Region,
			Model:           ec.Gemini.Model,
			Temperature:     ec.Gemini.Temperature,
			CredentialsFile: ec.Gemini.CredentialsFile,
		},
		OpenAI: extract.OpenAIConfig{
			APIKey:      ec.OpenAI.APIKey,
			BaseURL:     ec.OpenAI.BaseURL,
			Model:       ec.OpenAI.Model,
			Temperature: ec.OpenAI.Temperature,
			Timeout:     config.Seconds(ec.OpenAI.TimeoutSeconds),
		},
	}
}
