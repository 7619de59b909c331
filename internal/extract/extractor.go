// Package extract turns an image of a contact list into prospect records by
// calling a hosted multimodal model.
package extract

import (
	"context"
	"errors"

	"github.com/prospect-scanner/backend/internal/models"
)

// ErrNoImageData is returned when an extractor is handed an empty image.
var ErrNoImageData = errors.New("image has no data")

// Image is the raw payload sent to the model.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Extractor returns the records found in one image. An empty model response
// yields an empty, non-nil slice and no error.
type Extractor interface {
	Extract(ctx context.Context, img Image) ([]models.Prospect, error)
}
