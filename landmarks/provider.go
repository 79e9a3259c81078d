package landmarks

import (
	"context"
	"image"
)

// Provider detects landmarks on an image. A provider that finds nothing returns
// empty sequences rather than an error.
type Provider interface {
	Detect(ctx context.Context, img image.Image) (Landmarks, error)
}

// None is used when no detector is configured; every overlay is skipped.
type None struct{}

func (None) Detect(ctx context.Context, _ image.Image) (Landmarks, error) {
	return Landmarks{}, ctx.Err()
}

// Static returns landmarks computed elsewhere, typically by the client.
type Static struct {
	Landmarks Landmarks
}

func (s Static) Detect(ctx context.Context, _ image.Image) (Landmarks, error) {
	if err := ctx.Err(); err != nil {
		return Landmarks{}, err
	}
	return s.Landmarks, nil
}
