// Package media stores photos, garments and composites and hands out URLs for them.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidKey = errors.New("invalid media key")

// Storage persists image bytes. Put returns a reference that URL later turns
// into something a client can fetch.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

// Folders used for try-on uploads.
const (
	FolderPhotos     = "photos"
	FolderGarments   = "garments"
	FolderComposites = "composites"
)

// NewKey returns a unique object key under folder.
func NewKey(folder, ext string) string {
	return fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
}

// Extension maps an image content type to a file extension.
func Extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// ResolveURL turns a stored reference into a URL. Absolute URLs are kept as
// is; if signing fails the raw reference is returned.
func ResolveURL(ctx context.Context, s Storage, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if url, err := s.URL(ctx, ref); err == nil {
		return url
	}
	return ref
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
