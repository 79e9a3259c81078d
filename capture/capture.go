// Package capture grabs a still photo from a camera and always releases it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrUnavailable      = errors.New("camera unavailable")
)

// Frame is one still image.
type Frame struct {
	Data        []byte
	ContentType string
}

// Camera hands out streams. Every opened stream must be closed.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

type Stream interface {
	Frame(ctx context.Context) (Frame, error)
	Close() error
}

// Capture opens cam, takes one frame and releases the stream, whatever happens.
func Capture(ctx context.Context, cam Camera) (frame Frame, err error) {
	if cam == nil {
		return Frame{}, ErrUnavailable
	}
	stream, err := cam.Open(ctx)
	if err != nil {
		return Frame{}, err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to release camera: %w", cerr)
		}
	}()

	return stream.Frame(ctx)
}

// Snapshot is a network camera exposing a still-image endpoint (IP webcam apps,
// most NVRs).
type Snapshot struct {
	URL    string
	Client *http.Client
}

func NewSnapshot(url string) *Snapshot {
	return &Snapshot{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *Snapshot) Open(ctx context.Context) (Stream, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("%w: no snapshot url configured", ErrUnavailable)
	}
	return &snapshotStream{cam: s}, nil
}

type snapshotStream struct {
	cam    *Snapshot
	closed bool
}

func (s *snapshotStream) Frame(ctx context.Context) (Frame, error) {
	if s.closed {
		return Frame{}, fmt.Errorf("%w: stream closed", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cam.URL, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := s.cam.Client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Frame{}, fmt.Errorf("%w: camera answered %d", ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Frame{}, fmt.Errorf("%w: camera answered %d", ErrUnavailable, resp.StatusCode)
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return Frame{}, fmt.Errorf("%w: unexpected content type %q", ErrUnavailable, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Frame{Data: data, ContentType: ct}, nil
}

func (s *snapshotStream) Close() error {
	s.closed = true
	return nil
}
