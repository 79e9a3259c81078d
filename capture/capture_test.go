package capture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	frame  Frame
	err    error
	closed int
}

func (f *fakeStream) Frame(context.Context) (Frame, error) { return f.frame, f.err }
func (f *fakeStream) Close() error                         { f.closed++; return nil }

type fakeCamera struct {
	stream  *fakeStream
	openErr error
}

func (c *fakeCamera) Open(context.Context) (Stream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

func TestCapture_ReleasesStream(t *testing.T) {
	ok := &fakeStream{frame: Frame{Data: []byte("x"), ContentType: "image/png"}}
	frame, err := Capture(context.Background(), &fakeCamera{stream: ok})
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), frame.Data)
	assert.Equal(t, 1, ok.closed)

	failing := &fakeStream{err: errors.New("sensor error")}
	_, err = Capture(context.Background(), &fakeCamera{stream: failing})
	assert.Error(t, err)
	assert.Equal(t, 1, failing.closed)
}

func TestCapture_OpenFailure(t *testing.T) {
	_, err := Capture(context.Background(), &fakeCamera{openErr: ErrPermissionDenied})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = Capture(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSnapshot(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-frame"))
	}))
	defer srv.Close()

	frame, err := Capture(context.Background(), NewSnapshot(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", frame.ContentType)
	assert.Equal(t, []byte("jpeg-frame"), frame.Data)

	status = http.StatusForbidden
	_, err = Capture(context.Background(), NewSnapshot(srv.URL))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	status = http.StatusServiceUnavailable
	_, err = Capture(context.Background(), NewSnapshot(srv.URL))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSnapshot_Unconfigured(t *testing.T) {
	_, err := Capture(context.Background(), NewSnapshot(""))
	assert.ErrorIs(t, err, ErrUnavailable)
}
