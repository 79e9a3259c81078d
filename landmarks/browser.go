package landmarks

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

//go:embed detector.html
var detectorPage []byte

// Browser runs MediaPipe Pose and FaceMesh inside headless Chrome.
type Browser struct {
	pageURL string
	timeout time.Duration
	logger  *zap.Logger

	server *http.Server
}

// NewBrowser creates a browser-backed provider. When pageURL is empty the
// embedded detector page is served from a loopback listener.
func NewBrowser(pageURL string, timeout time.Duration, logger *zap.Logger) (*Browser, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	b := &Browser{pageURL: pageURL, timeout: timeout, logger: logger.Named("landmarks_browser")}
	if pageURL != "" {
		return b, nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for detector page: %w", err)
	}
	b.server = &http.Server{Handler: detectorHandler(), ReadHeaderTimeout: 5 * time.Second}
	b.pageURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	go func() {
		if err := b.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("detector page server stopped", zap.Error(err))
		}
	}()
	return b, nil
}

func detectorHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(detectorPage)
	})
}

// Detect never fails because of the detector itself: browser or script errors
// are logged and reported as empty landmarks.
func (b *Browser) Detect(ctx context.Context, img image.Image) (Landmarks, error) {
	if err := ctx.Err(); err != nil {
		return Landmarks{}, err
	}

	dataURL, err := pngDataURL(img)
	if err != nil {
		return Landmarks{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var lm Landmarks
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(b.pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf("window.detect(%q)", dataURL), &lm, awaitPromise),
	)
	if err != nil {
		b.logger.Warn("landmark detection failed, continuing without landmarks", zap.Error(err))
		return Landmarks{}, nil
	}
	if err := lm.Validate(); err != nil {
		b.logger.Warn("detector returned unusable landmarks", zap.Error(err))
		return Landmarks{}, nil
	}
	return lm, nil
}

// Close stops the embedded page server, if any.
func (b *Browser) Close(ctx context.Context) error {
	if b.server == nil {
		return nil
	}
	return b.server.Shutdown(ctx)
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func pngDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image for detector: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
