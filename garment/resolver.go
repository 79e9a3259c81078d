// Package garment turns a product page or image URL into garment image bytes.
package garment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// MaxImageBytes caps a downloaded garment image.
const MaxImageBytes = 15 << 20

var (
	ErrInvalidURL = errors.New("garment url must be http or https")
	ErrNoImage    = errors.New("no garment image found")
	ErrTooLarge   = errors.New("garment image too large")
)

// Image is a downloaded garment picture.
type Image struct {
	Data        []byte
	ContentType string
	SourceURL   string
}

// Renderer returns the HTML of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Resolver fetches garment images. Pages are parsed with the site extractors
// first, then the generic meta tags; a Renderer, if set, retries pages whose
// static HTML has no usable image.
type Resolver struct {
	Client     *http.Client
	Extractors []Extractor
	Renderer   Renderer
	Logger     *zap.Logger
}

func NewResolver(renderer Renderer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Client:     &http.Client{Timeout: 30 * time.Second},
		Extractors: DefaultExtractors(),
		Renderer:   renderer,
		Logger:     logger,
	}
}

// Resolve downloads the image behind rawURL, which may be the image itself or
// a product page showing it.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Image, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	final := r.ResolveShortenedURL(ctx, u.String())

	resp, err := r.get(ctx, final, "text/html,application/xhtml+xml,image/avif,image/webp,image/*;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	pageURL := resp.Request.URL
	if img, err := readImage(resp); err == nil {
		return img, nil
	} else if !errors.Is(err, errNotImage) {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	if img, err := r.fromDocument(ctx, doc, pageURL); err == nil {
		return img, nil
	}

	if r.Renderer != nil {
		r.Logger.Info("static page had no garment image, rendering", zap.String("url", pageURL.String()))
		html, err := r.Renderer.Render(ctx, pageURL.String())
		if err != nil {
			r.Logger.Warn("render failed", zap.String("url", pageURL.String()), zap.Error(err))
			return nil, ErrNoImage
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rendered page: %w", err)
		}
		return r.fromDocument(ctx, doc, pageURL)
	}

	return nil, ErrNoImage
}

// FetchImage downloads an image URL without any page parsing.
func (r *Resolver) FetchImage(ctx context.Context, rawURL string) (*Image, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := r.get(ctx, u.String(), "image/avif,image/webp,image/*,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	img, err := readImage(resp)
	if errors.Is(err, errNotImage) {
		return nil, fmt.Errorf("%w: %s is not an image", ErrNoImage, rawURL)
	}
	return img, err
}

func (r *Resolver) fromDocument(ctx context.Context, doc *goquery.Document, pageURL *url.URL) (*Image, error) {
	for _, candidate := range r.candidates(doc, pageURL) {
		img, err := r.FetchImage(ctx, candidate)
		if err != nil {
			r.Logger.Debug("garment candidate rejected", zap.String("url", candidate), zap.Error(err))
			continue
		}
		return img, nil
	}
	return nil, ErrNoImage
}

// candidates lists absolute image URLs in preference order without duplicates.
func (r *Resolver) candidates(doc *goquery.Document, pageURL *url.URL) []string {
	var raw []string
	for _, ex := range r.Extractors {
		if ex.CanExtract(pageURL.Hostname()) {
			raw = append(raw, ex.Extract(doc)...)
		}
	}
	raw = append(raw, genericImages(doc)...)

	seen := map[string]bool{}
	var out []string
	for _, c := range raw {
		abs := absolute(pageURL, c)
		if abs == "" || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

func (r *Resolver) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status code error: %d %s", resp.StatusCode, resp.Status)
	}
	return resp, nil
}

var errNotImage = errors.New("response is not an image")

// readImage consumes resp.Body only when the response is an image.
func readImage(resp *http.Response) (*Image, error) {
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		return nil, errNotImage
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, ErrTooLarge
	}
	return &Image{Data: data, ContentType: ct, SourceURL: resp.Request.URL.String()}, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
