package garment

import (
	"context"
	"net/http"
)

// ResolveShortenedURL follows redirects (amzn.in, bit.ly) and returns the final
// URL. Any failure returns the input unchanged.
func (r *Resolver) ResolveShortenedURL(ctx context.Context, target string) string {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return target
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := r.Client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return resp.Request.URL.String()
		}
	}
	return target
}
