package media

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps media in a directory served under a URL prefix.
type Local struct {
	dir    string
	prefix string
}

// NewLocal creates dir if needed. prefix is the URL path the files are served under, e.g. "/media/".
func NewLocal(dir, prefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Local{dir: dir, prefix: prefix}, nil
}

func (l *Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	return key, nil
}

func (l *Local) URL(_ context.Context, ref string) (string, error) {
	if err := checkKey(ref); err != nil {
		return "", err
	}
	return l.prefix + ref, nil
}

// Handler serves the stored files. Mount it at the prefix.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(l.prefix, http.FileServer(http.Dir(l.dir)))
}
