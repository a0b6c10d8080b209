package dom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultMaxDocumentSize caps how much of a response is read
const DefaultMaxDocumentSize = 10 * 1024 * 1024

// Loader fetches the raw markup of a URL
type Loader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// HTTPLoader loads pages over HTTP(S)
type HTTPLoader struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPLoader creates a loader with a per-request timeout
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		client:   &http.Client{Timeout: timeout},
		maxBytes: DefaultMaxDocumentSize,
	}
}

// Load implements Loader
func (l *HTTPLoader) Load(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
}

// MapLoader serves pages from memory, keyed by absolute URL
type MapLoader map[string]string

// Load implements Loader
func (m MapLoader) Load(ctx context.Context, url string) ([]byte, error) {
	body, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("page not found: %s", url)
	}
	return []byte(body), nil
}

// FileLoader serves file:// URLs from disk and delegates everything else
type FileLoader struct {
	Next Loader
}

// Load implements Loader
func (l FileLoader) Load(ctx context.Context, url string) ([]byte, error) {
	if path, ok := strings.CutPrefix(url, "file://"); ok {
		return os.ReadFile(path)
	}
	if l.Next == nil {
		return nil, fmt.Errorf("no loader for %s", url)
	}
	return l.Next.Load(ctx, url)
}
