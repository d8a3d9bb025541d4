package asset

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
)

// Fetcher retrieves the contents of an asset by path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// FSFetcher reads assets from a file system.
type FSFetcher struct {
	FS fs.FS
}

func (f FSFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(f.FS, strings.TrimPrefix(path, "/"))
}

// HTTPFetcher downloads assets relative to BaseURL.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client  *http.Client
	BaseURL string
	// MaxSize bounds the accepted body size. Zero means 64MiB.
	MaxSize int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	u, err := url.JoinPath(f.BaseURL, path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	max := f.MaxSize
	if max <= 0 {
		max = 64 << 20
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", u, max)
	}
	return b, nil
}
