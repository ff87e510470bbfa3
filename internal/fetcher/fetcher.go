// Package fetcher acquires provider source files (local paths, HTTP(S) and
// FTP URLs, single-file ZIP archives) and streams their rows from CSV or XLSX.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
