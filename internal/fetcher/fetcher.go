package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data. The single implementation is HTTPFetcher;
// the interface exists so pipeline stages can be tested without a network.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
