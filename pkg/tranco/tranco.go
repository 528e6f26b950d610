// Package tranco downloads and parses the Tranco Top-1M popularity list.
package tranco

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/fetcher"
)

// DefaultListURL is the stable latest-list download.
const DefaultListURL = "https://tranco-list.eu/top-1m.csv.zip"

// RankTable maps canonical domains to their Tranco rank (1 = most popular).
type RankTable struct {
	ranks map[string]int
}

// Rank returns the domain's rank, falling back to the www. variant when the
// bare domain is absent. The list indexes some sites only under www.
func (t *RankTable) Rank(domain string) (int, bool) {
	if r, ok := t.ranks[domain]; ok {
		return r, true
	}
	r, ok := t.ranks["www."+domain]
	return r, ok
}

// Len returns the number of ranked domains.
func (t *RankTable) Len() int {
	return len(t.ranks)
}

// Loader fetches and caches the Tranco list.
type Loader struct {
	fetcher  fetcher.Fetcher
	listURL  string
	cacheDir string
	maxAge   time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithListURL overrides the download URL.
func WithListURL(u string) LoaderOption {
	return func(l *Loader) {
		l.listURL = u
	}
}

// WithCacheMaxAge overrides how long a cached download stays fresh.
func WithCacheMaxAge(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.maxAge = d
	}
}

// NewLoader creates a Loader caching downloads under cacheDir.
func NewLoader(f fetcher.Fetcher, cacheDir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:  f,
		listURL:  DefaultListURL,
		cacheDir: cacheDir,
		maxAge:   24 * time.Hour,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load returns the rank table, downloading the list unless a fresh cached
// copy exists.
func (l *Loader) Load(ctx context.Context) (*RankTable, error) {
	zipPath := filepath.Join(l.cacheDir, "tranco-top-1m.csv.zip")

	if !l.cacheFresh(zipPath) {
		if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "tranco: create cache dir")
		}
		zap.L().Info("downloading Tranco list", zap.String("url", l.listURL))
		n, err := l.fetcher.DownloadToFile(ctx, l.listURL, zipPath)
		if err != nil {
			return nil, eris.Wrap(err, "tranco: download list")
		}
		zap.L().Info("Tranco list downloaded", zap.Int64("bytes", n))
	} else {
		zap.L().Debug("using cached Tranco list", zap.String("path", zipPath))
	}

	csvPath, err := fetcher.ExtractZIPSingle(zipPath, l.cacheDir)
	if err != nil {
		return nil, eris.Wrap(err, "tranco: extract list")
	}

	return ParseFile(ctx, csvPath)
}

func (l *Loader) cacheFresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < l.maxAge
}

// ParseFile reads a rank,domain CSV (no header) into a RankTable. Malformed
// rows are skipped; the list occasionally carries stray lines.
func ParseFile(ctx context.Context, path string) (*RankTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "tranco: open list")
	}
	defer f.Close() //nolint:errcheck

	table := &RankTable{ranks: make(map[string]int, 1_000_000)}
	skipped := 0

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
	for row := range rowCh {
		if len(row) < 2 {
			skipped++
			continue
		}
		rank, err := strconv.Atoi(row[0])
		if err != nil || rank < 1 || row[1] == "" {
			skipped++
			continue
		}
		table.ranks[row[1]] = rank
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "tranco: parse list")
	}

	if skipped > 0 {
		zap.L().Warn("skipped malformed Tranco rows", zap.Int("count", skipped))
	}
	return table, nil
}
