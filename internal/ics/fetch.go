package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"

	appLog "calgrid/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodySize  = 10 << 20

	metaFileName = "meta.json"
	bodyFileName = "body.ics.lz4"
)

var (
	// ErrEmptyURL is returned for a source without URL.
	ErrEmptyURL = errors.New("ics: source URL is empty")
	// ErrBodyTooLarge is returned when a feed exceeds the configured size.
	ErrBodyTooLarge = errors.New("ics: body exceeds size limit")
	// ErrNotModifiedNoCache is a 304 without a cached body to reuse.
	ErrNotModifiedNoCache = errors.New("ics: 304 Not Modified but no cached body")
)

// Source represents a single ICS subscription source.
type Source struct {
	// ID is an internal identifier (e.g., config ICS ID).
	ID string
	// URL is the ICS endpoint.
	URL string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused the cached body
}

// cacheEntry holds HTTP cache metadata for a single ICS URL. The body is
// stored lz4 block-compressed next to it; RawSize is needed to decode it.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	RawSize      int       `json:"raw_size"`
	Compressed   bool      `json:"compressed"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FetcherOptions tunes a Fetcher. Zero values take defaults.
type FetcherOptions struct {
	Timeout     time.Duration
	MaxBodySize int64
	Client      *http.Client
}

// Fetcher fetches ICS feeds with HTTP caching (ETag / Last-Modified) and a
// disk-backed cache used for 304s and as a fallback on failures.
type Fetcher struct {
	client      *http.Client
	cacheDir    string
	maxBodySize int64
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored. Example: "/var/cache/calgrid/ics".
func NewFetcher(cacheDir string, opts FetcherOptions) *Fetcher {
	if cacheDir == "" {
		// Relative fallback so that development runs without root permissions.
		cacheDir = "./var/ics-cache"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{
		client:      client,
		cacheDir:    cacheDir,
		maxBodySize: opts.MaxBodySize,
	}
}

// FetchAll fetches all given sources and returns individual results.
// Errors for individual sources are logged and returned in the error slice.
//
// The returned slice of results will only contain entries for sources that
// successfully produced a body (either from network or cache).
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne fetches a single ICS source, honoring ETag and Last-Modified.
// It uses a disk cache under f.cacheDir keyed by a hash of the URL.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, ErrEmptyURL
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := loadCacheBody(cachePath, meta)

	fallback := func(cause error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, cause
		}
		appLog.Warn("ics fetch failed, using cached body", "err", cause, "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
		if readErr != nil {
			return fallback(readErr)
		}
		if int64(len(body)) > f.maxBodySize {
			return fallback(fmt.Errorf("%w: more than %s", ErrBodyTooLarge, humanize.IBytes(uint64(f.maxBodySize))))
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}

		appLog.Info("ics fetch success",
			"id", src.ID,
			"url", redactURL(src.URL),
			"size", humanize.IBytes(uint64(len(body))),
		)
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, ErrNotModifiedNoCache
		}
		appLog.Debug("ics fetch not modified; using cache", "id", src.ID)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("ics: unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, metaFileName))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string, meta cacheEntry) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(cachePath, bodyFileName))
	if err != nil {
		return nil, err
	}
	if !meta.Compressed {
		return data, nil
	}
	out := make([]byte, meta.RawSize)
	n, err := lz4.UncompressBlock(data, out)
	if err != nil {
		return nil, fmt.Errorf("ics: decompress cache: %w", err)
	}
	return out[:n], nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	stored := body
	compressed := make([]byte, lz4.CompressBlockBound(len(body)))
	written, err := lz4.CompressBlock(body, compressed, nil)
	if err == nil && written > 0 {
		// A zero write means the body is incompressible; keep it raw.
		stored = compressed[:written]
		meta.Compressed = true
	}
	meta.RawSize = len(body)
	meta.UpdatedAt = time.Now().UTC()

	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, bodyFileName), stored, 0o600); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, metaFileName), data, 0o600)
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
