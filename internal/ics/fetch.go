package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "icsreport/internal/log"
)

// Source identifies a remote calendar document.
type Source struct {
	// ID is an internal identifier used for logging.
	ID string
	// URL is the document endpoint.
	URL string
}

// FetchResult is the outcome of acquiring one document.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true when the cached body was reused (304 or network fallback)
}

// cacheMeta holds the HTTP validators recorded for a cached document.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Fetcher acquires calendar documents over HTTP with a disk-backed
// conditional-GET cache (ETag / Last-Modified). The cache directory holds a
// pair of files per URL, keyed by a hash: <key>.ics and <key>.json.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/ics"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Fetch acquires a single document, honoring cached validators. On network
// errors or non-OK statuses it falls back to the cached body when one
// exists, so a flaky source still produces a report.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	if err := os.MkdirAll(f.cacheDir, 0o700); err != nil {
		return FetchResult{}, err
	}

	key := cacheKey(src.URL)
	meta := f.readMeta(key)
	cached, _ := os.ReadFile(f.bodyPath(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("fetch failed, using cached document", "id", src.ID, "url", redactURL(src.URL), "err", err)
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}
		f.store(key, cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		}, body)
		appLog.Info("document fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified with no cached body")
		}
		appLog.Debug("document not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("fetch returned non-OK, using cached document", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) bodyPath(key string) string {
	return filepath.Join(f.cacheDir, key+".ics")
}

func (f *Fetcher) metaPath(key string) string {
	return filepath.Join(f.cacheDir, key+".json")
}

func (f *Fetcher) readMeta(key string) cacheMeta {
	var meta cacheMeta
	data, err := os.ReadFile(f.metaPath(key))
	if err != nil {
		return cacheMeta{}
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}
	}
	return meta
}

// store writes body before meta so validators never point at a missing body.
// Cache write failures are logged, not returned; the fetched body is still
// usable.
func (f *Fetcher) store(key string, meta cacheMeta, body []byte) {
	if err := os.WriteFile(f.bodyPath(key), body, 0o600); err != nil {
		appLog.Error("cache body write failed", err, "path", f.bodyPath(key))
		return
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err == nil {
		err = os.WriteFile(f.metaPath(key), data, 0o600)
	}
	if err != nil {
		appLog.Error("cache meta write failed", err, "path", f.metaPath(key))
	}
}

// redactURL trims an URL down to its host for logging; paths and query
// strings of calendar feeds often embed access tokens.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + suffix
}
