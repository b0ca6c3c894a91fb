// Package fetch downloads and integrity-checks artifacts into a content
// keyed cache, coalescing concurrent requests for the same URL.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// cacheEntry is the sidecar metadata persisted alongside a cached artifact.
type cacheEntry struct {
	URL        string    `json:"url"`
	Expected   string    `json:"expected_sha256,omitempty"`
	ActualHash string    `json:"actual_sha256"`
	Size       int64     `json:"size"`
	CachedAt   time.Time `json:"cached_at"`
}

// Fetcher downloads artifacts into <root>/cache, verifying SHA-256 and
// coalescing concurrent fetches of the same URL via single-flight.
type Fetcher struct {
	CacheDir string
	client   *http.Client
	group    singleflight.Group
}

// New creates a Fetcher backed by the given HTTP client (expected to be
// internal/httputil's SSRF-hardened client) caching under cacheDir.
func New(cacheDir string, client *http.Client) *Fetcher {
	return &Fetcher{CacheDir: cacheDir, client: client}
}

// Fetch returns the path to a fully-downloaded, integrity-checked file in
// the cache for url, downloading it if not already cached. When
// expectedSHA256 is non-empty, the downloaded (or cached) file's hash must
// match exactly. Concurrent callers for the same URL coalesce to one
// download.
func (f *Fetcher) Fetch(ctx context.Context, url, expectedSHA256 string) (string, error) {
	dataPath, metaPath := f.cachePaths(url)

	result, err, _ := f.group.Do(url, func() (any, error) {
		if cached, ok := f.checkCache(dataPath, metaPath, expectedSHA256); ok {
			return cached, nil
		}
		return f.download(ctx, url, dataPath, metaPath, expectedSHA256)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (f *Fetcher) cachePaths(url string) (dataPath, metaPath string) {
	sum := sha256.Sum256([]byte(url))
	key := hex.EncodeToString(sum[:])
	return filepath.Join(f.CacheDir, key+".data"), filepath.Join(f.CacheDir, key+".meta")
}

func (f *Fetcher) checkCache(dataPath, metaPath, expectedSHA256 string) (string, bool) {
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}

	info, err := os.Stat(dataPath)
	if err != nil || info.Size() != entry.Size {
		return "", false
	}

	if expectedSHA256 != "" && entry.ActualHash != expectedSHA256 {
		return "", false
	}

	return dataPath, true
}

func (f *Fetcher) download(ctx context.Context, url, dataPath, metaPath, expectedSHA256 string) (string, error) {
	if err := os.MkdirAll(f.CacheDir, 0755); err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &zerobrewerr.ErrNetworkError{URL: url, Detail: err.Error()}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &zerobrewerr.ErrNetworkError{URL: url, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &zerobrewerr.ErrNetworkError{URL: url, Detail: fmt.Sprintf("server returned status %d", resp.StatusCode)}
	}

	tmpPath := dataPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", &zerobrewerr.ErrNetworkError{URL: url, Detail: err.Error()}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	actualHash := hex.EncodeToString(hasher.Sum(nil))
	if expectedSHA256 != "" && actualHash != expectedSHA256 {
		os.Remove(tmpPath)
		return "", &zerobrewerr.ErrChecksumMismatch{URL: url, Expected: expectedSHA256, Actual: actualHash}
	}

	if err := os.Rename(tmpPath, dataPath); err != nil {
		os.Remove(tmpPath)
		return "", &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	entry := cacheEntry{
		URL:        url,
		Expected:   expectedSHA256,
		ActualHash: actualHash,
		Size:       size,
		CachedAt:   time.Now(),
	}
	if err := writeMeta(metaPath, entry); err != nil {
		return dataPath, nil
	}

	return dataPath, nil
}

func writeMeta(metaPath string, entry cacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	tmpPath := metaPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
