// Package index fetches and caches the upstream formula index: a single
// JSON document mapping formula names to their catalog records.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/httputil"
	"github.com/zerobrew/zerobrew/internal/log"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// meta is the sidecar recording when the cached index was last fetched.
type meta struct {
	FetchedAt time.Time `json:"fetched_at"`
}

// Client fetches formula records, transparently caching the upstream index
// under <root>/cache/index.json and falling back to the last-known-good
// cache on fetch failure (stale-if-error).
type Client struct {
	URL       string
	CachePath string
	MetaPath  string
	TTL       time.Duration

	client *http.Client
	logger log.Logger

	mu       sync.RWMutex
	byName   map[string]*formula.Record
	loaded   bool
}

// New creates an index Client backed by the SSRF-hardened shared HTTP
// client, caching under cfg.CacheDir/index.json.
func New(cfg *config.Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Client{
		URL:       cfg.IndexURL,
		CachePath: filepath.Join(cfg.CacheDir, "index.json"),
		MetaPath:  filepath.Join(cfg.CacheDir, "index.json.meta"),
		TTL:       config.GetIndexTTL(),
		client:    httputil.NewSecureClient(httputil.DefaultOptions()),
		logger:    logger,
	}
}

// Get looks up a single formula record by name, loading the index (from
// cache or upstream) first if necessary.
func (c *Client) Get(ctx context.Context, name string) (*formula.Record, error) {
	all, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := all[name]
	if !ok {
		return nil, &zerobrewerr.ErrFormulaNotFound{Name: name}
	}
	return rec, nil
}

// LoadAll returns every formula record, fetching fresh if the cache is
// stale or absent, and falling back to the last-known-good cache if the
// fetch itself fails.
func (c *Client) LoadAll(ctx context.Context) (map[string]*formula.Record, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return c.byName, nil
	}
	c.mu.RUnlock()

	if c.isFresh() {
		if data, err := c.readCache(); err == nil {
			if parsed, err := parseIndex(data); err == nil {
				c.setLoaded(parsed)
				return parsed, nil
			}
		}
	}

	data, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("index fetch failed, falling back to cache", "error", err)
		cached, cacheErr := c.readCache()
		if cacheErr != nil {
			return nil, err
		}
		parsed, parseErr := parseIndex(cached)
		if parseErr != nil {
			return nil, err
		}
		c.setLoaded(parsed)
		return parsed, nil
	}

	parsed, err := parseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("parsing formula index: %w", err)
	}
	c.setLoaded(parsed)
	return parsed, nil
}

// Refresh re-fetches the index unconditionally, ignoring cache freshness.
func (c *Client) Refresh(ctx context.Context) (map[string]*formula.Record, error) {
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := parseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("parsing formula index: %w", err)
	}
	c.setLoaded(parsed)
	return parsed, nil
}

func (c *Client) setLoaded(byName map[string]*formula.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = byName
	c.loaded = true
}

func (c *Client) isFresh() bool {
	data, err := os.ReadFile(c.MetaPath)
	if err != nil {
		return false
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	return time.Since(m.FetchedAt) < c.TTL
}

func (c *Client) readCache() ([]byte, error) {
	return os.ReadFile(c.CachePath)
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, &zerobrewerr.ErrNetworkError{URL: c.URL, Detail: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &zerobrewerr.ErrNetworkError{URL: c.URL, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &zerobrewerr.ErrNetworkError{
			URL:    c.URL,
			Detail: fmt.Sprintf("index server returned status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &zerobrewerr.ErrNetworkError{URL: c.URL, Detail: err.Error()}
	}

	if err := c.writeCache(data); err != nil {
		c.logger.Warn("failed to persist index cache", "error", err)
	}

	return data, nil
}

func (c *Client) writeCache(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(c.CachePath, data, 0644); err != nil {
		return err
	}
	m := meta{FetchedAt: time.Now()}
	metaData, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(c.MetaPath, metaData, 0644)
}

func parseIndex(data []byte) (map[string]*formula.Record, error) {
	var records []*formula.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	byName := make(map[string]*formula.Record, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}
	return byName, nil
}
