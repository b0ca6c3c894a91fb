// Package gc computes the live set of store keys reachable from explicitly
// installed formulas and reclaims everything else: unreferenced store
// directories, orphaned installed-set rows left behind when their only
// referrer was uninstalled, stale in-progress materializations, and,
// opt-in only, aged fetch-cache entries.
package gc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/linker"
	"github.com/zerobrew/zerobrew/internal/store"
)

// Collector reclaims unreferenced kegs and orphaned installed-set rows.
type Collector struct {
	cfg    *config.Config
	store  *store.Store
	db     *store.DB
	linker *linker.Linker
}

// New returns a Collector wired to the given store, database, and linker.
func New(cfg *config.Config, st *store.Store, db *store.DB, lk *linker.Linker) *Collector {
	return &Collector{cfg: cfg, store: st, db: db, linker: lk}
}

// Report summarizes a completed Sweep.
type Report struct {
	RemovedFormulas  []string
	RemovedStoreKeys []string
}

// Sweep computes the live set — every explicitly installed formula plus its
// transitive runtime dependency closure — and removes everything else: it
// unlinks and drops the installed-set row for any formula no longer
// reachable from an explicit root, then removes any store directory no
// committed row references, then clears stale *.tmp materializations.
func (c *Collector) Sweep(ctx context.Context) (*Report, error) {
	records, err := c.db.List()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]store.InstalledRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	liveNames := make(map[string]bool, len(records))
	var roots []string
	for _, r := range records {
		if r.IsExplicit {
			roots = append(roots, r.Name)
		}
	}

	for _, root := range roots {
		c.visit(root, byName, liveNames)
	}

	report := &Report{}
	for _, r := range records {
		if liveNames[r.Name] {
			continue
		}
		if err := c.linker.Unlink(r.Name); err != nil {
			return nil, err
		}
		if err := c.db.Remove(r.Name); err != nil {
			return nil, err
		}
		report.RemovedFormulas = append(report.RemovedFormulas, r.Name)
	}

	liveKeys := make(map[string]bool, len(records))
	for _, r := range records {
		if liveNames[r.Name] {
			liveKeys[r.StoreKey] = true
		}
	}

	keys, err := c.store.List()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if liveKeys[key] {
			continue
		}
		if err := c.store.Remove(key); err != nil {
			return nil, err
		}
		report.RemovedStoreKeys = append(report.RemovedStoreKeys, key)
	}

	if err := c.store.CleanStaleTmp(); err != nil {
		return nil, err
	}

	return report, nil
}

// visit marks name (and its transitive runtime dependencies, per the
// requested_deps closure recorded at install time) live. A dependency not
// present in the installed set is not an error: it may have been satisfied
// by a uses_from_macos edge that never materialized a keg. Walking the
// recorded closure rather than re-querying the catalog means gc stays
// correct even if the index is unreachable or a formula's upstream
// dependency list has since changed.
func (c *Collector) visit(name string, byName map[string]store.InstalledRecord, live map[string]bool) {
	if live[name] {
		return
	}
	live[name] = true

	rec, ok := byName[name]
	if !ok {
		return
	}

	for _, depName := range rec.RequestedDeps {
		if _, ok := byName[depName]; !ok {
			continue
		}
		c.visit(depName, byName, live)
	}
}

// cacheMeta mirrors the sidecar metadata internal/fetch writes alongside a
// cached artifact; gc only needs the timestamp to decide eligibility.
type cacheMeta struct {
	CachedAt time.Time `json:"cached_at"`
}

// PruneCache removes fetch-cache entries older than maxAge. This is never
// called automatically; callers opt in explicitly (e.g. a `zerobrew gc
// --prune-cache` flag), since a pruned entry simply means the next fetch of
// that URL re-downloads instead of hitting the cache.
func (c *Collector) PruneCache(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(c.cfg.CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var pruned []string
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".meta") {
			continue
		}
		metaPath := filepath.Join(c.cfg.CacheDir, e.Name())
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta cacheMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if now.Sub(meta.CachedAt) < maxAge {
			continue
		}

		dataPath := strings.TrimSuffix(metaPath, ".meta") + ".data"
		os.Remove(dataPath)
		os.Remove(metaPath)
		pruned = append(pruned, dataPath)
	}
	return pruned, nil
}
