// Package scheduler drives the resolved installation closure to completion:
// bounded-concurrency dispatch respecting dependency order, per-store-key
// single-flight, per-formula-name link serialization, and drain-on-failure
// cancellation.
package scheduler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/zerobrew/zerobrew/internal/bottle"
	"github.com/zerobrew/zerobrew/internal/build"
	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/fetch"
	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/linker"
	"github.com/zerobrew/zerobrew/internal/resolver"
	"github.com/zerobrew/zerobrew/internal/store"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// Scheduler runs a resolved closure: fetch/build → store.materialize →
// link → db.insert per node, up to a configured concurrency limit.
type Scheduler struct {
	cfg         *config.Config
	store       *store.Store
	db          *store.DB
	linker      *linker.Linker
	builder     *build.Executor
	fetcher     *fetch.Fetcher
	platformTag string
	concurrency int

	sf singleflight.Group
}

// New returns a Scheduler wired to the given components. concurrency is
// clamped to at least 1.
func New(cfg *config.Config, st *store.Store, db *store.DB, lk *linker.Linker, builder *build.Executor, fetcher *fetch.Fetcher, platformTag string, concurrency int) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		cfg:         cfg,
		store:       st,
		db:          db,
		linker:      lk,
		builder:     builder,
		fetcher:     fetcher,
		platformTag: platformTag,
		concurrency: concurrency,
	}
}

// Run installs every node in nodes (an already-ordered closure from
// internal/resolver), running independent nodes concurrently up to the
// configured limit. The first node failure cancels pending dispatches;
// already in-flight nodes run to completion before Run returns. A node that
// has not yet started when cancellation happens never runs at all.
func (s *Scheduler) Run(ctx context.Context, nodes []resolver.PlannedNode) error {
	return s.run(ctx, nodes, true)
}

// RunNoLink materializes every node's keg into the store exactly as Run
// does, but skips the link/db.insert step, for `install --no-link`.
func (s *Scheduler) RunNoLink(ctx context.Context, nodes []resolver.PlannedNode) error {
	return s.run(ctx, nodes, false)
}

func (s *Scheduler) run(ctx context.Context, nodes []resolver.PlannedNode, link bool) error {
	closure := make(map[string]resolver.PlannedNode, len(nodes))
	for _, n := range nodes {
		closure[n.Name] = n
	}
	deps := computeDeps(nodes, closure)

	done := make(map[string]chan struct{}, len(nodes))
	for _, n := range nodes {
		done[n.Name] = make(chan struct{})
	}

	sem := semaphore.NewWeighted(int64(s.concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, n := range nodes {
		node := n
		g.Go(func() error {
			for _, depName := range deps[node.Name] {
				select {
				case <-done[depName]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			if err := s.installNode(ctx, node, deps, closure, link); err != nil {
				return err
			}
			close(done[node.Name])
			return nil
		})
	}

	return g.Wait()
}

// installNode runs one node's fetch/build → materialize → link → db.insert
// sequence. Materialization for a given store key is single-flighted within
// this process; MaterializeFromBottle/MaterializeFromBuild are themselves
// idempotent and cross-process-locked, so a redundant concurrent attempt
// from another process is also safe, just wasted work.
func (s *Scheduler) installNode(ctx context.Context, node resolver.PlannedNode, deps map[string][]string, closure map[string]resolver.PlannedNode, link bool) error {
	storeKey, err := s.storeKeyFor(node)
	if err != nil {
		return err
	}

	kegPathAny, err, _ := s.sf.Do(storeKey, func() (any, error) {
		return s.materialize(ctx, node, storeKey, deps, closure)
	})
	if err != nil {
		return err
	}

	if !link {
		return nil
	}
	kegPath := kegPathAny.(string)

	if _, err := s.linker.Link(node.Record, kegPath); err != nil {
		return err
	}

	requestedDeps := make([]string, 0, len(node.Record.DependenciesByClass(formula.Runtime)))
	for _, dep := range node.Record.DependenciesByClass(formula.Runtime) {
		requestedDeps = append(requestedDeps, dep.Name)
	}

	rec := store.InstalledRecord{
		Name:          node.Name,
		Version:       node.Record.Version.String(),
		StoreKey:      storeKey,
		IsExplicit:    node.Via.Kind == resolver.Explicit,
		InstalledAt:   time.Now(),
		RequestedDeps: requestedDeps,
		KegOnly:       node.Record.KegOnly != nil,
	}
	return s.db.Insert(rec)
}

func (s *Scheduler) storeKeyFor(node resolver.PlannedNode) (string, error) {
	var artifactChecksum string
	if node.BuildFromSource {
		artifactChecksum = node.Record.SourceChecksum
	} else {
		entry, ok := s.selectBottle(node.Record)
		if !ok {
			return "", &zerobrewerr.ErrPlatformUnsupported{Name: node.Name, PlatformTag: s.platformTag}
		}
		artifactChecksum = entry.SHA256
	}
	return formula.StoreKey(node.Name, node.Record.Version, artifactChecksum, s.platformTag), nil
}

// selectBottle runs the same fallback cascade (exact tag, older-OS, "all")
// that the resolver used to decide BuildFromSource, so the two stages never
// disagree about which artifact a node installs from.
func (s *Scheduler) selectBottle(rec *formula.Record) (formula.BottleEntry, bool) {
	result := bottle.Select(rec, s.platformTag)
	if result.Outcome != bottle.Selected {
		return formula.BottleEntry{}, false
	}
	return result.Entry, true
}

func (s *Scheduler) materialize(ctx context.Context, node resolver.PlannedNode, storeKey string, deps map[string][]string, closure map[string]resolver.PlannedNode) (string, error) {
	if node.BuildFromSource {
		installedDeps := make([]build.InstalledDep, 0, len(deps[node.Name]))
		for _, depName := range deps[node.Name] {
			depNode, ok := closure[depName]
			if !ok {
				continue
			}
			installedDeps = append(installedDeps, build.InstalledDep{
				Name:       depName,
				Version:    depNode.Record.Version.String(),
				CellarPath: s.cfg.CellarPath(depName, depNode.Record.Version.String()),
			})
		}
		return s.builder.Build(ctx, node.Record, storeKey, installedDeps)
	}

	entry, ok := s.selectBottle(node.Record)
	if !ok {
		return "", &zerobrewerr.ErrPlatformUnsupported{Name: node.Name, PlatformTag: s.platformTag}
	}
	archivePath, err := s.fetcher.Fetch(ctx, entry.URL, entry.SHA256)
	if err != nil {
		return "", err
	}
	return s.store.MaterializeFromBottle(storeKey, archivePath)
}

// computeDeps mirrors the resolver's own edge-selection rule (runtime edges
// always count, build edges only for nodes building from source), limited
// to names actually present in this closure.
func computeDeps(nodes []resolver.PlannedNode, closure map[string]resolver.PlannedNode) map[string][]string {
	out := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		var names []string
		for _, dep := range node.Record.DependenciesByClass(formula.Runtime) {
			if _, ok := closure[dep.Name]; ok {
				names = append(names, dep.Name)
			}
		}
		if node.BuildFromSource {
			for _, dep := range node.Record.DependenciesByClass(formula.Build) {
				if _, ok := closure[dep.Name]; ok {
					names = append(names, dep.Name)
				}
			}
		}
		sort.Strings(names)
		out[node.Name] = names
	}
	return out
}
