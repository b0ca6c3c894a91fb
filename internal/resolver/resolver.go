// Package resolver expands a set of requested formula names into a fully
// ordered installation plan: a queue-based dependency closure over runtime,
// build, and recommended edges, followed by a deterministic topological
// sort.
package resolver

import (
	"context"
	"sort"

	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// Mode selects which dependency classes participate in the closure.
type Mode int

const (
	// ModeInstall is the default: runtime + build(if-building) + recommended.
	ModeInstall Mode = iota
	// ModeBundle additionally disables recommended deps, matching a
	// minimal-footprint bundle install.
	ModeBundle
)

// ViaKind identifies how a node entered the closure.
type ViaKind int

const (
	Explicit ViaKind = iota
	RuntimeOf
	BuildOf
)

func (v ViaKind) String() string {
	switch v {
	case Explicit:
		return "explicit"
	case RuntimeOf:
		return "runtime_of"
	case BuildOf:
		return "build_of"
	default:
		return "unknown"
	}
}

// Via records why a node is in the closure and, for non-explicit nodes,
// which parent pulled it in.
type Via struct {
	Kind   ViaKind
	Parent string
}

// PlannedNode is one formula's position in the resolved installation plan.
type PlannedNode struct {
	Name            string
	Record          *formula.Record
	Depth           int
	Via             Via
	BuildFromSource bool
}

// Index is the subset of the index client the resolver needs.
type Index interface {
	Get(ctx context.Context, name string) (*formula.Record, error)
}

// BottleAvailability reports whether a formula has a usable bottle for a
// platform tag; when false, the resolver must plan a source build for that
// node and pull in its build dependencies.
type BottleAvailability interface {
	Available(rec *formula.Record, platformTag string) bool
}

// Resolver computes installation plans from an index and a bottle
// availability oracle.
type Resolver struct {
	Index       Index
	Bottles     BottleAvailability
	PlatformTag string
	IsMacOS     bool
}

// New creates a Resolver for the given platform tag.
func New(idx Index, bottles BottleAvailability, platformTag string, isMacOS bool) *Resolver {
	return &Resolver{Index: idx, Bottles: bottles, PlatformTag: platformTag, IsMacOS: isMacOS}
}

// queueItem is a pending (name, via, depth) expansion.
type queueItem struct {
	name  string
	via   Via
	depth int
}

// ResolveClosure expands requested into a fully ordered installation plan.
func (r *Resolver) ResolveClosure(ctx context.Context, requested []string, mode Mode) ([]PlannedNode, error) {
	nodes := make(map[string]*PlannedNode)
	queue := make([]queueItem, 0, len(requested))
	for _, name := range requested {
		queue = append(queue, queueItem{name: name, via: Via{Kind: Explicit}, depth: 0})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		existing, seen := nodes[item.name]
		if seen {
			upgradeClassification(existing, item.via)
			continue
		}

		rec, err := r.Index.Get(ctx, item.name)
		if err != nil {
			return nil, err
		}

		node := &PlannedNode{
			Name:   item.name,
			Record: rec,
			Depth:  item.depth,
			Via:    item.via,
		}
		node.BuildFromSource = !r.Bottles.Available(rec, r.PlatformTag)
		nodes[item.name] = node

		for _, q := range r.expand(node, mode) {
			queue = append(queue, q)
		}
	}

	// Bottle availability is decided at first visit (above), so every
	// node's build-dep edges are already queued by expand() in the same
	// pass that set BuildFromSource — the closure reaches fixpoint as the
	// BFS queue drains, with no separate re-entry pass required.
	return r.sortTopological(nodes)
}

// ResolveOne is a single-formula convenience wrapper over ResolveClosure.
func (r *Resolver) ResolveOne(ctx context.Context, name string, mode Mode) ([]PlannedNode, error) {
	return r.ResolveClosure(ctx, []string{name}, mode)
}

func upgradeClassification(existing *PlannedNode, via Via) {
	if existing.Via.Kind == BuildOf && via.Kind == RuntimeOf {
		existing.Via = via
	}
}

func (r *Resolver) expand(node *PlannedNode, mode Mode) []queueItem {
	var out []queueItem
	nextDepth := node.Depth + 1

	for _, dep := range node.Record.DependenciesByClass(formula.Runtime) {
		out = append(out, queueItem{name: dep.Name, via: Via{Kind: RuntimeOf, Parent: node.Name}, depth: nextDepth})
	}

	if node.BuildFromSource {
		for _, dep := range node.Record.DependenciesByClass(formula.Build) {
			out = append(out, queueItem{name: dep.Name, via: Via{Kind: BuildOf, Parent: node.Name}, depth: nextDepth})
		}
	}

	if mode != ModeBundle {
		for _, dep := range node.Record.DependenciesByClass(formula.Recommended) {
			out = append(out, queueItem{name: dep.Name, via: Via{Kind: RuntimeOf, Parent: node.Name}, depth: nextDepth})
		}
	}

	for _, uf := range node.Record.UsesFromMacOS {
		if r.IsMacOS {
			// The macOS system image already provides this dependency,
			// except when the predicate restricts it to a build the node
			// still needs to perform from source.
			if uf.Predicate == formula.BuildOnly && node.BuildFromSource {
				out = append(out, queueItem{name: uf.Name, via: Via{Kind: BuildOf, Parent: node.Name}, depth: nextDepth})
			}
			continue
		}
		out = append(out, queueItem{name: uf.Name, via: Via{Kind: RuntimeOf, Parent: node.Name}, depth: nextDepth})
	}

	return out
}

// sortTopological orders nodes by dependency edges (runtime + active build
// edges), tie-breaking by name ascending, and detects cycles.
func (r *Resolver) sortTopological(nodes map[string]*PlannedNode) ([]PlannedNode, error) {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	edges := make(map[string][]string, len(nodes))
	for _, name := range names {
		node := nodes[name]
		var deps []string
		for _, dep := range node.Record.DependenciesByClass(formula.Runtime) {
			if _, ok := nodes[dep.Name]; ok {
				deps = append(deps, dep.Name)
			}
		}
		if node.BuildFromSource {
			for _, dep := range node.Record.DependenciesByClass(formula.Build) {
				if _, ok := nodes[dep.Name]; ok {
					deps = append(deps, dep.Name)
				}
			}
		}
		sort.Strings(deps)
		edges[name] = deps
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(names))
	var order []string
	var cyclePath []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		cyclePath = append(cyclePath, name)
		for _, dep := range edges[name] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				idx := indexOf(cyclePath, dep)
				cycle := append(append([]string{}, cyclePath[idx:]...), dep)
				return &zerobrewerr.ErrDependencyCycle{Names: cycle}
			}
		}
		cyclePath = cyclePath[:len(cyclePath)-1]
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}

	planned := make([]PlannedNode, 0, len(order))
	for _, name := range order {
		planned = append(planned, *nodes[name])
	}
	return planned, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
