// Package bottle selects the best-matching bottle artifact for a formula on
// a given platform tag, following Homebrew's own fallback cascade.
package bottle

import (
	"strings"

	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/platform"
)

// allTag is the catalog key for an architecture-independent bottle.
const allTag = "all"

// Outcome classifies the result of selecting a bottle for a formula.
type Outcome int

const (
	// Selected means Entry holds a usable bottle.
	Selected Outcome = iota
	// BuildFromSource means no bottle matched but a source URL exists.
	BuildFromSource
	// Unsupported means neither a bottle nor a source fallback exists.
	Unsupported
)

// Result is the outcome of selecting a bottle for a formula and platform.
type Result struct {
	Outcome Outcome
	Entry   formula.BottleEntry
}

// Select implements the 5-rule bottle selection cascade:
//  1. Exact platform tag match.
//  2. Same CPU arch, walking the platform's older-OS-version list from
//     newest to oldest, first catalog hit wins.
//  3. An "all" (architecture-independent) bottle.
//  4. No match, but a source URL exists: build from source.
//  5. Otherwise: unsupported.
func Select(rec *formula.Record, platformTag string) Result {
	if entry, ok := rec.Bottle(platformTag); ok {
		return Result{Outcome: Selected, Entry: entry}
	}

	if entry, ok := selectOlderOS(rec, platformTag); ok {
		return Result{Outcome: Selected, Entry: entry}
	}

	if entry, ok := rec.Bottle(allTag); ok {
		return Result{Outcome: Selected, Entry: entry}
	}

	if rec.SourceURL != "" {
		return Result{Outcome: BuildFromSource}
	}

	return Result{Outcome: Unsupported}
}

// Available reports whether Select would find a usable bottle, satisfying
// resolver.BottleAvailability.
func Available(rec *formula.Record, platformTag string) bool {
	return Select(rec, platformTag).Outcome == Selected
}

// selectOlderOS implements rule 2: same arch, next-older OS version within
// the same family, walking newest-to-oldest until the catalog has an entry.
func selectOlderOS(rec *formula.Record, platformTag string) (formula.BottleEntry, bool) {
	arch, codename, ok := splitTag(platformTag)
	if !ok {
		return formula.BottleEntry{}, false
	}
	for _, older := range platform.OlderVersions(codename) {
		if entry, ok := rec.Bottle(arch + "_" + older); ok {
			return entry, true
		}
	}
	return formula.BottleEntry{}, false
}

// knownArches lists recognized arch prefixes, longest first so "x86_64"
// isn't mistaken for a truncated match against "x86".
var knownArches = []string{"x86_64", "arm64"}

// splitTag splits a platform tag like "arm64_sonoma" into ("arm64",
// "sonoma"). Returns ok=false for tags with no recognized codename
// component (e.g. Linux's "x86_64_linux", which has no OS-version axis).
func splitTag(tag string) (arch, codename string, ok bool) {
	for _, a := range knownArches {
		prefix := a + "_"
		if strings.HasPrefix(tag, prefix) {
			codename = tag[len(prefix):]
			if codename == "linux" {
				return "", "", false
			}
			return a, codename, true
		}
	}
	return "", "", false
}
