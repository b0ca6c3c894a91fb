// Package zerobrewerr defines the typed error taxonomy shared across the
// resolver, fetcher, store, linker, and build executor. Callers type-switch
// on these rather than matching error strings.
package zerobrewerr

import "fmt"

// ErrFormulaNotFound is returned when a formula name has no entry in the index.
type ErrFormulaNotFound struct {
	Name string
}

func (e *ErrFormulaNotFound) Error() string {
	return fmt.Sprintf("formula %q not found", e.Name)
}

// ErrPlatformUnsupported is returned when no bottle (and no source fallback)
// is available for a formula on the resolved platform tag.
type ErrPlatformUnsupported struct {
	Name       string
	PlatformTag string
}

func (e *ErrPlatformUnsupported) Error() string {
	return fmt.Sprintf("formula %q has no bottle or source available for platform %q", e.Name, e.PlatformTag)
}

// ErrDependencyCycle is returned when the resolver detects a cycle among
// the given formula names during topological ordering.
type ErrDependencyCycle struct {
	Names []string
}

func (e *ErrDependencyCycle) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %v", e.Names)
}

// ErrChecksumMismatch is returned when a fetched artifact's sha256 does not
// match the expected checksum recorded by the formula/bottle manifest.
type ErrChecksumMismatch struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// ErrNetworkError is returned when a fetch fails for a network-level reason.
type ErrNetworkError struct {
	URL    string
	Detail string
}

func (e *ErrNetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %s", e.URL, e.Detail)
}

// ErrExtractionError is returned when archive extraction fails or is
// rejected by a safety check (path traversal, symlink escape).
type ErrExtractionError struct {
	Archive string
	Detail  string
}

func (e *ErrExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %s", e.Archive, e.Detail)
}

// ErrBuildError is returned when the external build interpreter exits
// non-zero. Tail holds the last lines of its stderr, or of its stdout when
// stderr was empty.
type ErrBuildError struct {
	Name string
	Tail []string
}

func (e *ErrBuildError) Error() string {
	return fmt.Sprintf("build failed for %s", e.Name)
}

// ErrExecutionError wraps failures launching or communicating with the
// external build interpreter process itself (not the build it runs).
type ErrExecutionError struct {
	Detail string
}

func (e *ErrExecutionError) Error() string {
	return fmt.Sprintf("execution error: %s", e.Detail)
}

// ErrConflictedLink is returned when linking a formula's artifacts into the
// prefix would overwrite a symlink owned by a different formula.
type ErrConflictedLink struct {
	Path          string
	ExistingOwner string
}

func (e *ErrConflictedLink) Error() string {
	return fmt.Sprintf("%s is already linked by %s", e.Path, e.ExistingOwner)
}

// ErrStoreCorruption signals bootstrap failures and integrity assertion
// violations in the content-addressed store or installed-set database.
type ErrStoreCorruption struct {
	Detail string
}

func (e *ErrStoreCorruption) Error() string {
	return fmt.Sprintf("store corruption: %s", e.Detail)
}

// ErrFileError is a generic filesystem I/O failure at a core boundary.
type ErrFileError struct {
	Detail string
}

func (e *ErrFileError) Error() string {
	return fmt.Sprintf("file error: %s", e.Detail)
}

// ErrAlreadyInstalled is a signal, not always fatal: install is a no-op
// when the same store key is already present.
type ErrAlreadyInstalled struct {
	Name    string
	Version string
}

func (e *ErrAlreadyInstalled) Error() string {
	return fmt.Sprintf("%s %s is already installed", e.Name, e.Version)
}
