// Package errmsg turns the core error taxonomy into actionable,
// suggestion-bearing messages for the CLI boundary.
package errmsg

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// Format returns a formatted error message with possible causes and
// suggestions. Recognized errors are type-switched against the core error
// taxonomy; anything else falls back to the bare error string.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var notFound *zerobrewerr.ErrFormulaNotFound
	if errors.As(err, &notFound) {
		return formatFormulaNotFound(notFound)
	}

	var unsupported *zerobrewerr.ErrPlatformUnsupported
	if errors.As(err, &unsupported) {
		return formatPlatformUnsupported(unsupported)
	}

	var cycle *zerobrewerr.ErrDependencyCycle
	if errors.As(err, &cycle) {
		return formatDependencyCycle(cycle)
	}

	var checksum *zerobrewerr.ErrChecksumMismatch
	if errors.As(err, &checksum) {
		return formatChecksumMismatch(checksum)
	}

	var netErr *zerobrewerr.ErrNetworkError
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr)
	}

	var extract *zerobrewerr.ErrExtractionError
	if errors.As(err, &extract) {
		return formatExtractionError(extract)
	}

	var build *zerobrewerr.ErrBuildError
	if errors.As(err, &build) {
		return formatBuildError(build)
	}

	var exec *zerobrewerr.ErrExecutionError
	if errors.As(err, &exec) {
		return formatExecutionError(exec)
	}

	var link *zerobrewerr.ErrConflictedLink
	if errors.As(err, &link) {
		return formatConflictedLink(link)
	}

	var corruption *zerobrewerr.ErrStoreCorruption
	if errors.As(err, &corruption) {
		return formatStoreCorruption(corruption)
	}

	var file *zerobrewerr.ErrFileError
	if errors.As(err, &file) {
		return formatFileError(file)
	}

	var already *zerobrewerr.ErrAlreadyInstalled
	if errors.As(err, &already) {
		return already.Error()
	}

	// Fall back to a generic net.Error check for network failures that
	// weren't wrapped in ErrNetworkError (e.g. raw transport errors).
	var timeoutErr net.Error
	if errors.As(err, &timeoutErr) {
		return formatGenericNetError(timeoutErr)
	}

	return err.Error()
}

func formatFormulaNotFound(e *zerobrewerr.ErrFormulaNotFound) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Typo in the formula name\n")
	sb.WriteString("  - The formula index is stale\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString(fmt.Sprintf("  - Run 'zerobrew info %s' with a corrected name\n", e.Name))
	sb.WriteString("  - Remove index.json and index.json.meta from the zerobrew cache directory to force a fresh index download\n")
	return sb.String()
}

func formatPlatformUnsupported(e *zerobrewerr.ErrPlatformUnsupported) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - No bottle is published for this platform\n")
	sb.WriteString("  - The formula has no source fallback\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString(fmt.Sprintf("  - Check upstream for a %s bottle for %s\n", e.PlatformTag, e.Name))
	return sb.String()
}

func formatDependencyCycle(e *zerobrewerr.ErrDependencyCycle) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - The formula index contains a circular dependency\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Report the cycle upstream: " + strings.Join(e.Names, " -> ") + "\n")
	return sb.String()
}

func formatChecksumMismatch(e *zerobrewerr.ErrChecksumMismatch) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - A corrupted or truncated download\n")
	sb.WriteString("  - A stale formula index pointing at a replaced artifact\n")
	sb.WriteString("  - A compromised mirror\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Clear the fetch cache and retry\n")
	sb.WriteString("  - Remove index.json and index.json.meta from the zerobrew cache directory to force a fresh index download\n")
	return sb.String()
}

func formatNetworkError(e *zerobrewerr.ErrNetworkError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Firewall or proxy blocking the connection\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatGenericNetError(err net.Error) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
	}
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatExtractionError(e *zerobrewerr.ErrExtractionError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - The archive is corrupted\n")
	sb.WriteString("  - The archive attempted a path traversal or symlink escape and was rejected\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Clear the fetch cache and retry\n")
	return sb.String()
}

func formatBuildError(e *zerobrewerr.ErrBuildError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n")
	if len(e.Tail) > 0 {
		sb.WriteString("\nLast output:\n")
		for _, line := range e.Tail {
			sb.WriteString("  " + line + "\n")
		}
	}
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString(fmt.Sprintf("  - Inspect the build log above for %s's failure\n", e.Name))
	sb.WriteString("  - Check that build dependencies are installed\n")
	return sb.String()
}

func formatExecutionError(e *zerobrewerr.ErrExecutionError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - The build interpreter is not installed or not on PATH\n")
	sb.WriteString("  - ZEROBREW_INTERPRETER points at a missing or non-executable file\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Set ZEROBREW_INTERPRETER to a valid interpreter path\n")
	return sb.String()
}

func formatConflictedLink(e *zerobrewerr.ErrConflictedLink) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Another formula already owns this path in the prefix\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString(fmt.Sprintf("  - Run 'zerobrew uninstall %s' if you no longer need it\n", e.ExistingOwner))
	return sb.String()
}

func formatStoreCorruption(e *zerobrewerr.ErrStoreCorruption) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - The store or installed-set database was modified outside zerobrew\n")
	sb.WriteString("  - A previous run was interrupted mid-commit\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Run 'zerobrew gc' to remove unreferenced store entries\n")
	sb.WriteString("  - As a last resort, 'zerobrew reset' rebuilds the store from scratch\n")
	return sb.String()
}

func formatFileError(e *zerobrewerr.ErrFileError) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on the zerobrew root directory\n")
	sb.WriteString("  - Disk full or filesystem read-only\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions and free space on the zerobrew root\n")
	return sb.String()
}
