// Package manifest parses and dumps the line-oriented bundle format used by
// `zerobrew bundle install`/`zerobrew bundle dump`.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// Parse reads a bundle manifest and returns the ordered, deduplicated list
// of tokens it names. A `brew "X"` line yields "X". A `cask "X"` line
// yields "cask:X". A `tap "X"` line is ignored. Any other non-empty token
// on a line is taken verbatim as a formula name. Blank lines, lines
// starting with `#`, and inline `#` comments are ignored. An empty result
// is a file error: a manifest naming nothing is not useful bundle input.
func Parse(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		name, ok := parseLine(line)
		if !ok {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, &zerobrewerr.ErrFileError{Detail: err.Error()}
	}

	if len(names) == 0 {
		return nil, &zerobrewerr.ErrFileError{Detail: "manifest names no formulas"}
	}
	return names, nil
}

// stripComment removes an inline `#` comment, respecting neither escaping
// nor quoting beyond what the grammar needs: a `#` only ever appears as a
// comment marker in this format, never inside a formula name.
func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// parseLine classifies a single non-empty, comment-stripped line.
func parseLine(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}

	switch fields[0] {
	case "tap":
		return "", false
	case "brew":
		if len(fields) < 2 {
			return "", false
		}
		return unquote(fields[1]), true
	case "cask":
		if len(fields) < 2 {
			return "", false
		}
		return "cask:" + unquote(fields[1]), true
	default:
		return unquote(fields[0]), true
	}
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

// Dump renders names as a bundle manifest: one `brew "name"` line per
// formula name, one `cask "name"` line per "cask:name" token, in the order
// given. Round-tripping Dump through Parse yields the same set of names.
func Dump(w io.Writer, names []string) error {
	bw := bufio.NewWriter(w)
	for _, name := range names {
		var line string
		if rest, ok := strings.CutPrefix(name, "cask:"); ok {
			line = fmt.Sprintf("cask %q\n", rest)
		} else {
			line = fmt.Sprintf("brew %q\n", name)
		}
		if _, err := bw.WriteString(line); err != nil {
			return &zerobrewerr.ErrFileError{Detail: err.Error()}
		}
	}
	return bw.Flush()
}
