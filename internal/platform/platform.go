// Package platform derives the catalog platform tag used to look up
// bottles (e.g. "arm64_sonoma", "x86_64_linux") from the running host.
package platform

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// macOSCodenames maps a macOS major version to its bottle-tag codename,
// newest first. Homebrew's own platform tags use these codenames rather
// than version numbers.
var macOSCodenames = []struct {
	Major    int
	Codename string
}{
	{26, "tahoe"},
	{15, "sequoia"},
	{14, "sonoma"},
	{13, "ventura"},
	{12, "monterey"},
	{11, "big_sur"},
	{10, "catalina"},
}

// CodenameForVersion returns the bottle-tag codename for a macOS major
// version number, or false if the version is not recognized.
func CodenameForVersion(major int) (string, bool) {
	for _, c := range macOSCodenames {
		if c.Major == major {
			return c.Codename, true
		}
	}
	return "", false
}

// OlderVersions returns the codenames older than the given one within the
// same family, ordered from nearest to oldest. Used by the bottle selector's
// same-arch older-OS fallback (rule 2).
func OlderVersions(codename string) []string {
	idx := -1
	for i, c := range macOSCodenames {
		if c.Codename == codename {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	older := make([]string, 0, len(macOSCodenames)-idx-1)
	for _, c := range macOSCodenames[idx+1:] {
		older = append(older, c.Codename)
	}
	return older
}

// Arch returns the bottle-tag architecture component: "arm64" or "x86_64".
func Arch() string {
	switch runtime.GOARCH {
	case "arm64":
		return "arm64"
	case "amd64":
		return "x86_64"
	default:
		return runtime.GOARCH
	}
}

// DetectTag returns the catalog platform tag for the running host, e.g.
// "arm64_sonoma" on Apple Silicon Sonoma, "x86_64_linux" on an Intel Linux
// host. Linux bottle tags are arch-qualified but not distro-specific:
// Homebrew's Linux bottles target glibc uniformly, not a package-manager
// family.
func DetectTag() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		major, err := macOSMajorVersion()
		if err != nil {
			return "", fmt.Errorf("failed to detect macOS version: %w", err)
		}
		codename, ok := CodenameForVersion(major)
		if !ok {
			return "", fmt.Errorf("unrecognized macOS major version %d", major)
		}
		return Arch() + "_" + codename, nil
	case "linux":
		return Arch() + "_linux", nil
	default:
		return "", fmt.Errorf("unsupported operating system %q", runtime.GOOS)
	}
}

func macOSMajorVersion() (int, error) {
	out, err := exec.Command("sw_vers", "-productVersion").Output()
	if err != nil {
		return 0, err
	}
	version := strings.TrimSpace(string(out))
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("unparsable macOS version %q: %w", version, err)
	}
	return n, nil
}
