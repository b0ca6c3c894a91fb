package store

import (
	"github.com/Masterminds/semver/v3"
)

// Outdated reports whether availableVersion is newer than installedVersion.
// Both are the upstream component of a formula.Version (no revision/rebuild
// suffix). Versions that parse as semver are compared numerically; when
// either side doesn't parse (not every Homebrew formula uses strict
// semver), this falls back to a plain string inequality.
func Outdated(installedVersion, availableVersion string) bool {
	installed, errInstalled := semver.NewVersion(installedVersion)
	available, errAvailable := semver.NewVersion(availableVersion)

	if errInstalled == nil && errAvailable == nil {
		return available.GreaterThan(installed)
	}

	return installedVersion != availableVersion
}
