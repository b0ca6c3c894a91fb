// Package config resolves the on-disk layout and tunables for a zerobrew
// root: the content-addressed store, installed-set database, fetch cache,
// lock directory, and prefix (the Cellar-backed symlink target). Layering
// is file < environment < CLI flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvRoot overrides the zerobrew root directory.
	EnvRoot = "ZEROBREW_ROOT"

	// EnvPrefix overrides the prefix directory linked packages install into.
	EnvPrefix = "ZEROBREW_PREFIX"

	// EnvConcurrency overrides the scheduler's maximum concurrent build/link count.
	EnvConcurrency = "ZEROBREW_CONCURRENCY"

	// EnvAutoInit lets non-interactive callers skip the first-run confirmation.
	EnvAutoInit = "ZEROBREW_AUTO_INIT"

	// EnvIndexURL overrides the formula index URL.
	EnvIndexURL = "ZEROBREW_INDEX_URL"

	// EnvIndexTTL overrides how long a cached index is considered fresh.
	EnvIndexTTL = "ZEROBREW_INDEX_TTL"

	// EnvAPITimeout overrides the HTTP client timeout used for index and bottle fetches.
	EnvAPITimeout = "ZEROBREW_API_TIMEOUT"

	// DefaultConcurrency is the default scheduler concurrency.
	DefaultConcurrency = 4

	// DefaultIndexURL is the formula index used when none is configured.
	DefaultIndexURL = "https://formulae.brew.sh/api/formula.json"

	// DefaultIndexTTL is how long a cached index is considered fresh.
	DefaultIndexTTL = 1 * time.Hour

	// DefaultAPITimeout is the default timeout for index and bottle HTTP requests.
	DefaultAPITimeout = 30 * time.Second
)

// Config holds a resolved zerobrew root layout and its tunables.
type Config struct {
	Root   string // $ZEROBREW_ROOT
	Prefix string // $ZEROBREW_PREFIX

	StoreDir  string // $ZEROBREW_ROOT/store
	DBDir     string // $ZEROBREW_ROOT/db
	CacheDir  string // $ZEROBREW_ROOT/cache
	LocksDir  string // $ZEROBREW_ROOT/locks
	CellarDir string // $ZEROBREW_PREFIX/Cellar
	TmpDir    string // $ZEROBREW_PREFIX/tmp/build

	ConfigFile string // $ZEROBREW_ROOT/config.toml

	Concurrency int
	AutoInit    bool
	IndexURL    string
}

// fileOverrides is the subset of Config settable from config.toml.
type fileOverrides struct {
	Concurrency int    `toml:"concurrency"`
	AutoInit    bool   `toml:"auto_init"`
	IndexURL    string `toml:"index_url"`
}

// newConfig builds a Config with derived paths for the given root and
// prefix, populated with defaults. It does not read files or environment.
func newConfig(root, prefix string) *Config {
	return &Config{
		Root:   root,
		Prefix: prefix,

		StoreDir:  filepath.Join(root, "store"),
		DBDir:     filepath.Join(root, "db"),
		CacheDir:  filepath.Join(root, "cache"),
		LocksDir:  filepath.Join(root, "locks"),
		CellarDir: filepath.Join(prefix, "Cellar"),
		TmpDir:    filepath.Join(prefix, "tmp", "build"),

		ConfigFile: filepath.Join(root, "config.toml"),

		Concurrency: DefaultConcurrency,
		AutoInit:    false,
		IndexURL:    DefaultIndexURL,
	}
}

// DefaultConfig resolves a Config from ZEROBREW_ROOT/ZEROBREW_PREFIX (or
// ~/.zerobrew / <root>/prefix fallbacks), then layers config.toml and
// environment overrides on top.
func DefaultConfig() (*Config, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".zerobrew")
	}

	prefix := os.Getenv(EnvPrefix)
	if prefix == "" {
		prefix = filepath.Join(root, "prefix")
	}

	cfg := newConfig(root, prefix)
	cfg.applyFile()
	cfg.applyEnv()

	return cfg, nil
}

// applyFile layers config.toml settings on top of the current values. A
// missing file is not an error; the zerobrew root may not be initialized yet.
func (c *Config) applyFile() {
	var overrides fileOverrides
	if _, err := toml.DecodeFile(c.ConfigFile, &overrides); err != nil {
		return
	}

	if overrides.Concurrency > 0 {
		c.Concurrency = overrides.Concurrency
	}
	if overrides.AutoInit {
		c.AutoInit = true
	}
	if overrides.IndexURL != "" {
		c.IndexURL = overrides.IndexURL
	}
}

// applyEnv layers environment variable overrides on top of the current
// values, taking precedence over config.toml.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRoot); v != "" {
		c.Root = v
	}
	if v := os.Getenv(EnvPrefix); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv(EnvConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Concurrency = n
		}
	}
	if v := os.Getenv(EnvAutoInit); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			c.AutoInit = true
		case "false", "0", "no", "off":
			c.AutoInit = false
		}
	}
	if v := os.Getenv(EnvIndexURL); v != "" {
		c.IndexURL = v
	}
}

// EnsureDirectories creates every directory this Config's layout references,
// including the prefix's bin/lib symlink targets.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Root,
		c.StoreDir,
		c.DBDir,
		c.CacheDir,
		c.LocksDir,
		c.Prefix,
		c.CellarDir,
		c.TmpDir,
		filepath.Join(c.Prefix, "bin"),
		filepath.Join(c.Prefix, "lib"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// KegDir returns the committed store directory for a store key.
func (c *Config) KegDir(storeKey string) string {
	return filepath.Join(c.StoreDir, storeKey)
}

// KegTmpDir returns the in-progress materialization directory for a store
// key, renamed into KegDir on successful commit.
func (c *Config) KegTmpDir(storeKey string) string {
	return filepath.Join(c.StoreDir, storeKey+".tmp")
}

// CellarPath returns the Cellar directory for a formula name and version,
// the link source for Homebrew-style relocatable installs.
func (c *Config) CellarPath(name, version string) string {
	return filepath.Join(c.CellarDir, name, version)
}

// BuildWorkDir returns the scratch directory a build executor run for name
// operates in.
func (c *Config) BuildWorkDir(name string) string {
	return filepath.Join(c.TmpDir, name)
}

// DBPath returns the installed-set sqlite database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, "installed.sqlite3")
}

// LockPath returns the process-wide install lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.LocksDir, "install.lock")
}

// GetIndexTTL returns the configured index freshness TTL from
// ZEROBREW_INDEX_TTL, clamped to a 1 minute to 24 hour range. Invalid or
// unset values fall back to DefaultIndexTTL.
func GetIndexTTL() time.Duration {
	v := os.Getenv(EnvIndexTTL)
	if v == "" {
		return DefaultIndexTTL
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return DefaultIndexTTL
	}

	if d < time.Minute {
		return time.Minute
	}
	if d > 24*time.Hour {
		return 24 * time.Hour
	}
	return d
}

// GetAPITimeout returns the configured HTTP client timeout from
// ZEROBREW_API_TIMEOUT. Invalid or unset values fall back to DefaultAPITimeout.
func GetAPITimeout() time.Duration {
	v := os.Getenv(EnvAPITimeout)
	if v == "" {
		return DefaultAPITimeout
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return DefaultAPITimeout
	}
	return d
}
