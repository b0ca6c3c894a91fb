package build

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

//go:embed shim/shim.sh.tmpl
var shimFS embed.FS

const shimTemplateName = "shim/shim.sh.tmpl"
const shimFileName = "zerobrew-build-shim"

// writeShim renders the embedded build-driver template into workDir,
// returning its path. Every build gets its own copy so a concurrent build
// in another work directory never shares (or races on) the same file.
func writeShim(workDir string) (string, error) {
	data, err := shimFS.ReadFile(shimTemplateName)
	if err != nil {
		return "", &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}

	path := filepath.Join(workDir, shimFileName)
	if err := os.WriteFile(path, data, 0755); err != nil {
		return "", &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}
	return path, nil
}

// ensureBundledInterpreter materializes the embedded shim template at path
// (the libexec fallback location) the first time it's needed, so
// locateInterpreter always has a final candidate to probe.
func ensureBundledInterpreter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := shimFS.ReadFile(shimTemplateName)
	if err != nil {
		return &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0755); err != nil {
		return &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &zerobrewerr.ErrExecutionError{Detail: err.Error()}
	}
	return nil
}
