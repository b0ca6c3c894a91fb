package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// EnvInterpreter overrides interpreter discovery entirely.
const EnvInterpreter = "ZEROBREW_INTERPRETER"

// interpreterName is the external binary discovered on PATH, distinct from
// the bundled fallback which is invoked by its absolute libexec path.
const interpreterName = "zerobrew-build-shim"

// locateInterpreter returns the path to the interpreter that will execute
// the build shim, trying, in order: ZEROBREW_INTERPRETER, "zerobrew-build-shim"
// on PATH, and the bundled fallback under <root>/libexec. Each candidate
// must exit 0 for "--version" to be accepted.
func locateInterpreter(ctx context.Context, cfg *config.Config) (string, error) {
	var candidates []string
	if v := os.Getenv(EnvInterpreter); v != "" {
		candidates = append(candidates, v)
	}
	if p, err := exec.LookPath(interpreterName); err == nil {
		candidates = append(candidates, p)
	}

	bundled := bundledInterpreterPath(cfg)
	if err := ensureBundledInterpreter(bundled); err == nil {
		candidates = append(candidates, bundled)
	}

	for _, candidate := range candidates {
		if probeInterpreter(ctx, candidate) {
			return candidate, nil
		}
	}

	return "", &zerobrewerr.ErrExecutionError{
		Detail: "no working build interpreter found (tried ZEROBREW_INTERPRETER, zerobrew-build-shim on PATH, and the bundled fallback)",
	}
}

func bundledInterpreterPath(cfg *config.Config) string {
	return filepath.Join(cfg.Root, "libexec", "zerobrew-build-shim")
}

func probeInterpreter(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, path, "--version")
	return cmd.Run() == nil
}
