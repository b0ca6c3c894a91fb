package functional

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// aCleanZerobrewEnvironment is a no-op: the Before hook already provisioned
// a fresh home directory and fixture index. This step exists so feature
// files read naturally.
func aCleanZerobrewEnvironment(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

// iRun executes a command string, replacing a leading "zerobrew" with the
// test binary path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "zerobrew" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = state.homeDir

	env := append(os.Environ(),
		"ZEROBREW_ROOT="+filepath.Join(state.homeDir, "root"),
		"ZEROBREW_PREFIX="+filepath.Join(state.homeDir, "prefix"),
		"ZEROBREW_INDEX_URL="+state.indexURL,
		"ZEROBREW_AUTO_INIT=true",
		"ZEROBREW_QUIET=1",
	)
	cmd.Env = env

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			state.exitCode = exitErr.ExitCode()
		} else {
			return ctx, fmt.Errorf("command execution failed: %w", err)
		}
	} else {
		state.exitCode = 0
	}

	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", fullPath)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); err == nil {
		return fmt.Errorf("expected file %q not to exist", fullPath)
	}
	return nil
}

func aFileNamedWith(ctx context.Context, name, content string) error {
	state := getState(ctx)
	return os.WriteFile(filepath.Join(state.homeDir, name), []byte(content), 0644)
}

func theFileIsASymlinkTo(ctx context.Context, path, target string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	fullTarget := filepath.Join(state.homeDir, target)

	actual, err := os.Readlink(fullPath)
	if err != nil {
		return fmt.Errorf("expected %q to be a symlink: %w", fullPath, err)
	}
	if actual != fullTarget {
		return fmt.Errorf("expected %q to link to %q, got %q", fullPath, fullTarget, actual)
	}
	return nil
}
