package build

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteShimIsExecutable(t *testing.T) {
	dir := t.TempDir()
	path, err := writeShim(dir)
	if err != nil {
		t.Fatalf("writeShim() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Mode()&0111 == 0 {
		t.Error("expected shim to be executable")
	}
}

func TestEnsureBundledInterpreterIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libexec", "zerobrew-build-shim")

	if err := ensureBundledInterpreter(path); err != nil {
		t.Fatalf("first ensureBundledInterpreter() error: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	if err := ensureBundledInterpreter(path); err != nil {
		t.Fatalf("second ensureBundledInterpreter() error: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}

	if string(first) != string(second) {
		t.Error("expected bundled interpreter contents to be stable across calls")
	}
}
