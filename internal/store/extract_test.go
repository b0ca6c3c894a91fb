package store

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeRawTarGz(t *testing.T, path string, headers []tar.Header, contents []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	for i, hdr := range headers {
		h := hdr
		if h.Typeflag == tar.TypeReg {
			h.Size = int64(len(contents[i]))
		}
		if err := tw.WriteHeader(&h); err != nil {
			t.Fatalf("WriteHeader() error: %v", err)
		}
		if h.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(contents[i])); err != nil {
				t.Fatalf("Write() error: %v", err)
			}
		}
	}

	tw.Close()
	gzw.Close()
}

func TestExtractArchiveRejectsPathTraversal(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeRawTarGz(t, archivePath,
		[]tar.Header{{Name: "../../etc/passwd", Typeflag: tar.TypeReg, Mode: 0644}},
		[]string{"pwned"})

	dest := t.TempDir()
	if err := extractArchive(archivePath, dest); err == nil {
		t.Fatal("extractArchive() succeeded on a path-traversal entry, want error")
	}
}

func TestExtractArchiveRejectsAbsoluteSymlink(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeRawTarGz(t, archivePath,
		[]tar.Header{{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd", Mode: 0777}},
		[]string{""})

	dest := t.TempDir()
	if err := extractArchive(archivePath, dest); err == nil {
		t.Fatal("extractArchive() succeeded on an absolute symlink target, want error")
	}
}

func TestExtractArchiveRejectsEscapingSymlink(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	writeRawTarGz(t, archivePath,
		[]tar.Header{{Name: "sub/link", Typeflag: tar.TypeSymlink, Linkname: "../../../etc/passwd", Mode: 0777}},
		[]string{""})

	dest := t.TempDir()
	if err := extractArchive(archivePath, dest); err == nil {
		t.Fatal("extractArchive() succeeded on an escaping relative symlink, want error")
	}
}

func TestExtractArchiveExtractsRegularFiles(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "ok.tar.gz")
	writeRawTarGz(t, archivePath,
		[]tar.Header{
			{Name: "pkg/", Typeflag: tar.TypeDir, Mode: 0755},
			{Name: "pkg/bin/tool", Typeflag: tar.TypeReg, Mode: 0755},
		},
		[]string{"", "binary contents"})

	dest := t.TempDir()
	if err := extractArchive(archivePath, dest); err != nil {
		t.Fatalf("extractArchive() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "pkg", "bin", "tool"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "binary contents" {
		t.Errorf("content = %q, want %q", data, "binary contents")
	}
}

func TestDetectArchiveFormat(t *testing.T) {
	cases := map[string]string{
		"x.tar.gz":  "tar.gz",
		"x.tgz":     "tar.gz",
		"x.tar.xz":  "tar.xz",
		"x.tar.bz2": "tar.bz2",
		"x.zip":     "zip",
		"x.tar":     "tar",
		"x.unknown": "tar.gz",
	}
	for name, want := range cases {
		if got := detectArchiveFormat(name); got != want {
			t.Errorf("detectArchiveFormat(%q) = %q, want %q", name, got, want)
		}
	}
}
