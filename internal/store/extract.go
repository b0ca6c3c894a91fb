package store

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"

	"github.com/zerobrew/zerobrew/internal/zerobrewerr"
)

// isPathWithinDirectory reports whether targetPath is contained in basePath,
// resolving both to absolute paths first.
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}

// validateSymlinkTarget rejects symlinks that would escape destPath, either
// directly (an absolute target) or via the relative path they resolve to.
func validateSymlinkTarget(linkTarget, linkLocation, destPath string) error {
	if filepath.IsAbs(linkTarget) {
		return fmt.Errorf("absolute symlink targets are not allowed: %s -> %s", linkLocation, linkTarget)
	}

	resolvedTarget := filepath.Join(filepath.Dir(linkLocation), linkTarget)
	if !isPathWithinDirectory(resolvedTarget, destPath) {
		return fmt.Errorf("symlink target escapes destination directory: %s -> %s (resolves to %s)",
			linkLocation, linkTarget, resolvedTarget)
	}
	return nil
}

// atomicSymlink creates a symlink via a temporary path plus rename, so a
// concurrent reader never observes a half-created link.
func atomicSymlink(target, linkPath string) error {
	tmpLink := linkPath + ".tmp"
	os.Remove(tmpLink)

	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, linkPath); err != nil {
		os.Remove(tmpLink)
		return err
	}
	return nil
}

// detectArchiveFormat guesses a bottle archive's format from its filename.
// Homebrew bottles are published as tar.gz almost universally; the other
// formats are supported for completeness against the wider package corpus.
func detectArchiveFormat(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"), strings.HasSuffix(lower, ".tbz"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return "tar.zst"
	case strings.HasSuffix(lower, ".tar.lz"), strings.HasSuffix(lower, ".tlz"):
		return "tar.lz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	default:
		return "tar.gz"
	}
}

// ExtractArchive extracts archivePath into destPath, rejecting any entry
// that would escape destPath via path traversal or a symlink pointing
// outside the tree. Shared by the store (bottle materialization) and the
// build executor (source tarball staging).
func ExtractArchive(archivePath, destPath string) error {
	return extractArchive(archivePath, destPath)
}

func extractArchive(archivePath, destPath string) error {
	format := detectArchiveFormat(archivePath)

	file, err := os.Open(archivePath)
	if err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
	}
	defer file.Close()

	var tr *tar.Reader
	switch format {
	case "tar.gz":
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}
		defer gzr.Close()
		tr = tar.NewReader(gzr)
	case "tar.xz":
		xzr, err := xz.NewReader(file)
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}
		tr = tar.NewReader(xzr)
	case "tar.bz2":
		tr = tar.NewReader(bzip2.NewReader(file))
	case "tar.zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}
		defer zr.Close()
		tr = tar.NewReader(zr)
	case "tar.lz":
		lr, err := lzip.NewReader(file)
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}
		tr = tar.NewReader(lr)
	case "tar":
		tr = tar.NewReader(file)
	case "zip":
		return extractZip(archivePath, destPath)
	default:
		return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: fmt.Sprintf("unsupported archive format: %s", format)}
	}

	return extractTarReader(tr, archivePath, destPath)
}

func extractTarReader(tr *tar.Reader, archiveName, destPath string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
		}

		relativePath := strings.TrimPrefix(header.Name, "./")
		target := filepath.Join(destPath, relativePath)

		if !isPathWithinDirectory(target, destPath) {
			return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: fmt.Sprintf("archive entry escapes destination directory: %s", header.Name)}
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
			f.Close()

		case tar.TypeSymlink:
			if err := validateSymlinkTarget(header.Linkname, target, destPath); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
			if err := atomicSymlink(header.Linkname, target); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archiveName, Detail: err.Error()}
			}
		}
	}

	return nil
}

func extractZip(archivePath, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
	}
	defer r.Close()

	for _, f := range r.File {
		relativePath := strings.TrimPrefix(f.Name, "./")
		target := filepath.Join(destPath, relativePath)

		if !isPathWithinDirectory(target, destPath) {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: fmt.Sprintf("zip entry escapes destination directory: %s", f.Name)}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}

		rc, err := f.Open()
		if err != nil {
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}

		outFile, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			outFile.Close()
			rc.Close()
			return &zerobrewerr.ErrExtractionError{Archive: archivePath, Detail: err.Error()}
		}
		outFile.Close()
		rc.Close()
	}

	return nil
}
