package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Restore extracts an archive written by Create into targetDir. Existing
// files are kept unless force is set.
func Restore(ctx context.Context, archivePath, targetDir string, force bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("decompressing archive: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)

	// Ensure target directory exists.
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return fmt.Errorf("creating target directory: %w", err)
	}

	foundDB := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive entry: %w", err)
		}

		if err := validateTarEntry(hdr.Name, targetDir); err != nil {
			return err
		}
		if hdr.Name == DBEntry {
			foundDB = true
		}

		destPath := filepath.Join(targetDir, filepath.Clean(hdr.Name)) //nolint:gosec // checked by validateTarEntry
		if !force {
			if _, err := os.Stat(destPath); err == nil {
				return fmt.Errorf("file already exists (use --force to overwrite): %s", destPath)
			}
		}

		if err := extractFile(tr, destPath, hdr); err != nil {
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
	}

	if !foundDB {
		return fmt.Errorf("invalid backup: archive does not contain %s", DBEntry)
	}

	return nil
}

// validateTarEntry rejects entry names that would land outside targetDir.
func validateTarEntry(name, targetDir string) error {
	if filepath.IsAbs(name) {
		return fmt.Errorf("path traversal detected: absolute path %q", name)
	}

	cleaned := filepath.Clean(name)
	if strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("path traversal detected: %q", name)
	}

	dest := filepath.Join(targetDir, cleaned)
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving target directory: %w", err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving destination path: %w", err)
	}
	if !strings.HasPrefix(absDest, absTarget+string(filepath.Separator)) && absDest != absTarget {
		return fmt.Errorf("path traversal detected: %q resolves outside target", name)
	}

	return nil
}

// extractFile writes one tar entry to disk. Entries other than files and
// directories are skipped.
func extractFile(tr *tar.Reader, destPath string, hdr *tar.Header) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(destPath, 0o750)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
			return err
		}
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer out.Close()

		const maxFileSize = 10 << 30
		if _, err := io.Copy(out, io.LimitReader(tr, maxFileSize)); err != nil {
			return err
		}
		return out.Sync()
	default:
		return nil
	}
}
