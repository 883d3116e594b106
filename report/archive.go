package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// compressFile wraps a single file in a zip archive next to it, swapping the
// extension for .zip. The source file is left in place for the caller.
func compressFile(sourcePath string) (string, error) {
	zipPath := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".zip"

	source, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = source.Close() }()

	archive, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	writer := zip.NewWriter(archive)
	entry, err := writer.Create(filepath.Base(sourcePath))
	if err != nil {
		_ = archive.Close()
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := io.Copy(entry, source); err != nil {
		_ = writer.Close()
		_ = archive.Close()
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("write archive entry: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = archive.Close()
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := archive.Close(); err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return zipPath, nil
}
