package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// ErrNoDataDir is returned when an extracted bundle lacks the expected
// data/ subtree.
var ErrNoDataDir = errors.New("extracted bundle has no data directory")

// DataDirName is the subtree inside a bundle that holds the group
// folders and the metadata table.
const DataDirName = "data"

// Extract unpacks the archive at archivePath into destDir. ZIP and 7z
// bundles are supported, chosen by file extension.
func Extract(archivePath, destDir string) error {
	switch strings.ToLower(filepath.Ext(archivePath)) {
	case ".zip":
		return extractZip(archivePath, destDir)
	case ".7z":
		return extract7z(archivePath, destDir)
	}
	return fmt.Errorf("%w: unsupported archive type %q", ErrPermanent, filepath.Ext(archivePath))
}

func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		destPath, err := securePath(destDir, file.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := extractZipFile(file, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(file *zip.File, destPath string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
	}
	defer rc.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	return nil
}

func extract7z(archivePath, destDir string) error {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		destPath, err := securePath(destDir, file.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := extract7zFile(file, destPath); err != nil {
			return err
		}
	}
	return nil
}

func extract7zFile(file *sevenzip.File, destPath string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
	}
	defer rc.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	return nil
}

// securePath joins an archive entry name under destDir, rejecting
// entries that would escape it.
func securePath(destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: archive entry %q escapes destination", ErrPermanent, name)
	}
	return destPath, nil
}

// FindDataDir locates the data/ subtree of an extracted bundle: either
// directly under root or exactly one directory down (bundles are often
// packed with a wrapping folder).
func FindDataDir(root string) (string, error) {
	direct := filepath.Join(root, DataDirName)
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		return direct, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		nested := filepath.Join(root, e.Name(), DataDirName)
		if info, err := os.Stat(nested); err == nil && info.IsDir() {
			return nested, nil
		}
	}
	return "", ErrNoDataDir
}

// FindTable returns the first CSV file inside dataDir, preferring
// names with the df_ prefix the source pipeline used.
func FindTable(dataDir string) (string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory: %w", err)
	}

	var fallback string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		if strings.HasPrefix(e.Name(), "df_") {
			return filepath.Join(dataDir, e.Name()), nil
		}
		if fallback == "" {
			fallback = filepath.Join(dataDir, e.Name())
		}
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no CSV table found in %s", dataDir)
}
