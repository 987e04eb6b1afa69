// Package imageindex maps (folder, filename) pairs to absolute image
// paths, built once per loaded dataset by scanning the bundle's group
// folders. The index is immutable after construction.
package imageindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hunsao/ageset/dataset"
)

// ErrNoImages is returned when no configured folder yields any image.
var ErrNoImages = errors.New("no images found in any group folder")

// AcceptedSuffixes lists the filename suffixes treated as images,
// matched case-insensitively.
var AcceptedSuffixes = []string{".jpg", ".jpeg"}

// Index is the one-time lookup from (folder, filename) to path.
type Index struct {
	// folders maps folder name -> filename -> absolute path.
	folders map[string]map[string]string
	// names keeps each folder's listing in natural-sorted order for
	// deterministic display.
	names    map[string][]string
	total    int
	warnings []string
}

// Build scans each configured group folder under root. A folder that is
// missing or empty is a warning, not an error; zero images across every
// folder is fatal.
func Build(root string, folders dataset.GroupFolders) (*Index, error) {
	idx := &Index{
		folders: make(map[string]map[string]string, len(folders)),
		names:   make(map[string][]string, len(folders)),
	}

	for _, group := range folders.Groups() {
		folder := folders[group]
		dir := filepath.Join(root, folder)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				idx.warnings = append(idx.warnings, fmt.Sprintf("image folder %q not found", folder))
				idx.folders[folder] = map[string]string{}
				continue
			}
			return nil, fmt.Errorf("failed to read image folder %s: %w", dir, err)
		}

		byName := make(map[string]string, len(entries))
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !IsImageName(e.Name()) {
				continue
			}
			byName[e.Name()] = filepath.Join(dir, e.Name())
			names = append(names, e.Name())
		}
		dataset.SortNatural(names)

		if len(names) == 0 {
			idx.warnings = append(idx.warnings, fmt.Sprintf("image folder %q is empty", folder))
		}
		idx.folders[folder] = byName
		idx.names[folder] = names
		idx.total += len(names)
	}

	if idx.total == 0 {
		return nil, ErrNoImages
	}
	return idx, nil
}

// IsImageName reports whether name carries an accepted image suffix.
func IsImageName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range AcceptedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Resolve returns the absolute path for filename inside folder.
func (idx *Index) Resolve(folder, filename string) (string, bool) {
	byName, ok := idx.folders[folder]
	if !ok {
		return "", false
	}
	path, ok := byName[filename]
	return path, ok
}

// Names returns folder's listing in natural-sorted order. The returned
// slice is read-only.
func (idx *Index) Names(folder string) []string {
	return idx.names[folder]
}

// Total returns the number of indexed images across all folders.
func (idx *Index) Total() int {
	return idx.total
}

// Warnings returns the non-fatal conditions observed during Build.
func (idx *Index) Warnings() []string {
	return idx.warnings
}
