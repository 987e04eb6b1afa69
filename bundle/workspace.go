package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the scratch area for one load attempt: the downloaded
// archive and its extraction tree. Close removes everything, so a
// failed load never leaks disk space into the next attempt.
type Workspace struct {
	Dir         string
	ArchivePath string
	ExtractDir  string
}

// NewWorkspace creates a uniquely named scratch directory under the
// system temp dir. The archive keeps the locator's own filename so the
// extractor can tell the format from the extension.
func NewWorkspace(locator string) (*Workspace, error) {
	dir := filepath.Join(os.TempDir(), "ageset-"+uuid.New().String())
	extractDir := filepath.Join(dir, "extracted")
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{
		Dir:         dir,
		ArchivePath: filepath.Join(dir, ArchiveName(locator)),
		ExtractDir:  extractDir,
	}, nil
}

// Close removes the workspace tree. Safe to call more than once.
func (w *Workspace) Close() error {
	if w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}
