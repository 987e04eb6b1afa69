package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hunsao/ageset/dataset"
	"github.com/hunsao/ageset/imageindex"
)

func buildFixture(t *testing.T) (*imageindex.Index, string) {
	t.Helper()
	root := t.TempDir()
	oldDir := filepath.Join(root, "OLD")
	if err := os.MkdirAll(oldDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(oldDir, "img1.jpg"), []byte("old-one-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	youngDir := filepath.Join(root, "YOUNG")
	if err := os.MkdirAll(youngDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(youngDir, "img2.jpg"), []byte("young-two-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	idx, err := imageindex.Build(root, dataset.DefaultGroupFolders())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return idx, root
}

func record(id, filename, group string) dataset.Record {
	return dataset.Record{ID: id, ResolvedFilename: filename, Group: group}
}

func readEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = content
	}
	return entries
}

// TestArchiveRoundTrip tests that archived entries carry the source bytes
func TestArchiveRoundTrip(t *testing.T) {
	idx, _ := buildFixture(t)
	rows := []dataset.Record{
		record("1", "img1.jpg", "old"),
		record("2", "img2.jpg", "young"),
	}

	var buf bytes.Buffer
	report, err := Archive(context.Background(), rows, idx, dataset.DefaultGroupFolders(), &buf)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if report.Exported != 2 || len(report.Skipped) != 0 {
		t.Errorf("report = %+v, want 2 exported, 0 skipped", report)
	}

	entries := readEntries(t, buf.Bytes())
	if got := entries["OLD/img1.jpg"]; !bytes.Equal(got, []byte("old-one-bytes")) {
		t.Errorf("OLD/img1.jpg = %q", got)
	}
	if got := entries["YOUNG/img2.jpg"]; !bytes.Equal(got, []byte("young-two-bytes")) {
		t.Errorf("YOUNG/img2.jpg = %q", got)
	}
}

// TestArchiveSkips tests per-row skip accounting
func TestArchiveSkips(t *testing.T) {
	idx, _ := buildFixture(t)
	rows := []dataset.Record{
		record("1", "img1.jpg", "old"),
		record("2", "gone.jpg", "old"),     // not on disk
		record("3", "img1.jpg", "elderly"), // unmapped group
	}

	var buf bytes.Buffer
	report, err := Archive(context.Background(), rows, idx, dataset.DefaultGroupFolders(), &buf)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if report.Exported != 1 {
		t.Errorf("Exported = %d, want 1", report.Exported)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("Skipped = %+v, want 2 entries", report.Skipped)
	}
	if report.Skipped[0].ID != "2" || report.Skipped[0].Reason != ReasonMissingImage {
		t.Errorf("skip[0] = %+v", report.Skipped[0])
	}
	if report.Skipped[1].ID != "3" || report.Skipped[1].Reason != ReasonUnmappedGroup {
		t.Errorf("skip[1] = %+v", report.Skipped[1])
	}
}

// TestArchiveDedup tests that duplicate (filename, group) pairs archive once
func TestArchiveDedup(t *testing.T) {
	idx, _ := buildFixture(t)
	rows := []dataset.Record{
		record("1", "img1.jpg", "old"),
		record("2", "img1.jpg", "old"),
	}

	var buf bytes.Buffer
	report, err := Archive(context.Background(), rows, idx, dataset.DefaultGroupFolders(), &buf)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if report.Exported != 1 {
		t.Errorf("Exported = %d, want 1", report.Exported)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("duplicate counted as skip: %+v", report.Skipped)
	}
	if entries := readEntries(t, buf.Bytes()); len(entries) != 1 {
		t.Errorf("archive has %d entries, want 1", len(entries))
	}
}

// TestArchiveEmptyView tests that an empty view yields a valid empty archive
func TestArchiveEmptyView(t *testing.T) {
	idx, _ := buildFixture(t)

	var buf bytes.Buffer
	report, err := Archive(context.Background(), nil, idx, dataset.DefaultGroupFolders(), &buf)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if report.Exported != 0 || len(report.Skipped) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
	if entries := readEntries(t, buf.Bytes()); len(entries) != 0 {
		t.Errorf("empty view produced entries: %v", entries)
	}
}

// TestArchiveCancellation tests the per-row cancellation check
func TestArchiveCancellation(t *testing.T) {
	idx, _ := buildFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	_, err := Archive(ctx, []dataset.Record{record("1", "img1.jpg", "old")}, idx, dataset.DefaultGroupFolders(), &buf)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// TestGroupScenario tests the filter-then-export scenario end to end
func TestGroupScenario(t *testing.T) {
	// Folder for "old" has one matching and one missing image.
	idx, _ := buildFixture(t)
	rows := []dataset.Record{
		record("1", "img1.jpg", "old"),
		record("3", "img9.jpg", "old"),
	}

	var buf bytes.Buffer
	report, err := Archive(context.Background(), rows, idx, dataset.DefaultGroupFolders(), &buf)
	if err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	if report.Exported != 1 {
		t.Errorf("Exported = %d, want 1", report.Exported)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Reason != ReasonMissingImage {
		t.Errorf("Skipped = %+v, want one missing-image skip", report.Skipped)
	}
}
