// Package export materializes a filtered view: a ZIP archive of the
// corresponding image files organized by group folder, and a CSV of
// the filtered metadata rows.
package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/hunsao/ageset/dataset"
	"github.com/hunsao/ageset/imageindex"
)

// Skip reasons for rows whose image could not be archived.
const (
	ReasonUnmappedGroup = "unmapped group"
	ReasonMissingImage  = "missing image"
)

// Skip records one filtered row excluded from the archive.
type Skip struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// ArchiveReport is the outcome of one archive run. Per-row problems
// never abort the run; they land here.
type ArchiveReport struct {
	Exported int    `json:"exported"`
	Skipped  []Skip `json:"skipped"`
}

// Archive writes a ZIP of the images behind rows to w, in table order,
// each entry at <folder>/<resolved filename> with the source bytes
// unmodified. Rows sharing a (filename, group) pair produce one entry.
// Only a fault on the archive sink itself fails the whole run; ctx is
// checked between rows so a long export can be cancelled cleanly.
func Archive(ctx context.Context, rows []dataset.Record, idx *imageindex.Index, folders dataset.GroupFolders, w io.Writer) (ArchiveReport, error) {
	report := ArchiveReport{Skipped: []Skip{}}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	// Dedup by (filename, group) before any resolution so a repeated
	// pair is neither archived nor skip-counted twice.
	seen := make(map[[2]string]bool, len(rows))

	for _, rec := range rows {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return report, err
		}

		key := [2]string{rec.ResolvedFilename, rec.Group}
		if seen[key] {
			continue
		}
		seen[key] = true

		folder, ok := folders.Folder(rec.Group)
		if !ok {
			report.Skipped = append(report.Skipped, Skip{ID: rec.ID, Filename: rec.ResolvedFilename, Reason: ReasonUnmappedGroup})
			continue
		}

		path, ok := idx.Resolve(folder, rec.ResolvedFilename)
		if !ok {
			report.Skipped = append(report.Skipped, Skip{ID: rec.ID, Filename: rec.ResolvedFilename, Reason: ReasonMissingImage})
			continue
		}

		if err := addFile(zw, folder+"/"+rec.ResolvedFilename, path); err != nil {
			if os.IsNotExist(err) {
				// Indexed at load but gone from disk since.
				report.Skipped = append(report.Skipped, Skip{ID: rec.ID, Filename: rec.ResolvedFilename, Reason: ReasonMissingImage})
				continue
			}
			zw.Close()
			return report, fmt.Errorf("failed to archive %s: %w", rec.ResolvedFilename, err)
		}

		report.Exported++
	}

	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return report, nil
}

func addFile(zw *zip.Writer, entryName, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := zw.Create(entryName)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
