package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/hunsao/ageset/dataset"
)

// Table serializes the filtered rows as CSV in a fixed column order:
// the required columns first, then the configured scalar fields, then
// the list fields in their bracketed form.
func Table(rows []dataset.Record, cfg dataset.FieldConfig, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{
		cfg.IDColumn,
		cfg.OriginalFilenameColumn,
		cfg.ResolvedFilenameColumn,
		cfg.GroupColumn,
		cfg.PromptColumn,
	}
	header = append(header, cfg.ScalarFields...)
	header = append(header, cfg.ListFields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	record := make([]string, 0, len(header))
	for _, rec := range rows {
		record = record[:0]
		record = append(record,
			rec.ID,
			rec.OriginalFilename,
			rec.ResolvedFilename,
			rec.Group,
			rec.Prompt,
		)
		for _, field := range cfg.ScalarFields {
			record = append(record, rec.Scalars[field])
		}
		for _, field := range cfg.ListFields {
			record = append(record, dataset.FormatList(rec.Lists[field]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write table row %s: %w", rec.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
