package dataset

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CanonicalExtension is the extension images carry on disk.
const CanonicalExtension = ".jpg"

// RewriteExtensions lists the filename extensions the normalizer
// rewrites to CanonicalExtension. The source tables were authored
// against .png renders that were later re-encoded to .jpg.
var RewriteExtensions = []string{".png"}

// maxRowWarnings bounds the number of per-row warnings kept verbatim;
// the rest are summarized.
const maxRowWarnings = 25

// countSuffixRe matches a trailing " (N)" annotation. Field values that
// already end this way are ambiguous with the option-count display
// format, so normalization flags them.
var countSuffixRe = regexp.MustCompile(`\s\(\d+\)$`)

// NormalizeResult carries the normalized table plus the per-row drop
// accounting the loader reports back to the caller.
type NormalizeResult struct {
	Table *Table

	// Dropped is the total number of input rows excluded from the table.
	Dropped          int
	DroppedMissing   int // required field empty or absent
	DroppedUnmapped  int // group not in the group-folder map
	DroppedDuplicate int // id already seen

	Warnings []string
}

// Normalize converts raw CSV rows into the immutable record table. It
// is a pure function of its inputs: extension rewriting, list-literal
// parsing, group case-folding and required-field validation all happen
// here, once, so downstream consumers never re-interpret raw cells.
//
// A missing required column is fatal. Rows failing per-row validation
// are dropped and counted, never silently discarded.
func Normalize(header []string, rows [][]string, cfg FieldConfig, folders GroupFolders) (NormalizeResult, error) {
	res := NormalizeResult{}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	idIdx, idOK := col[cfg.IDColumn]
	promptIdx, promptOK := col[cfg.PromptColumn]
	groupIdx, groupOK := col[cfg.GroupColumn]
	origIdx, origOK := col[cfg.OriginalFilenameColumn]
	resolvedIdx, resolvedOK := col[cfg.ResolvedFilenameColumn]

	var missing []string
	if !idOK {
		missing = append(missing, cfg.IDColumn)
	}
	if !promptOK {
		missing = append(missing, cfg.PromptColumn)
	}
	if !groupOK {
		missing = append(missing, cfg.GroupColumn)
	}
	if !origOK && !resolvedOK {
		missing = append(missing, cfg.OriginalFilenameColumn)
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	seen := make(map[string]bool, len(rows))
	records := make([]Record, 0, len(rows))
	var rowWarnings []string
	suppressed := 0
	warnRow := func(format string, args ...any) {
		if len(rowWarnings) >= maxRowWarnings {
			suppressed++
			return
		}
		rowWarnings = append(rowWarnings, fmt.Sprintf(format, args...))
	}
	ambiguousFields := map[string]bool{}

	for _, row := range rows {
		id := cell(row, idIdx)
		prompt := cell(row, promptIdx)
		group := strings.ToLower(cell(row, groupIdx))

		original := ""
		if origOK {
			original = cell(row, origIdx)
		}
		resolved := ""
		switch {
		case original != "":
			resolved = rewriteExtension(original)
			if resolvedOK {
				if explicit := cell(row, resolvedIdx); explicit != "" && explicit != resolved {
					// Both columns present and disagreeing is an input
					// ambiguity; keep the derived name but surface it.
					warnRow("row %s: resolved filename %q disagrees with derived %q, using derived", id, explicit, resolved)
				}
			}
		case resolvedOK:
			resolved = cell(row, resolvedIdx)
			original = resolved
		}

		if id == "" || prompt == "" || group == "" || resolved == "" {
			res.DroppedMissing++
			continue
		}
		if _, ok := folders.Folder(group); !ok {
			res.DroppedUnmapped++
			continue
		}
		if seen[id] {
			res.DroppedDuplicate++
			continue
		}
		seen[id] = true

		rec := Record{
			ID:               id,
			OriginalFilename: original,
			ResolvedFilename: resolved,
			Group:            group,
			Prompt:           prompt,
			Scalars:          make(map[string]string, len(cfg.ScalarFields)),
			Lists:            make(map[string][]string, len(cfg.ListFields)),
		}

		for _, field := range cfg.ScalarFields {
			idx, ok := col[field]
			if !ok {
				continue
			}
			v := cell(row, idx)
			if lowercaseField(field) {
				v = strings.ToLower(v)
			}
			rec.Scalars[field] = v
			if countSuffixRe.MatchString(v) {
				ambiguousFields[field] = true
			}
		}
		for _, field := range cfg.ListFields {
			idx, ok := col[field]
			if !ok {
				continue
			}
			items := ParseList(cell(row, idx))
			rec.Lists[field] = items
			for _, it := range items {
				if countSuffixRe.MatchString(it) {
					ambiguousFields[field] = true
				}
			}
		}

		records = append(records, rec)
	}

	res.Dropped = res.DroppedMissing + res.DroppedUnmapped + res.DroppedDuplicate
	res.Warnings = append(res.Warnings, rowWarnings...)
	if suppressed > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d further row warnings suppressed", suppressed))
	}
	if res.Dropped > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"dropped %d rows (%d missing required fields, %d unmapped group, %d duplicate id)",
			res.Dropped, res.DroppedMissing, res.DroppedUnmapped, res.DroppedDuplicate))
	}
	ambiguous := make([]string, 0, len(ambiguousFields))
	for field := range ambiguousFields {
		ambiguous = append(ambiguous, field)
	}
	sort.Strings(ambiguous)
	for _, field := range ambiguous {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"field %q has values ending in a parenthesized count; option display for it will not round-trip", field))
	}

	if len(records) == 0 {
		return res, ErrNoRecords
	}
	res.Table = NewTable(records)
	return res, nil
}

// lowercaseField reports whether a scalar field's values are folded to
// lower case at load. The source tables mixed case for personality only.
func lowercaseField(name string) bool {
	return name == "personality"
}

// rewriteExtension maps a filename with a rewritable extension to the
// canonical one by replacing the text after the last dot. Other names
// pass through unchanged.
func rewriteExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range RewriteExtensions {
		if strings.HasSuffix(lower, ext) {
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				return name[:i] + CanonicalExtension
			}
		}
	}
	return name
}
