// Package session ties the dataset pipeline together behind one
// explicit object: an immutable loaded table plus the mutable filter
// selection, with exports always computed from the two.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/hunsao/ageset/catalog"
	"github.com/hunsao/ageset/dataset"
	"github.com/hunsao/ageset/export"
	"github.com/hunsao/ageset/filter"
	"github.com/hunsao/ageset/imageindex"
)

// ErrNotLoaded is returned by operations that need a loaded dataset.
var ErrNotLoaded = errors.New("no dataset loaded")

// ErrNoImage is returned by ImagePath when the requested image is not
// in the index.
var ErrNoImage = errors.New("image not found")

// Session owns the state of one browsing session. The table, index and
// catalog are replaced wholesale by Load and never mutated afterwards;
// only the filter selection changes between loads, so concurrent
// readers share everything else safely.
type Session struct {
	mu sync.RWMutex

	cfg     dataset.FieldConfig
	folders dataset.GroupFolders

	table *dataset.Table
	index *imageindex.Index
	cat   *catalog.Catalog

	dropped  int
	warnings []string

	group      string
	predicates map[string]filter.Predicate
	search     filter.Search
}

// New returns an empty session. Load must succeed before any filter or
// export operation works.
func New(cfg dataset.FieldConfig, folders dataset.GroupFolders) *Session {
	return &Session{
		cfg:        cfg,
		folders:    folders,
		predicates: make(map[string]filter.Predicate),
	}
}

// loaded is everything Load builds before touching the session. A
// failure anywhere leaves the previous state in place.
type loaded struct {
	table    *dataset.Table
	index    *imageindex.Index
	cat      *catalog.Catalog
	dropped  int
	warnings []string
}

// Load reads the metadata table at csvPath and indexes the images
// under imageRoot, then swaps the result in atomically. On error the
// session keeps whatever it held before, loaded or not.
func (s *Session) Load(csvPath, imageRoot string) error {
	st, err := s.build(csvPath, imageRoot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = st.table
	s.index = st.index
	s.cat = st.cat
	s.dropped = st.dropped
	s.warnings = st.warnings
	s.resetLocked()
	return nil
}

func (s *Session) build(csvPath, imageRoot string) (*loaded, error) {
	header, rows, err := dataset.ReadCSVFile(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}

	res, err := dataset.Normalize(header, rows, s.cfg, s.folders)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize table: %w", err)
	}

	idx, err := imageindex.Build(imageRoot, s.folders)
	if err != nil {
		return nil, fmt.Errorf("failed to index images: %w", err)
	}

	warnings := append([]string{}, res.Warnings...)
	warnings = append(warnings, idx.Warnings()...)

	return &loaded{
		table:    res.Table,
		index:    idx,
		cat:      catalog.New(res.Table, s.cfg),
		dropped:  res.Dropped,
		warnings: warnings,
	}, nil
}

// Loaded reports whether a dataset is available.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table != nil
}

// Dropped returns the row drop count from the last load.
func (s *Session) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Warnings returns the non-fatal conditions from the last load.
func (s *Session) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.warnings...)
}

// SetPredicate replaces the selection for one field. Selected values
// may carry the catalog's " (count)" display suffix; it is stripped
// here. An empty value list clears the field's predicate.
func (s *Session) SetPredicate(field string, mode filter.Mode, values []string) error {
	switch mode {
	case filter.EqualsAny:
		if !s.cfg.HasScalar(field) {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, field)
		}
	case filter.ListContainsAny:
		if !s.cfg.HasList(field) {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, field)
		}
	case filter.KeywordAny:
		if !s.cfg.HasKeyword(field) {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, field)
		}
	default:
		return fmt.Errorf("unknown predicate mode %d", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 {
		delete(s.predicates, field)
		return nil
	}
	s.predicates[field] = filter.Predicate{
		Field:  field,
		Mode:   mode,
		Values: filter.StripCounts(values),
	}
	return nil
}

// SetGroup sets the group selection; empty selects all groups.
func (s *Session) SetGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = group
}

// SetSearch sets the general search term. Empty column means all
// fields; an empty term clears the search.
func (s *Session) SetSearch(column, term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = filter.Search{Column: column, Term: term}
}

// Reset clears every predicate, the group and the search.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.group = ""
	s.predicates = make(map[string]filter.Predicate)
	s.search = filter.Search{}
}

// Apply evaluates the current selection against the base table and
// returns the matching rows in base order.
func (s *Session) Apply() ([]dataset.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.table == nil {
		return nil, ErrNotLoaded
	}
	return filter.Apply(s.table, s.cfg, s.group, s.predicateList(), s.search)
}

// predicateList returns the predicates in a stable field order so
// identical selections always evaluate identically.
func (s *Session) predicateList() []filter.Predicate {
	fields := make([]string, 0, len(s.predicates))
	for f := range s.predicates {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	preds := make([]filter.Predicate, 0, len(fields))
	for _, f := range fields {
		preds = append(preds, s.predicates[f])
	}
	return preds
}

// Options returns the display options for one field, counted against
// the full unfiltered table.
func (s *Session) Options(field string) ([]catalog.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return nil, ErrNotLoaded
	}
	return s.cat.Options(field)
}

// Groups returns the selectable group values in sorted order.
func (s *Session) Groups() []string {
	return s.folders.Groups()
}

// FieldConfig returns the column configuration the session was built
// with.
func (s *Session) FieldConfig() dataset.FieldConfig {
	return s.cfg
}

// ImagePath resolves one record's image to its on-disk path.
func (s *Session) ImagePath(group, filename string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return "", ErrNotLoaded
	}
	folder, ok := s.folders.Folder(group)
	if !ok {
		return "", fmt.Errorf("%w: group %q has no folder", ErrNoImage, group)
	}
	path, ok := s.index.Resolve(folder, filename)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoImage, folder, filename)
	}
	return path, nil
}

// ExportArchive writes a ZIP of the currently filtered rows' images
// to w and returns the per-row skip report.
func (s *Session) ExportArchive(ctx context.Context, w io.Writer) (export.ArchiveReport, error) {
	rows, err := s.Apply()
	if err != nil {
		return export.ArchiveReport{}, err
	}
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	return export.Archive(ctx, rows, idx, s.folders, w)
}

// ExportTable writes the currently filtered rows as CSV to w.
func (s *Session) ExportTable(w io.Writer) error {
	rows, err := s.Apply()
	if err != nil {
		return err
	}
	return export.Table(rows, s.cfg, w)
}
