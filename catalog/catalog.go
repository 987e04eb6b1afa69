// Package catalog derives, per filterable field, the distinct option
// values and their observation counts. Counts are always taken against
// the full base table so option lists never shrink while other filters
// are active.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hunsao/ageset/dataset"
)

// ErrUnknownField is returned when a field is not configured for
// filtering.
var ErrUnknownField = errors.New("field not configured for filtering")

// Kind selects the counting rule for a field.
type Kind int

const (
	// Scalar counts rows whose field value equals the candidate exactly.
	Scalar Kind = iota
	// List counts rows whose parsed list contains the candidate.
	List
	// Keyword counts rows whose prompt contains the candidate as a
	// case-insensitive substring.
	Keyword
)

// Option is one selectable filter value with its observed count.
// The combined "value (count)" form exists only at the presentation
// boundary; everything internal carries the two fields separately.
type Option struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Display renders the option in the multi-select wire format.
func (o Option) Display() string {
	return fmt.Sprintf("%s (%d)", o.Value, o.Count)
}

// Catalog holds the full-table option statistics for one session.
type Catalog struct {
	table *dataset.Table
	cfg   dataset.FieldConfig
}

// New builds a catalog over the base table. The table must be the
// unfiltered load result.
func New(table *dataset.Table, cfg dataset.FieldConfig) *Catalog {
	return &Catalog{table: table, cfg: cfg}
}

// FieldKind resolves a configured field name to its counting rule.
func (c *Catalog) FieldKind(field string) (Kind, bool) {
	switch {
	case c.cfg.HasScalar(field):
		return Scalar, true
	case c.cfg.HasList(field):
		return List, true
	case c.cfg.HasKeyword(field):
		return Keyword, true
	}
	return 0, false
}

// Counts returns the observation count for each candidate under the
// field's counting rule.
func (c *Catalog) Counts(field string, kind Kind, candidates []string) map[string]int {
	counts := make(map[string]int, len(candidates))
	for _, cand := range candidates {
		counts[cand] = 0
	}

	for _, rec := range c.table.Records() {
		switch kind {
		case Scalar:
			v := rec.Scalars[field]
			if _, ok := counts[v]; ok && v != "" {
				counts[v]++
			}
		case List:
			for _, item := range rec.Lists[field] {
				if _, ok := counts[item]; ok {
					counts[item]++
				}
			}
		case Keyword:
			prompt := strings.ToLower(rec.Prompt)
			for _, cand := range candidates {
				if cand != "" && strings.Contains(prompt, strings.ToLower(cand)) {
					counts[cand]++
				}
			}
		}
	}
	return counts
}

// SortedOptions returns the candidates that were actually observed,
// count descending; ties keep the candidates' input order.
func (c *Catalog) SortedOptions(field string, kind Kind, candidates []string) []Option {
	counts := c.Counts(field, kind, candidates)

	opts := make([]Option, 0, len(candidates))
	for _, cand := range candidates {
		if n := counts[cand]; n > 0 {
			opts = append(opts, Option{Value: cand, Count: n})
		}
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return opts[i].Count > opts[j].Count
	})
	return opts
}

// Options derives the candidate set from the table itself and returns
// the sorted observed options for a configured field.
func (c *Catalog) Options(field string) ([]Option, error) {
	kind, ok := c.FieldKind(field)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	var candidates []string
	switch kind {
	case Scalar:
		candidates = c.DistinctScalar(field)
	case List:
		candidates = c.DistinctListItems(field)
	case Keyword:
		// Keyword fields have no column of their own; the configured
		// candidate phrases are counted against the prompt.
		candidates = c.cfg.KeywordCandidates[field]
	}
	return c.SortedOptions(field, kind, candidates), nil
}

// DistinctScalar returns the distinct non-empty values of a scalar
// field, sorted, from the full table.
func (c *Catalog) DistinctScalar(field string) []string {
	seen := map[string]bool{}
	for _, rec := range c.table.Records() {
		if v := rec.Scalars[field]; v != "" {
			seen[v] = true
		}
	}
	return sortedKeys(seen)
}

// DistinctListItems returns the distinct tokens of a list field,
// sorted, from the full table.
func (c *Catalog) DistinctListItems(field string) []string {
	seen := map[string]bool{}
	for _, rec := range c.table.Records() {
		for _, item := range rec.Lists[field] {
			if item != "" {
				seen[item] = true
			}
		}
	}
	return sortedKeys(seen)
}

// NonNullCount returns the number of rows with a non-empty value for a
// scalar field in the unfiltered table.
func (c *Catalog) NonNullCount(field string) int {
	n := 0
	for _, rec := range c.table.Records() {
		if rec.Scalars[field] != "" {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
