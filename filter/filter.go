// Package filter applies the active predicate set to the base table.
// Apply is a pure function: the same table and predicates always yield
// the same rows in base-table order, and the table is never mutated.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hunsao/ageset/dataset"
)

// ErrUnknownField marks a predicate naming a field outside the
// configured set. This is a caller contract violation, not a data
// problem.
var ErrUnknownField = errors.New("unknown filter field")

// Mode is the comparison rule of one predicate.
type Mode int

const (
	// EqualsAny matches rows whose scalar value is in the selection.
	EqualsAny Mode = iota
	// ListContainsAny matches rows whose list field intersects the
	// selection.
	ListContainsAny
	// KeywordAny matches rows whose prompt contains at least one
	// selected keyword, case-insensitively.
	KeywordAny
)

// Predicate is one active constraint: field, comparison mode, and the
// selected bare values (display count suffixes already stripped).
// An empty selection contributes no constraint.
type Predicate struct {
	Field  string
	Mode   Mode
	Values []string
}

// Search is the general free-text constraint. An empty Term is
// inactive; an empty Column searches every field.
type Search struct {
	Column string
	Term   string
}

// countSuffixRe matches exactly one trailing " (N)" display annotation.
var countSuffixRe = regexp.MustCompile(`^(.*) \(\d+\)$`)

// StripCount removes the "value (count)" display suffix, returning the
// bare value. Values without the suffix pass through unchanged. Only
// one trailing annotation is removed, keeping the operation a strict
// inverse of the display form.
func StripCount(display string) string {
	if m := countSuffixRe.FindStringSubmatch(display); m != nil {
		return m[1]
	}
	return display
}

// StripCounts maps StripCount over a selection.
func StripCounts(displays []string) []string {
	values := make([]string, len(displays))
	for i, d := range displays {
		values[i] = StripCount(d)
	}
	return values
}

// Apply evaluates the predicate set against the table and returns the
// matching rows in original order. group is the active group selection
// ("" means all groups). Predicates intersect; values within one
// predicate union.
func Apply(table *dataset.Table, cfg dataset.FieldConfig, group string, preds []Predicate, search Search) ([]dataset.Record, error) {
	matchers := make([]func(dataset.Record) bool, 0, len(preds)+2)

	// Group equality is the cheapest test, so it goes first. A
	// performance nicety only; intersection is order-insensitive.
	if group != "" {
		want := strings.ToLower(strings.TrimSpace(group))
		matchers = append(matchers, func(r dataset.Record) bool {
			return r.Group == want
		})
	}

	for _, p := range preds {
		if len(p.Values) == 0 {
			continue
		}
		m, err := matcher(cfg, p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}

	if search.Term != "" {
		m, err := searchMatcher(cfg, search)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}

	var out []dataset.Record
	for _, rec := range table.Records() {
		ok := true
		for _, m := range matchers {
			if !m(rec) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// matcher compiles one predicate into a row test.
func matcher(cfg dataset.FieldConfig, p Predicate) (func(dataset.Record) bool, error) {
	switch p.Mode {
	case EqualsAny:
		if !cfg.HasScalar(p.Field) {
			return nil, fmt.Errorf("%w: %q is not a scalar field", ErrUnknownField, p.Field)
		}
		want := stringSet(p.Values)
		field := p.Field
		return func(r dataset.Record) bool {
			return want[r.Scalars[field]]
		}, nil

	case ListContainsAny:
		if !cfg.HasList(p.Field) {
			return nil, fmt.Errorf("%w: %q is not a list field", ErrUnknownField, p.Field)
		}
		want := stringSet(p.Values)
		field := p.Field
		return func(r dataset.Record) bool {
			for _, item := range r.Lists[field] {
				if want[item] {
					return true
				}
			}
			return false
		}, nil

	case KeywordAny:
		if !cfg.HasKeyword(p.Field) {
			return nil, fmt.Errorf("%w: %q is not a keyword field", ErrUnknownField, p.Field)
		}
		re, err := keywordPattern(p.Values)
		if err != nil {
			return nil, err
		}
		return func(r dataset.Record) bool {
			return re.MatchString(r.Prompt)
		}, nil
	}
	return nil, fmt.Errorf("%w: unhandled predicate mode %d", ErrUnknownField, p.Mode)
}

// keywordPattern ORs the selected keywords into one case-insensitive
// pattern. Keywords are escaped first so pattern metacharacters in a
// keyword match literally.
func keywordPattern(keywords []string) (*regexp.Regexp, error) {
	escaped := make([]string, len(keywords))
	for i, kw := range keywords {
		escaped[i] = regexp.QuoteMeta(kw)
	}
	return regexp.Compile("(?i)" + strings.Join(escaped, "|"))
}

// searchMatcher compiles the general search into a row test: one
// designated column, or every field, substring-matched
// case-insensitively.
func searchMatcher(cfg dataset.FieldConfig, s Search) (func(dataset.Record) bool, error) {
	term := strings.ToLower(s.Term)
	contains := func(v string) bool {
		return strings.Contains(strings.ToLower(v), term)
	}

	if s.Column == "" {
		return func(r dataset.Record) bool {
			for _, v := range recordValues(r) {
				if contains(v) {
					return true
				}
			}
			return false
		}, nil
	}

	col := s.Column
	switch {
	case col == cfg.IDColumn:
		return func(r dataset.Record) bool { return contains(r.ID) }, nil
	case col == cfg.OriginalFilenameColumn:
		return func(r dataset.Record) bool { return contains(r.OriginalFilename) }, nil
	case col == cfg.ResolvedFilenameColumn:
		return func(r dataset.Record) bool { return contains(r.ResolvedFilename) }, nil
	case col == cfg.PromptColumn:
		return func(r dataset.Record) bool { return contains(r.Prompt) }, nil
	case col == cfg.GroupColumn:
		return func(r dataset.Record) bool { return contains(r.Group) }, nil
	case cfg.HasScalar(col):
		return func(r dataset.Record) bool { return contains(r.Scalars[col]) }, nil
	case cfg.HasList(col):
		return func(r dataset.Record) bool {
			return contains(dataset.FormatList(r.Lists[col]))
		}, nil
	}
	return nil, fmt.Errorf("%w: %q is not a searchable column", ErrUnknownField, col)
}

// recordValues stringifies every field of a record for all-column
// search.
func recordValues(r dataset.Record) []string {
	values := []string{r.ID, r.OriginalFilename, r.ResolvedFilename, r.Group, r.Prompt}
	for _, v := range r.Scalars {
		values = append(values, v)
	}
	for _, items := range r.Lists {
		values = append(values, dataset.FormatList(items))
	}
	return values
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
