// Package dataset holds the normalized metadata table for one loaded
// bundle: record model, CSV reading, column normalization, and the
// shared list-literal parser used by every downstream consumer.
package dataset

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNoRecords is returned when normalization drops every row.
	ErrNoRecords = errors.New("no usable records after normalization")
	// ErrMissingColumns is returned when a required column is absent from the header.
	ErrMissingColumns = errors.New("required columns missing")
)

// Record is one row of dataset metadata after normalization.
// Records are immutable once the table is built; filtering produces
// row subsets, never mutated rows.
type Record struct {
	ID               string
	OriginalFilename string
	// ResolvedFilename is the filename actually used to locate the
	// image on disk. Equal to OriginalFilename unless the extension
	// was rewritten during normalization.
	ResolvedFilename string
	// Group is the lower-cased categorical partition (e.g. "old").
	// Always present in the configured group-folder map.
	Group  string
	Prompt string
	// Scalars maps configured scalar field names to single values.
	Scalars map[string]string
	// Lists maps configured list field names to their parsed tokens.
	// Parsed exactly once at load time; readers never re-sniff cells.
	Lists map[string][]string
}

// Table is the immutable base table for one session.
type Table struct {
	records []Record
}

// NewTable wraps a record slice. The slice is owned by the table
// afterwards and must not be mutated by the caller.
func NewTable(records []Record) *Table {
	return &Table{records: records}
}

// Records returns the rows in original table order. Callers treat the
// returned slice as read-only.
func (t *Table) Records() []Record {
	return t.records
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// FieldConfig names the columns the normalizer and filter pipeline
// operate on. A zero value is not usable; start from DefaultFieldConfig.
type FieldConfig struct {
	IDColumn               string   `json:"idColumn"`
	OriginalFilenameColumn string   `json:"originalFilenameColumn"`
	ResolvedFilenameColumn string   `json:"resolvedFilenameColumn"`
	PromptColumn           string   `json:"promptColumn"`
	GroupColumn            string   `json:"groupColumn"`
	ScalarFields           []string `json:"scalarFields"`
	ListFields             []string `json:"listFields"`
	// KeywordFields are filterable names whose selected values are
	// matched as substrings of the prompt rather than against a column.
	KeywordFields []string `json:"keywordFields"`
	// KeywordCandidates holds, per keyword field, the phrases offered
	// as filter options. There is no column to derive them from, so
	// they must be configured up front.
	KeywordCandidates map[string][]string `json:"keywordCandidates"`
}

// DefaultFieldConfig returns the column layout of the source dataset.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		IDColumn:               "ID",
		OriginalFilenameColumn: "filename",
		ResolvedFilenameColumn: "filename_actual_jpg",
		PromptColumn:           "prompt",
		GroupColumn:            "age_group",
		ScalarFields: []string{
			"gender", "race", "emotion", "personality",
			"position", "person_count", "location", "age",
		},
		ListFields:    []string{"objects", "assistive_devices", "digital_devices"},
		KeywordFields: []string{"activities"},
		KeywordCandidates: map[string][]string{
			"activities": DefaultActivities(),
		},
	}
}

// DefaultActivities returns the activity phrases of the source dataset,
// in their canonical order. They are searched as case-insensitive
// substrings of the prompt.
func DefaultActivities() []string {
	return []string{
		"sleeping", "being sick in bed", "eating", "grooming",
		"receiving personal care", "taking a bath", "at work",
		"taking a lunch break", "in a job fair", "taking a course",
		"doing homework", "doing an internship",
		"taking a break from studying", "attending extracurricular classes",
		"attending a webinar", "in a study group", "handling home tasks",
		"preparing food", "washing dishes", "storing food",
		"doing house cleaning", "cleaning the garden", "heating their home",
		"arranging household goods", "recycling", "doing home maintenance",
		"doing laundry", "ironing", "gardening", "caring for pets",
		"walking the dog", "constructing or renovating the house",
		"repairing the dwelling", "fixing and maintaining tools",
		"maintaining the vehicle", "shopping", "managing banking accounts",
		"planning shopping", "managing the household",
		"providing physical care and supervision of a child",
		"educating the child", "reading, playing, and talking with the child",
		"providing physical care of an adult household member",
		"offering childcare services", "providing support to an adult",
		"volunteering", "attending meetings",
		"engaging in religious activities", "paying respects at graves",
		"participating in community events", "in a family meeting",
		"hosting guests at home", "in a party", "engaging in a discussion",
		"sending and receiving messages", "spending time on social media",
		"in a social gathering", "in a movie night",
		"attending theatre or live concerts", "viewing art collections",
		"in a library", "participating in sports events",
		"in a botanical garden", "taking a break", "going for a walk",
		"running for exercise", "riding a bike", "engaging in team sports",
		"engaging in fitness routines",
		"doing swimming and other water activities", "meditating",
		"engaging in productive exercise",
		"participating in sports-related activities",
		"engaging in visual arts", "amassing collectibles",
		"making handicraft products", "using computers",
		"searching for information online", "handling video game consoles",
		"engaging in smartphone games", "reading news", "reading books",
		"watching movies or videos", "listening to music or talk shows",
		"updating the time diary", "in the room where they sleep",
		"in the living room", "traveling", "traveling for work",
		"going to study locations", "going to shops and services",
		"traveling for family care", "moving to a new location",
	}
}

// HasScalar reports whether name is a configured scalar field.
func (c FieldConfig) HasScalar(name string) bool {
	for _, f := range c.ScalarFields {
		if f == name {
			return true
		}
	}
	return false
}

// HasList reports whether name is a configured list field.
func (c FieldConfig) HasList(name string) bool {
	for _, f := range c.ListFields {
		if f == name {
			return true
		}
	}
	return false
}

// HasKeyword reports whether name is a configured keyword field.
func (c FieldConfig) HasKeyword(name string) bool {
	for _, f := range c.KeywordFields {
		if f == name {
			return true
		}
	}
	return false
}

// GroupFolders maps a lower-cased group value to the image folder name
// inside the bundle.
type GroupFolders map[string]string

// DefaultGroupFolders returns the folder layout of the source bundles.
func DefaultGroupFolders() GroupFolders {
	return GroupFolders{
		"old":        "OLD",
		"young":      "YOUNG",
		"middle-age": "MIDDLE-AGE",
		"person":     "PERSON",
	}
}

// Folder resolves a group value to its folder name, lower-casing first.
func (g GroupFolders) Folder(group string) (string, bool) {
	f, ok := g[strings.ToLower(strings.TrimSpace(group))]
	return f, ok
}

// Groups returns the group keys in deterministic (sorted) order.
func (g GroupFolders) Groups() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
