package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrEmptyTable is returned when the CSV holds no data rows.
var ErrEmptyTable = errors.New("table has no data rows")

// ReadCSV parses raw CSV bytes into a header row and data rows. Tables
// that are not valid UTF-8 are decoded as Latin-1 first; the source
// pipeline emitted both encodings over time.
func ReadCSV(data []byte) (header []string, rows [][]string, err error) {
	if !utf8.Valid(data) {
		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, nil, fmt.Errorf("failed to decode table as latin-1: %w", decErr)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // ragged rows surface as missing cells during normalization
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, ErrEmptyTable
	}
	if len(all) == 1 {
		return all[0], nil, ErrEmptyTable
	}
	return all[0], all[1:], nil
}

// ReadCSVFile reads and parses the metadata table at path.
func ReadCSVFile(path string) (header []string, rows [][]string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table file: %w", err)
	}
	return ReadCSV(data)
}
