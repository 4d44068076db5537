package core

// roster.go reads a delimited roster file into untyped records.
//
// The input is decoded as UTF-8 on the fly: a leading byte-order mark is
// dropped and invalid sequences become U+FFFD, so files saved by spreadsheet
// tools parse without a separate cleanup pass.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RosterFile is a parsed roster: normalized headers and one record per data row.
type RosterFile struct {
	Headers []string
	Records []RawRecord
}

// ParseOptions controls roster parsing.
type ParseOptions struct {
	// MaxRows caps the number of data rows. Zero means no limit.
	MaxRows int

	// AcceptBibNum keeps the bib_num column. Otherwise it is dropped.
	AcceptBibNum bool
}

// NewRosterReader wraps r so that it yields clean UTF-8 without a BOM.
func NewRosterReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ParseRoster reads a CSV roster. Headers must include every required column;
// otherwise a *HeaderError is returned before any row is read. Blank rows are
// skipped and do not consume a row index.
func ParseRoster(r io.Reader, opts ParseOptions) (*RosterFile, error) {
	cr := csv.NewReader(NewRosterReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	headers := NormalizeHeaders(header)
	if err := ValidateHeaders(headers); err != nil {
		return nil, err
	}

	file := &RosterFile{Headers: headers}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		if isEmptyRow(row) {
			continue
		}
		if opts.MaxRows > 0 && len(file.Records) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: more than %d data rows", ErrTooManyRows, opts.MaxRows)
		}
		file.Records = append(file.Records, RecordFromRow(headers, row, opts.AcceptBibNum))
	}
	return file, nil
}

// RecordFromRow pairs a row with normalized headers. Cells beyond the header
// are ignored; missing trailing cells are absent.
func RecordFromRow(headers, row []string, acceptBibNum bool) RawRecord {
	rec := make(RawRecord, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(row) {
			continue
		}
		if h == ColBibNum && !acceptBibNum {
			continue
		}
		rec[h] = row[i]
	}
	return rec
}

// NormalizeRecord re-keys a record by normalized column name.
func NormalizeRecord(rec map[string]string, acceptBibNum bool) RawRecord {
	out := make(RawRecord, len(rec))
	for k, v := range rec {
		key := NormalizeHeader(k)
		if key == ColBibNum && !acceptBibNum {
			continue
		}
		out[key] = v
	}
	return out
}

// isEmptyRow returns true if all cells in the row are empty or whitespace.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
