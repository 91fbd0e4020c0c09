package fileio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoRows is returned when a file has a header but no data.
var ErrNoRows = errors.New("file contains no patient rows")

// Read parses r in the given format and reports the shape of its records.
func Read(r io.Reader, format Format) ([]reconcile.RawRecord, reconcile.Shape, error) {
	switch format {
	case FormatJSON:
		return ReadJSON(r)
	case FormatCSV:
		rows, err := ReadCSV(r)
		return rows, reconcile.SpreadsheetRow, err
	case FormatXLSX:
		rows, err := ReadXLSX(r)
		return rows, reconcile.SpreadsheetRow, err
	}
	return nil, 0, fmt.Errorf("unsupported format %q", format)
}

// ReadCSV reads a header row followed by data rows. A UTF-8 byte order mark
// is stripped.
func ReadCSV(r io.Reader) ([]reconcile.RawRecord, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsToRecords(records)
}

// ReadXLSX reads the first worksheet. Cells are read raw, so dates arrive as
// serial numbers.
func ReadXLSX(r io.Reader) ([]reconcile.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rowsToRecords(rows)
}

// rowsToRecords keys every data row by the header row. Blank rows and
// columns without a header are skipped.
func rowsToRecords(rows [][]string) ([]reconcile.RawRecord, error) {
	if len(rows) < 2 {
		return nil, ErrNoRows
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var out []reconcile.RawRecord
	for _, row := range rows[1:] {
		rec := reconcile.RawRecord{}
		blank := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				blank = false
			}
			rec[header[i]] = cell
		}
		if !blank {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// ReadJSON accepts an export document ({"patients": [...]}) or a bare array
// of records.
func ReadJSON(r io.Reader) ([]reconcile.RawRecord, reconcile.Shape, error) {
	var doc interface{}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("decode json: %w", err)
	}

	var items []interface{}
	var shape reconcile.Shape
	switch t := doc.(type) {
	case map[string]interface{}:
		list, ok := t["patients"].([]interface{})
		if !ok {
			return nil, 0, errors.New(`json object has no "patients" array`)
		}
		items, shape = list, reconcile.JSONExport
	case []interface{}:
		items, shape = t, reconcile.JSONArray
	default:
		return nil, 0, errors.New("json must be an object with patients or an array")
	}

	out := make([]reconcile.RawRecord, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, 0, fmt.Errorf("record %d is not an object", i+1)
		}
		out = append(out, reconcile.RawRecord(m))
	}
	if len(out) == 0 {
		return nil, 0, ErrNoRows
	}
	return out, shape, nil
}
