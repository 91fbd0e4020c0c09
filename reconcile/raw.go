package reconcile

import (
	"fmt"
	"strings"
)

// Shape tags where a raw record came from; it decides which field names the
// normalizer recognizes.
type Shape int

const (
	// Manual is a record typed into the intake form.
	Manual Shape = iota
	// SpreadsheetRow is a CSV/Excel row keyed by its header cells.
	SpreadsheetRow
	// JSONExport is an element of the "patients" array of an export file.
	JSONExport
	// JSONArray is an element of a bare JSON array of records.
	JSONArray
)

var shapeNames = map[Shape]string{
	Manual:         "manual",
	SpreadsheetRow: "spreadsheet",
	JSONExport:     "json-export",
	JSONArray:      "json-array",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape maps a shape name back to its Shape.
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for shape, n := range shapeNames {
		if n == name {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("unknown record shape %q", name)
}

// RawRecord is an input record before normalization. Keys are field names
// for the JSON and manual shapes and header cells for spreadsheet rows.
type RawRecord map[string]interface{}

// Clone returns a shallow copy of the record.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
