package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
)

// Patient codes have the form YYYY/MM/SSSS. The serial is zero padded to four
// digits; a month with more than 9999 patients produces a five digit serial
// rather than wrapping or truncating.

// CodeParts is a parsed patient code.
type CodeParts struct {
	Year   int
	Month  int
	Serial int
}

// ParseCode splits a patient code into its year, month and serial parts.
// ok is false when the code does not have three numeric path components.
func ParseCode(code string) (parts CodeParts, ok bool) {
	fields := strings.Split(strings.TrimSpace(code), "/")
	if len(fields) != 3 {
		return CodeParts{}, false
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return CodeParts{}, false
	}
	month, err := strconv.Atoi(fields[1])
	if err != nil {
		return CodeParts{}, false
	}
	serial, err := strconv.Atoi(fields[2])
	if err != nil {
		return CodeParts{}, false
	}
	return CodeParts{Year: year, Month: month, Serial: serial}, true
}

// FormatCode renders a patient code for the given bucket and serial.
func FormatCode(year int, month time.Month, serial int) string {
	return fmt.Sprintf("%04d/%02d/%04d", year, int(month), serial)
}

// MaxSerial returns the highest valid serial among codes whose year and
// month match asOf, or 0 when that bucket is empty. Serials that fail to
// parse or are not positive are ignored.
func MaxSerial(codes []string, asOf time.Time) int {
	max := 0
	for _, code := range codes {
		parts, ok := ParseCode(code)
		if !ok || parts.Year != asOf.Year() || parts.Month != int(asOf.Month()) {
			continue
		}
		if parts.Serial > max {
			max = parts.Serial
		}
	}
	return max
}

// AllocateCode returns the next unused code in asOf's year-month bucket given
// the known records. It is a pure function; concurrent creators must rely on
// the store's uniqueness check.
func AllocateCode(existing []model.Patient, asOf time.Time) string {
	return FormatCode(asOf.Year(), asOf.Month(), MaxSerial(codesOf(existing), asOf)+1)
}

// ValidateCode rejects candidate when any record other than excludeID
// already carries exactly that code.
func ValidateCode(candidate, excludeID string, existing []model.Patient) error {
	for _, p := range existing {
		if excludeID != "" && p.ID == excludeID {
			continue
		}
		if p.Code == candidate {
			return &DuplicateCodeError{Code: candidate, ConflictID: p.ID}
		}
	}
	return nil
}

// FindDuplicateCodes maps every code carried by more than one record to the
// ids holding it.
func FindDuplicateCodes(records []model.Patient) map[string][]string {
	byCode := make(map[string][]string)
	for _, p := range records {
		byCode[p.Code] = append(byCode[p.Code], p.ID)
	}
	dups := make(map[string][]string)
	for code, ids := range byCode {
		if len(ids) > 1 {
			dups[code] = ids
		}
	}
	return dups
}

func codesOf(records []model.Patient) []string {
	codes := make([]string, len(records))
	for i, p := range records {
		codes[i] = p.Code
	}
	return codes
}
