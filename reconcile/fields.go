package reconcile

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Canonical field names shared by the manual form, the JSON export and the
// normalized record.
const (
	fieldCode           = "code"
	fieldFullNameArabic = "fullNameArabic"
	fieldFullName       = "fullName"
	fieldName           = "name"
	fieldDateOfBirth    = "dateOfBirth"
	fieldAge            = "age"
	fieldGender         = "gender"
	fieldDiagnoses      = "diagnoses"
	fieldDiagnosis      = "diagnosis"
	fieldStatus         = "status"
	fieldVisitedDate    = "visitedDate"
	fieldAdmissionDate  = "admissionDate"
	fieldSurgeries      = "surgeries"
	fieldFollowUps      = "followUps"
	fieldFiles          = "files"
	fieldContactInfo    = "contactInfo"
	fieldPlannedSurgery = "plannedSurgery"
	fieldNotes          = "notes"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
	fieldExtra          = "extra"
	fieldID             = "id"
	fieldPhone          = "phone"
)

// knownJSONFields are consumed by the normalizer for the manual and JSON
// shapes; anything else passes through into Extra.
var knownJSONFields = map[string]bool{
	fieldID: true, fieldCode: true, fieldFullNameArabic: true, fieldFullName: true,
	fieldName: true, fieldDateOfBirth: true, fieldAge: true, fieldGender: true,
	fieldDiagnoses: true, fieldDiagnosis: true, fieldStatus: true, fieldVisitedDate: true,
	fieldAdmissionDate: true, fieldSurgeries: true, fieldFollowUps: true, fieldFiles: true,
	fieldContactInfo: true, fieldPlannedSurgery: true, fieldNotes: true,
	fieldCreatedAt: true, fieldUpdatedAt: true, fieldExtra: true, fieldPhone: true,
}

// fold lower-cases s with Unicode case folding so Arabic and Latin headers
// compare the same way.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// headerMatcher reports whether a folded spreadsheet header belongs to a field.
type headerMatcher func(header string) bool

// nameMatchers are tried in order; the first tier with a matching header wins.
var nameMatchers = []headerMatcher{
	func(h string) bool { return strings.Contains(h, "name") && strings.Contains(h, "arabic") },
	func(h string) bool { return strings.Contains(h, "name") && strings.Contains(h, "ar") },
	func(h string) bool { return strings.Contains(h, "الاسم") },
	func(h string) bool { return h == "name" },
}

// spreadsheetColumns lists, per canonical field, matcher tiers for headers.
var spreadsheetColumns = map[string][]headerMatcher{
	fieldCode: {
		func(h string) bool { return containsAny(h, "code", "كود") },
	},
	fieldGender: {
		func(h string) bool { return containsAny(h, "gender", "sex", "الجنس", "النوع") },
	},
	fieldDiagnosis: {
		func(h string) bool { return containsAny(h, "diagnos", "التشخيص") },
	},
	fieldStatus: {
		func(h string) bool { return containsAny(h, "status", "الحالة") },
	},
	fieldVisitedDate: {
		func(h string) bool { return containsAny(h, "visit", "admission", "الزيارة", "الدخول") },
		func(h string) bool {
			return containsAny(h, "date", "تاريخ") && !containsAny(h, "birth", "الميلاد", "created", "updated")
		},
	},
	fieldDateOfBirth: {
		func(h string) bool { return containsAny(h, "birth", "dob", "الميلاد") },
	},
	fieldAge: {
		func(h string) bool { return h == "age" || strings.HasPrefix(h, "age ") || containsAny(h, "العمر", "السن") },
	},
	fieldNotes: {
		func(h string) bool { return containsAny(h, "note", "ملاحظات") },
	},
	fieldPhone: {
		func(h string) bool { return containsAny(h, "phone", "mobile", "هاتف", "موبايل", "تليفون") },
	},
	fieldCreatedAt: {
		func(h string) bool { return strings.Contains(h, "created") },
	},
}

// source resolves canonical fields against a raw record of a given shape.
type source struct {
	raw   RawRecord
	shape Shape
}

func (s source) spreadsheet() bool {
	return s.shape == SpreadsheetRow
}

// sortedKeys returns the record keys in a stable order.
func (s source) sortedKeys() []string {
	keys := make([]string, 0, len(s.raw))
	for k := range s.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findHeader returns the first header matched by the earliest tier.
func (s source) findHeader(tiers []headerMatcher) (string, bool) {
	keys := s.sortedKeys()
	for _, match := range tiers {
		for _, k := range keys {
			if match(fold(k)) {
				return k, true
			}
		}
	}
	return "", false
}

// lookup returns the raw value of a canonical field and whether the field is
// present at all. A present field may still hold an empty value.
func (s source) lookup(field string) (interface{}, bool) {
	if !s.spreadsheet() {
		v, ok := s.raw[field]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
	tiers, ok := spreadsheetColumns[field]
	if !ok {
		return nil, false
	}
	header, ok := s.findHeader(tiers)
	if !ok {
		return nil, false
	}
	return s.raw[header], true
}

// consumedHeaders returns the spreadsheet headers selected by a rule.
// Headers that match a field but lose to an earlier column are not consumed.
func (s source) consumedHeaders() map[string]bool {
	used := make(map[string]bool)
	if h, ok := s.findHeader(nameMatchers); ok {
		used[h] = true
	}
	for _, tiers := range spreadsheetColumns {
		if h, ok := s.findHeader(tiers); ok {
			used[h] = true
		}
	}
	return used
}
