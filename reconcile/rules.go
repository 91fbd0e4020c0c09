package reconcile

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"gorm.io/datatypes"
)

const (
	isoDate = "2006-01-02"
	// spreadsheetEpochThreshold is the serial of 1970-01-01 in the 1900 date
	// system; larger numbers are read as date serials.
	spreadsheetEpochThreshold = 25569
	unknownName               = "Unknown"
)

var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ruleEnv carries what a rule may need besides the record itself.
type ruleEnv struct {
	now   time.Time
	codes CodeSequence
}

// rule is one normalization step. Rules read the source and write their own
// fields of the output; none of them depends on another having run, except
// passthrough, which only skips what the others consume.
type rule struct {
	name  string
	apply func(src source, env ruleEnv, out *model.Patient) error
}

// normalizationRules run in this order.
var normalizationRules = []rule{
	{"name", resolveName},
	{"gender", resolveGender},
	{"diagnoses", resolveDiagnoses},
	{"status", resolveStatus},
	{"visitedDate", resolveVisitedDate},
	{"code", resolveCode},
	{"timestamps", resolveTimestamps},
	{"clinical", resolveClinical},
	{"passthrough", resolvePassthrough},
}

// text converts a raw cell or JSON value to a trimmed string.
func text(v interface{}) string {
	if v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(cast.ToString(v))
}

// resolveName fills FullNameArabic from fullNameArabic, then fullName, then
// name. A record with none of those fields is rejected; one whose name fields
// are all blank becomes "Unknown".
func resolveName(src source, _ ruleEnv, out *model.Patient) error {
	if src.spreadsheet() {
		header, ok := src.findHeader(nameMatchers)
		if !ok {
			return &MissingRequiredFieldError{Field: fieldFullNameArabic}
		}
		out.FullNameArabic = orDefault(util.NormalizeName(text(src.raw[header])), unknownName)
		return nil
	}

	arabic, hasArabic := src.lookup(fieldFullNameArabic)
	full, hasFull := src.lookup(fieldFullName)
	plain, hasPlain := src.lookup(fieldName)
	if !hasArabic && !hasFull && !hasPlain {
		return &MissingRequiredFieldError{Field: fieldFullNameArabic}
	}
	out.FullName = util.NormalizeName(text(full))
	name := util.NormalizeName(text(arabic))
	if name == "" {
		name = out.FullName
	}
	if name == "" {
		name = util.NormalizeName(text(plain))
	}
	out.FullNameArabic = orDefault(name, unknownName)
	return nil
}

// ResolveGender maps free text to a gender. Anything not recognized as female
// or other, including an empty value, is Male; this default is inherited from
// the clinic's intake sheets and kept on purpose.
func ResolveGender(value string) string {
	v := fold(value)
	switch {
	case containsAny(v, "female", "أنثى", "انثى"):
		return model.GenderFemale
	case containsAny(v, "other", "أخرى", "اخرى"):
		return model.GenderOther
	default:
		return model.GenderMale
	}
}

func resolveGender(src source, _ ruleEnv, out *model.Patient) error {
	v, _ := src.lookup(fieldGender)
	out.Gender = ResolveGender(text(v))
	return nil
}

// resolveDiagnoses prefers the diagnoses list, falls back to the legacy
// single diagnosis and always recomputes the derived Diagnosis.
func resolveDiagnoses(src source, _ ruleEnv, out *model.Patient) error {
	var diagnoses []string
	if v, ok := src.lookup(fieldDiagnoses); ok {
		diagnoses = stringList(v)
	}
	if len(diagnoses) == 0 {
		if v, ok := src.lookup(fieldDiagnosis); ok {
			legacy := text(v)
			if legacy != "" && legacy != model.UndiagnosedLabel {
				diagnoses = []string{legacy}
			}
		}
	}
	out.Diagnoses = datatypes.JSONSlice[string](diagnoses)
	if out.Diagnoses == nil {
		out.Diagnoses = datatypes.JSONSlice[string]{}
	}
	out.Diagnosis = PrimaryDiagnosis(diagnoses)
	return nil
}

// PrimaryDiagnosis is the legacy single-diagnosis projection of diagnoses.
func PrimaryDiagnosis(diagnoses []string) string {
	if len(diagnoses) == 0 {
		return model.UndiagnosedLabel
	}
	return diagnoses[0]
}

// ResolveStatus maps free text to a pathway status. Only manual entry can
// select Op; imports resolve to Diagnosed, Pre-op or Post-op.
func ResolveStatus(value string, shape Shape) string {
	v := fold(value)
	if shape == Manual {
		for _, s := range model.Statuses {
			if v == fold(s) {
				return s
			}
		}
	}
	switch {
	case containsAny(v, "pre", "قبل"):
		return model.StatusPreOp
	case containsAny(v, "post", "بعد"):
		return model.StatusPostOp
	default:
		return model.StatusDiagnosed
	}
}

func resolveStatus(src source, _ ruleEnv, out *model.Patient) error {
	v, _ := src.lookup(fieldStatus)
	out.Status = ResolveStatus(text(v), src.shape)
	return nil
}

// resolveVisitedDate fills VisitedDate and mirrors it into AdmissionDate.
func resolveVisitedDate(src source, env ruleEnv, out *model.Patient) error {
	date := ""
	if v, ok := src.lookup(fieldVisitedDate); ok {
		date = dateValue(v, src.spreadsheet())
	}
	if date == "" {
		if v, ok := src.lookup(fieldAdmissionDate); ok {
			date = dateValue(v, src.spreadsheet())
		}
	}
	if date == "" {
		date = env.now.Format(isoDate)
	}
	out.VisitedDate = date
	out.AdmissionDate = date
	return nil
}

// dateValue renders a raw date. Spreadsheet numbers past the 1970 threshold
// are serial day counts; everything else is taken literally.
func dateValue(v interface{}, spreadsheet bool) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(isoDate)
	case map[string]interface{}:
		if ts, ok := timestampValue(t); ok {
			return ts.Format(isoDate)
		}
		return ""
	}
	s := text(v)
	if spreadsheet {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > spreadsheetEpochThreshold {
			return SerialToDate(serial).Format(isoDate)
		}
	}
	return s
}

// SerialToDate converts a spreadsheet serial date (days since 1899-12-30).
func SerialToDate(serial float64) time.Time {
	days := math.Floor(serial)
	frac := serial - days
	return spreadsheetEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)))
}

// resolveCode keeps a supplied code; otherwise it draws one from the code
// sequence when the caller provided one.
func resolveCode(src source, env ruleEnv, out *model.Patient) error {
	if v, ok := src.lookup(fieldCode); ok {
		if code := text(v); code != "" {
			out.Code = code
			return nil
		}
	}
	if env.codes != nil {
		out.Code = env.codes.Next(env.now)
	}
	return nil
}

// resolveTimestamps preserves a parseable createdAt and stamps updatedAt.
func resolveTimestamps(src source, env ruleEnv, out *model.Patient) error {
	out.CreatedAt = env.now
	if v, ok := src.lookup(fieldCreatedAt); ok {
		if ts, ok := parseTimestamp(v, src.spreadsheet()); ok {
			out.CreatedAt = ts
		}
	}
	out.UpdatedAt = env.now
	return nil
}

// resolveClinical fills the remaining typed fields: age, surgeries,
// follow-ups, files, contact info, planned surgery and notes.
func resolveClinical(src source, env ruleEnv, out *model.Patient) error {
	if v, ok := src.lookup(fieldDateOfBirth); ok {
		out.DateOfBirth = dateValue(v, src.spreadsheet())
	}
	out.Age = resolveAge(src, out.DateOfBirth, env.now)

	if v, ok := src.lookup(fieldNotes); ok {
		out.Notes = text(v)
	}

	if !src.spreadsheet() {
		if v, ok := src.lookup(fieldSurgeries); ok {
			var surgeries []model.Surgery
			if err := decodeWeak(v, &surgeries); err == nil {
				out.Surgeries = datatypes.JSONSlice[model.Surgery](surgeries)
			}
		}
		if v, ok := src.lookup(fieldFollowUps); ok {
			var followUps []model.FollowUp
			if err := decodeWeak(v, &followUps); err == nil {
				out.FollowUps = datatypes.JSONSlice[model.FollowUp](Renumber(followUps))
			}
		}
		if v, ok := src.lookup(fieldFiles); ok {
			var files []model.Attachment
			if err := decodeWeak(v, &files); err == nil && len(files) > 0 {
				out.Files = datatypes.JSONSlice[model.Attachment](files)
			}
		}
		if v, ok := src.lookup(fieldContactInfo); ok {
			if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
				out.ContactInfo = datatypes.JSONMap(copyMap(m))
			}
		}
		if v, ok := src.lookup(fieldPlannedSurgery); ok {
			if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
				out.PlannedSurgery = datatypes.JSONMap(copyMap(m))
			}
		}
	}

	if v, ok := src.lookup(fieldPhone); ok {
		if phone := text(v); phone != "" {
			if out.ContactInfo == nil {
				out.ContactInfo = datatypes.JSONMap{}
			}
			if _, exists := out.ContactInfo[fieldPhone]; !exists {
				out.ContactInfo[fieldPhone] = phone
			}
		}
	}
	if out.Surgeries == nil {
		out.Surgeries = datatypes.JSONSlice[model.Surgery]{}
	}
	if out.FollowUps == nil {
		out.FollowUps = datatypes.JSONSlice[model.FollowUp]{}
	}
	return nil
}

// resolvePassthrough keeps every field no other rule consumes in Extra, so
// records exported by newer versions survive an import unchanged. Nil values
// and, for spreadsheets, empty cells are dropped.
func resolvePassthrough(src source, _ ruleEnv, out *model.Patient) error {
	extra := make(map[string]interface{})
	if !src.spreadsheet() {
		if nested, ok := src.raw[fieldExtra].(map[string]interface{}); ok {
			for k, v := range nested {
				if v != nil {
					extra[k] = copyValue(v)
				}
			}
		}
		for k, v := range src.raw {
			if knownJSONFields[k] || v == nil {
				continue
			}
			extra[k] = copyValue(v)
		}
		// values the clinical rule cannot type are kept as they came
		for _, k := range []string{fieldContactInfo, fieldPlannedSurgery} {
			if v, ok := src.raw[k]; ok && v != nil {
				if _, isMap := v.(map[string]interface{}); !isMap {
					extra[k] = copyValue(v)
				}
			}
		}
		for k, target := range map[string]func() interface{}{
			fieldSurgeries: func() interface{} { return &[]model.Surgery{} },
			fieldFollowUps: func() interface{} { return &[]model.FollowUp{} },
			fieldFiles:     func() interface{} { return &[]model.Attachment{} },
		} {
			if v, ok := src.raw[k]; ok && v != nil {
				if err := decodeWeak(v, target()); err != nil {
					extra[k] = copyValue(v)
				}
			}
		}
	} else {
		used := src.consumedHeaders()
		for k, v := range src.raw {
			if used[k] || v == nil || text(v) == "" {
				continue
			}
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		out.Extra = datatypes.JSONMap(extra)
	}
	return nil
}

func resolveAge(src source, dateOfBirth string, now time.Time) float64 {
	if dateOfBirth != "" {
		if dob, err := time.Parse(isoDate, dateOfBirth); err == nil {
			return AgeAt(dob, now)
		}
	}
	if v, ok := src.lookup(fieldAge); ok {
		if age, err := cast.ToFloat64E(text(v)); err == nil && age >= 0 {
			return age
		}
	}
	return 0
}

// AgeAt returns the age in years at now. Children under one year get a
// fraction (months/12, or days/365 under a month) rounded to two decimals.
func AgeAt(dob, now time.Time) float64 {
	if dob.After(now) {
		return 0
	}
	months := (now.Year()-dob.Year())*12 + int(now.Month()) - int(dob.Month())
	if now.Day() < dob.Day() {
		months--
	}
	if months >= 12 {
		return float64(months / 12)
	}
	if months > 0 {
		return round2(float64(months) / 12)
	}
	days := now.Sub(dob).Hours() / 24
	return round2(days / 365)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// parseTimestamp accepts time values, RFC 3339 / ISO strings, unix
// seconds/milliseconds and exported document-store timestamps.
func parseTimestamp(v interface{}, spreadsheet bool) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case map[string]interface{}:
		return timestampValue(t)
	}
	s := text(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", isoDate} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if spreadsheet && n > spreadsheetEpochThreshold && n < 2958466 {
			return SerialToDate(n), true
		}
		if n > 1e12 {
			return time.UnixMilli(int64(n)), true
		}
		if n > 0 {
			return time.Unix(int64(n), 0), true
		}
	}
	return time.Time{}, false
}

// timestampValue reads {seconds, nanoseconds} objects as written by the
// document store's JSON export.
func timestampValue(m map[string]interface{}) (time.Time, bool) {
	for _, key := range []string{"seconds", "_seconds"} {
		if raw, ok := m[key]; ok {
			secs, err := cast.ToInt64E(raw)
			if err != nil {
				return time.Time{}, false
			}
			var nanos int64
			for _, nk := range []string{"nanoseconds", "_nanoseconds"} {
				if n, ok := m[nk]; ok {
					nanos = cast.ToInt64(n)
				}
			}
			return time.Unix(secs, nanos).UTC(), true
		}
	}
	return time.Time{}, false
}

// stringList reads a diagnoses-like value; a single string is one entry.
// Blank entries are dropped.
func stringList(v interface{}) []string {
	var items []string
	switch t := v.(type) {
	case string:
		items = []string{t}
	case []string:
		items = t
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			items = append(items, text(rv.Index(i).Interface()))
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// decodeWeak decodes loosely typed JSON or form data into out.
func decodeWeak(in interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
