package reconcile

import (
	"testing"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func normalize(t *testing.T, raw RawRecord, shape Shape) model.Patient {
	t.Helper()
	p, err := NewNormalizer(WithClock(fixedClock)).Normalize(raw, shape)
	require.NoError(t, err)
	return p
}

func TestNormalizeManualDefaults(t *testing.T) {
	p := normalize(t, RawRecord{"fullName": "Ali", "diagnosis": ""}, Manual)

	assert.Equal(t, "Ali", p.FullNameArabic)
	assert.Equal(t, model.UndiagnosedLabel, p.Diagnosis)
	assert.Empty(t, p.Diagnoses)
	assert.NotNil(t, p.Diagnoses)
	assert.Equal(t, model.GenderMale, p.Gender)
	assert.Equal(t, model.StatusDiagnosed, p.Status)
	assert.Equal(t, "2024-11-05", p.VisitedDate)
	assert.Equal(t, p.VisitedDate, p.AdmissionDate)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, fixedNow, p.UpdatedAt)
	assert.Empty(t, p.Code, "no sequence configured")
	assert.NotNil(t, p.Surgeries)
	assert.NotNil(t, p.FollowUps)
}

func TestNormalizeSpreadsheetOtherGender(t *testing.T) {
	p := normalize(t, RawRecord{"name": "Sara", "gender": "اخرى"}, SpreadsheetRow)
	assert.Equal(t, "Sara", p.FullNameArabic)
	assert.Equal(t, model.GenderOther, p.Gender)
}

func TestNormalizeMissingNameFails(t *testing.T) {
	n := NewNormalizer(WithClock(fixedClock))

	_, err := n.Normalize(RawRecord{"code": "2024/11/0001"}, JSONArray)
	var missing *MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "fullNameArabic", missing.Field)
	assert.Equal(t, "missing required field: fullNameArabic", err.Error())

	_, err = n.Normalize(RawRecord{"Phone": "0100"}, SpreadsheetRow)
	require.ErrorAs(t, err, &missing)
}

func TestNormalizeBlankNameIsUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", normalize(t, RawRecord{"fullNameArabic": "  "}, Manual).FullNameArabic)
	assert.Equal(t, "Unknown", normalize(t, RawRecord{"Name": ""}, SpreadsheetRow).FullNameArabic)
}

func TestNormalizeNamePrecedence(t *testing.T) {
	p := normalize(t, RawRecord{"fullNameArabic": "  علي   حسن ", "fullName": "Ali Hassan", "name": "x"}, JSONExport)
	assert.Equal(t, "علي حسن", p.FullNameArabic)
	assert.Equal(t, "Ali Hassan", p.FullName)

	p = normalize(t, RawRecord{"name": "Plain"}, JSONArray)
	assert.Equal(t, "Plain", p.FullNameArabic)
}

func TestResolveGender(t *testing.T) {
	cases := map[string]string{
		"Female":  model.GenderFemale,
		"FEMALE ": model.GenderFemale,
		"أنثى":    model.GenderFemale,
		"انثى":    model.GenderFemale,
		"other":   model.GenderOther,
		"أخرى":    model.GenderOther,
		"male":    model.GenderMale,
		"":        model.GenderMale,
		"unknown": model.GenderMale,
	}
	for in, want := range cases {
		assert.Equal(t, want, ResolveGender(in), in)
	}
}

func TestResolveStatus(t *testing.T) {
	assert.Equal(t, model.StatusPreOp, ResolveStatus("pre-op", SpreadsheetRow))
	assert.Equal(t, model.StatusPreOp, ResolveStatus("قبل العملية", JSONExport))
	assert.Equal(t, model.StatusPostOp, ResolveStatus("Post op", SpreadsheetRow))
	assert.Equal(t, model.StatusPostOp, ResolveStatus("بعد", JSONArray))
	assert.Equal(t, model.StatusDiagnosed, ResolveStatus("", SpreadsheetRow))

	assert.Equal(t, model.StatusDiagnosed, ResolveStatus("Op", SpreadsheetRow), "imports never produce Op")
	assert.Equal(t, model.StatusDiagnosed, ResolveStatus("Op", JSONExport))
	assert.Equal(t, model.StatusOp, ResolveStatus("op", Manual))
	assert.Equal(t, model.StatusPostOp, ResolveStatus("Post-op", Manual))
}

func TestNormalizeDiagnoses(t *testing.T) {
	p := normalize(t, RawRecord{"name": "A", "diagnoses": []interface{}{"Hypospadias", " ", "Hernia"}, "diagnosis": "ignored"}, JSONExport)
	assert.Equal(t, []string{"Hypospadias", "Hernia"}, []string(p.Diagnoses))
	assert.Equal(t, "Hypospadias", p.Diagnosis)

	p = normalize(t, RawRecord{"name": "A", "diagnoses": []interface{}{}, "diagnosis": "Phimosis"}, JSONExport)
	assert.Equal(t, []string{"Phimosis"}, []string(p.Diagnoses))

	p = normalize(t, RawRecord{"Name": "A", "Diagnosis": "Undescended testis"}, SpreadsheetRow)
	assert.Equal(t, []string{"Undescended testis"}, []string(p.Diagnoses))
}

func TestNormalizeVisitedDateFallbacks(t *testing.T) {
	p := normalize(t, RawRecord{"name": "A", "admissionDate": "2024-01-02"}, JSONArray)
	assert.Equal(t, "2024-01-02", p.VisitedDate)
	assert.Equal(t, "2024-01-02", p.AdmissionDate)

	p = normalize(t, RawRecord{"name": "A", "visitedDate": "2024-03-04", "admissionDate": "2024-01-02"}, JSONArray)
	assert.Equal(t, "2024-03-04", p.AdmissionDate)

	p = normalize(t, RawRecord{"Name": "A", "Visit Date": "45601"}, SpreadsheetRow)
	assert.Equal(t, "2024-11-05", p.VisitedDate)

	p = normalize(t, RawRecord{"Name": "A", "Visit Date": float64(45601)}, SpreadsheetRow)
	assert.Equal(t, "2024-11-05", p.VisitedDate)

	p = normalize(t, RawRecord{"Name": "A", "Visit Date": "2023-12-01"}, SpreadsheetRow)
	assert.Equal(t, "2023-12-01", p.VisitedDate)

	p = normalize(t, RawRecord{"Name": "A", "Visit Date": ""}, SpreadsheetRow)
	assert.Equal(t, "2024-11-05", p.VisitedDate)
}

func TestSerialToDate(t *testing.T) {
	assert.Equal(t, "1970-01-01", SerialToDate(25569).Format("2006-01-02"))
	assert.Equal(t, "2024-11-05", SerialToDate(45601.75).Format("2006-01-02"))
}

func TestNormalizeCodeSequence(t *testing.T) {
	seq := NewBatchSequence(1)
	n := NewNormalizer(WithClock(fixedClock), WithCodeSequence(seq))

	a, err := n.Normalize(RawRecord{"name": "A"}, JSONArray)
	require.NoError(t, err)
	b, err := n.Normalize(RawRecord{"name": "B", "code": "1999/01/0005"}, JSONArray)
	require.NoError(t, err)
	c, err := n.Normalize(RawRecord{"name": "C", "code": ""}, JSONArray)
	require.NoError(t, err)

	assert.Equal(t, "2024/11/0001", a.Code)
	assert.Equal(t, "1999/01/0005", b.Code, "supplied codes are kept and do not advance the counter")
	assert.Equal(t, "2024/11/0002", c.Code)
}

func TestNewBatchSequenceClampsStart(t *testing.T) {
	assert.Equal(t, "2024/11/0001", NewBatchSequence(-3).Next(fixedNow))
	assert.Equal(t, "2024/11/0040", NewBatchSequence(40).Next(fixedNow))
}

func TestNormalizeTimestamps(t *testing.T) {
	p := normalize(t, RawRecord{"name": "A", "createdAt": "2023-05-06T07:08:09Z"}, JSONExport)
	assert.True(t, time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC).Equal(p.CreatedAt))
	assert.Equal(t, fixedNow, p.UpdatedAt)

	p = normalize(t, RawRecord{"name": "A", "createdAt": map[string]interface{}{"seconds": float64(1700000000), "nanoseconds": float64(0)}}, JSONExport)
	assert.True(t, time.Unix(1700000000, 0).Equal(p.CreatedAt))

	p = normalize(t, RawRecord{"name": "A", "createdAt": "not a date"}, JSONExport)
	assert.Equal(t, fixedNow, p.CreatedAt)
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 5.0, AgeAt(time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 4.0, AgeAt(time.Date(2019, 11, 6, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0.5, AgeAt(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0.04, AgeAt(time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0.0, AgeAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestNormalizeClinicalFields(t *testing.T) {
	raw := RawRecord{
		"fullNameArabic": "A",
		"dateOfBirth":    "2020-11-05",
		"age":            float64(99),
		"surgeries": []interface{}{
			map[string]interface{}{"date": "2024-01-01", "type": "Elective", "cost": "1500", "currency": "EGP"},
		},
		"followUps": []interface{}{
			map[string]interface{}{"number": float64(7), "date": "2024-02-01", "notes": "fine"},
			map[string]interface{}{"date": "2024-03-01", "notes": "healed"},
		},
		"contactInfo": map[string]interface{}{"address": "Cairo", "email": nil},
		"phone":       "0100",
	}
	p := normalize(t, raw, JSONExport)

	assert.Equal(t, 4.0, p.Age, "age derives from date of birth")
	require.Len(t, p.Surgeries, 1)
	assert.Equal(t, 1500.0, p.Surgeries[0].Cost)
	require.Len(t, p.FollowUps, 2)
	assert.Equal(t, 1, p.FollowUps[0].Number)
	assert.Equal(t, 2, p.FollowUps[1].Number)
	assert.Equal(t, "healed", p.FollowUps[1].Notes)
	assert.Equal(t, "Cairo", p.ContactInfo["address"])
	assert.Equal(t, "0100", p.ContactInfo["phone"])
	assert.NotContains(t, p.ContactInfo, "email")
	assert.Nil(t, p.Extra)
}

func TestNormalizePassthrough(t *testing.T) {
	raw := RawRecord{
		"name":      "A",
		"insurance": map[string]interface{}{"provider": "X", "expires": nil},
		"referral":  "Dr. Y",
		"empty":     nil,
		"extra":     map[string]interface{}{"legacyId": float64(12)},
		"surgeries": "not a list",
	}
	p := normalize(t, raw, JSONExport)

	assert.Equal(t, "Dr. Y", p.Extra["referral"])
	assert.Equal(t, map[string]interface{}{"provider": "X"}, p.Extra["insurance"])
	assert.Equal(t, float64(12), p.Extra["legacyId"])
	assert.Equal(t, "not a list", p.Extra["surgeries"])
	assert.NotContains(t, p.Extra, "empty")
	assert.NotContains(t, p.Extra, "name")

	sheet := normalize(t, RawRecord{"Name": "A", "Referral": "Dr. Y", "Blank": "", "Gender": "F"}, SpreadsheetRow)
	assert.Equal(t, map[string]interface{}{"Referral": "Dr. Y"}, map[string]interface{}(sheet.Extra))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	raw := RawRecord{
		"name":        "  Ali  ",
		"diagnosis":   "Hernia",
		"contactInfo": map[string]interface{}{"address": "Cairo", "fax": nil},
		"followUps":   []interface{}{map[string]interface{}{"number": float64(3), "notes": "x"}},
	}
	want := RawRecord{
		"name":        "  Ali  ",
		"diagnosis":   "Hernia",
		"contactInfo": map[string]interface{}{"address": "Cairo", "fax": nil},
		"followUps":   []interface{}{map[string]interface{}{"number": float64(3), "notes": "x"}},
	}
	_ = normalize(t, raw, JSONExport)
	assert.Equal(t, want, raw)
}

func TestNormalizeIsIdempotentOnDerivedFields(t *testing.T) {
	shapes := []Shape{Manual, JSONExport, JSONArray}
	inputs := []RawRecord{
		{"fullName": "Ali", "diagnosis": ""},
		{"fullNameArabic": "سارة", "diagnoses": []interface{}{"Hernia"}, "status": "post", "gender": "female", "code": "2024/10/0009"},
		{"name": "Omar", "admissionDate": "2024-02-02", "dateOfBirth": "2022-02-02"},
	}
	for _, shape := range shapes {
		for _, in := range inputs {
			first := normalize(t, in, shape)
			raw, err := ToRaw(first)
			require.NoError(t, err)
			second := normalize(t, raw, shape)

			assert.Equal(t, first.Diagnosis, second.Diagnosis)
			assert.Equal(t, []string(first.Diagnoses), []string(second.Diagnoses))
			assert.Equal(t, first.VisitedDate, second.VisitedDate)
			assert.Equal(t, first.AdmissionDate, second.AdmissionDate)
			assert.Equal(t, first.Gender, second.Gender)
			assert.Equal(t, first.Status, second.Status)
			assert.Equal(t, first.FullNameArabic, second.FullNameArabic)
			assert.Equal(t, first.Age, second.Age)
			assert.Equal(t, first.Code, second.Code)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
			assert.Nil(t, second.Extra)
		}
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	in := RawRecord{
		"code":           "2024/11/0002",
		"fullNameArabic": "علي",
		"diagnoses":      []interface{}{"Hypospadias", "Chordee"},
	}
	p := normalize(t, in, JSONExport)
	out, err := ToRaw(p)
	require.NoError(t, err)

	assert.Equal(t, "2024/11/0002", out["code"])
	assert.Equal(t, []interface{}{"Hypospadias", "Chordee"}, out["diagnoses"])
	assert.Equal(t, "Hypospadias", out["diagnosis"])
}

func TestParseShape(t *testing.T) {
	for _, s := range []Shape{Manual, SpreadsheetRow, JSONExport, JSONArray} {
		got, err := ParseShape(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseShape("xml")
	assert.Error(t, err)
}
