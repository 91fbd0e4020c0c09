package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImporter(store ImportStore, opts ...ImporterOption) *Importer {
	base := []ImporterOption{WithImportClock(fixedClock), WithImportLogger(zerolog.Nop())}
	return NewImporter(store, append(base, opts...)...)
}

func TestImportBatchIsolatesMissingName(t *testing.T) {
	store := newMemStore()
	rows := []RawRecord{
		{"fullNameArabic": "علي", "diagnoses": []interface{}{"Hernia"}},
		{"gender": "female"},
		{"name": "Sara"},
	}

	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONArray)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, []string{"Failed to import row 2: missing required field: fullNameArabic"}, result.Errors)
	assert.Equal(t, []string{"2024/11/0001", "2024/11/0002"}, store.codes())
}

func TestImportBatchLabelsPreferCodeThenName(t *testing.T) {
	store := newMemStore(model.Patient{ID: "taken", Code: "2024/01/0001"})
	rows := []RawRecord{
		{"code": "2024/01/0001", "name": "Dup"},
		{"code": "", "Code": "x"},
	}

	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONExport)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Failed to import 2024/01/0001: patient code 2024/01/0001 already registered to taken", result.Errors[0])
	assert.Equal(t, "Failed to import row 2: missing required field: fullNameArabic", result.Errors[1])
	assert.Zero(t, result.SuccessCount)
}

func TestImportBatchSpreadsheetLabelUsesName(t *testing.T) {
	store := newMemStore()
	store.saveErr["2024/11/0001"] = errBoom

	result := newTestImporter(store).ImportBatch(context.Background(), []RawRecord{{"Name (Arabic)": "Omar"}}, SpreadsheetRow)

	assert.Equal(t, []string{"Failed to import 2024/11/0001: store save failed: boom"}, result.Errors)

	assert.Equal(t, "Omar", rowLabel(RawRecord{"Name (Arabic)": "Omar"}, SpreadsheetRow, 0))
	assert.Equal(t, "2024/02/0002", rowLabel(RawRecord{"Code": "2024/02/0002", "Name": "Omar"}, SpreadsheetRow, 0))
	assert.Equal(t, "row 4", rowLabel(RawRecord{"Phone": "1"}, SpreadsheetRow, 3))
}

func TestImportBatchAccountsForEveryRow(t *testing.T) {
	var rows []RawRecord
	for i := 0; i < 12; i++ {
		if i%4 == 1 {
			rows = append(rows, RawRecord{"notes": "no name"})
			continue
		}
		rows = append(rows, RawRecord{"name": fmt.Sprintf("Patient %d", i)})
	}

	store := newMemStore(model.Patient{Code: "2024/11/0003"})
	store.saveErr["2024/11/0005"] = errBoom
	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONArray)
	assert.Equal(t, len(rows), result.SuccessCount+len(result.Errors))
	// nine rows normalize; 0003 collides with the seeded record and 0005 fails to save
	assert.Equal(t, 7, result.SuccessCount)
}

func TestImportBatchLargeBatchCodesStayUnique(t *testing.T) {
	store := newMemStore()
	rows := make([]RawRecord, 50)
	for i := range rows {
		rows[i] = RawRecord{"name": fmt.Sprintf("P%d", i)}
	}

	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONArray)

	assert.Equal(t, 50, result.SuccessCount)
	assert.Empty(t, result.Errors)
	codes := store.codes()
	require.Len(t, codes, 50)
	for i, code := range codes {
		assert.Equal(t, FormatCode(2024, 11, i+1), code)
	}
	all, _ := store.ListAll(context.Background())
	assert.Empty(t, FindDuplicateCodes(all))
}

func TestImportBatchEarlierRowKeepsSharedCode(t *testing.T) {
	store := newMemStore()
	rows := []RawRecord{
		{"name": "A"},
		{"name": "B"},
		{"code": "2024/11/0002", "name": "C"},
	}

	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONArray)

	assert.Equal(t, 2, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Failed to import 2024/11/0002: patient code 2024/11/0002 already registered")

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	byCode := map[string]string{}
	for _, p := range all {
		byCode[p.Code] = p.FullNameArabic
	}
	assert.Equal(t, map[string]string{"2024/11/0001": "A", "2024/11/0002": "B"}, byCode)
}

func TestImportBatchOwnCodesDoNotAdvanceCounter(t *testing.T) {
	store := newMemStore()
	rows := []RawRecord{
		{"name": "A"},
		{"code": "2024/11/0050", "name": "B"},
		{"name": "C"},
		{"code": "2023/01/0009", "name": "D"},
		{"name": "E"},
	}

	result := newTestImporter(store).ImportBatch(context.Background(), rows, JSONArray)

	assert.Equal(t, 5, result.SuccessCount)
	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	byName := map[string]string{}
	for _, p := range all {
		byName[p.FullNameArabic] = p.Code
	}
	assert.Equal(t, map[string]string{
		"A": "2024/11/0001",
		"B": "2024/11/0050",
		"C": "2024/11/0002",
		"D": "2023/01/0009",
		"E": "2024/11/0003",
	}, byName)
}

func TestImportBatchLiveStrategyContinuesSequence(t *testing.T) {
	existing := model.Patient{Code: "2024/11/0007"}

	batch := newMemStore(existing)
	res := newTestImporter(batch).ImportBatch(context.Background(), []RawRecord{{"name": "A"}}, JSONArray)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Contains(t, batch.codes(), "2024/11/0001", "batch numbering starts at 1")

	live := newMemStore(existing)
	res = newTestImporter(live, WithCodeStrategy(CodeStrategyLive)).ImportBatch(context.Background(), []RawRecord{{"name": "A"}, {"name": "B"}}, JSONArray)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, []string{"2024/11/0007", "2024/11/0008", "2024/11/0009"}, live.codes())
}

func TestImportBatchBatchStrategyCollidesWithStore(t *testing.T) {
	store := newMemStore(model.Patient{ID: "old", Code: "2024/11/0001"})

	res := newTestImporter(store).ImportBatch(context.Background(), []RawRecord{{"name": "A"}, {"name": "B"}}, JSONArray)

	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "2024/11/0001 already registered")
}

func TestImportBatchLiveSeedFallsBackOnListError(t *testing.T) {
	store := newMemStore()
	store.listErr = errBoom
	assert.Equal(t, 1, newTestImporter(store, WithCodeStrategy(CodeStrategyLive)).seed(context.Background()))
}

func TestImportBatchCancelledContext(t *testing.T) {
	store := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestImporter(store).ImportBatch(ctx, []RawRecord{{"name": "A"}, {"name": "B"}}, JSONArray)

	assert.Zero(t, res.SuccessCount)
	assert.Len(t, res.Errors, 2)
	assert.Zero(t, store.saveCall)
}

func TestImportBatchEmpty(t *testing.T) {
	res := newTestImporter(newMemStore()).ImportBatch(context.Background(), nil, JSONArray)
	assert.Zero(t, res.SuccessCount)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Errors)
}

func TestParseCodeStrategy(t *testing.T) {
	s, err := ParseCodeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, CodeStrategyBatch, s)

	s, err = ParseCodeStrategy(" LIVE ")
	require.NoError(t, err)
	assert.Equal(t, CodeStrategyLive, s)

	_, err = ParseCodeStrategy("random")
	assert.Error(t, err)
}
