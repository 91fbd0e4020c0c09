package util

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// captureLogger swaps the process logger for one writing to a buffer and
// restores it when the test ends.
func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	original := Logger()
	SetLogger(zerolog.New(buf))
	t.Cleanup(func() { SetLogger(original) })
	return buf
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "removes newlines", input: "hello\nworld", expected: "hello world"},
		{name: "removes carriage returns", input: "hello\rworld", expected: "hello world"},
		{name: "removes tabs", input: "hello\tworld", expected: "hello world"},
		{name: "truncates long values", input: strings.Repeat("a", 250), expected: strings.Repeat("a", 200) + "..."},
		{name: "handles empty string", input: "", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeLogValue(tt.input))
		})
	}
}

func TestLogAuditEventWritesLog(t *testing.T) {
	buf := captureLogger(t)
	SetAuditLoggerDB(nil)

	LogAuditEvent(AuditEvent{
		EventType: EventPatientCreated,
		Actor:     "dr@clinic.test",
		IP:        "10.0.0.1",
		Message:   "created\ninjected",
		Details:   map[string]interface{}{"code": "2024/11/0001"},
	})

	out := buf.String()
	assert.Contains(t, out, `"audit":"PATIENT_CREATED"`)
	assert.Contains(t, out, `"actor":"dr@clinic.test"`)
	assert.Contains(t, out, `"details_count":1`)
	assert.Contains(t, out, "created injected")
	assert.NotContains(t, out, "2024/11/0001")
}

func TestLogAuditEventPersists(t *testing.T) {
	captureLogger(t)
	dsn := fmt.Sprintf("file:audit_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AuditLog{}))
	SetAuditLoggerDB(db)
	t.Cleanup(func() { SetAuditLoggerDB(nil) })

	LogRateLimitExceeded("nurse@clinic.test", "10.0.0.2", "/patient/import")

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, string(EventRateLimitExceeded), logs[0].EventType)
	assert.Equal(t, "nurse@clinic.test", logs[0].Actor)
	assert.Contains(t, logs[0].Message, "/patient/import")
}
