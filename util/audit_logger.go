package util

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/A-tamer/hospital-management-system/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEventType represents the kind of audited action
type AuditEventType string

const (
	EventEndpointCall       AuditEventType = "ENDPOINT_CALL"
	EventPatientCreated     AuditEventType = "PATIENT_CREATED"
	EventPatientUpdated     AuditEventType = "PATIENT_UPDATED"
	EventPatientDeleted     AuditEventType = "PATIENT_DELETED"
	EventImportCompleted    AuditEventType = "IMPORT_COMPLETED"
	EventExport             AuditEventType = "EXPORT"
	EventBackup             AuditEventType = "BACKUP"
	EventAccountSaved       AuditEventType = "ACCOUNT_SAVED"
	EventUnauthorizedAccess AuditEventType = "UNAUTHORIZED_ACCESS"
	EventRateLimitExceeded  AuditEventType = "RATE_LIMIT_EXCEEDED"
)

// AuditEvent represents an event to be logged
type AuditEvent struct {
	EventType AuditEventType
	Actor     string
	IP        string
	UserAgent string
	Message   string
	Details   map[string]interface{}
}

var (
	auditDB   *gorm.DB
	auditDBMu sync.RWMutex
)

// SetAuditLoggerDB sets the gorm DB the audit logger persists to. Without
// one, events are only written to the process log.
func SetAuditLoggerDB(db *gorm.DB) {
	auditDBMu.Lock()
	defer auditDBMu.Unlock()
	auditDB = db
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	// Truncate very long values to prevent log flooding
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogAuditEvent logs an audit event and persists it best-effort.
func LogAuditEvent(event AuditEvent) {
	log := Logger()
	entry := log.Info().
		Str("audit", string(event.EventType)).
		Str("actor", sanitizeLogValue(event.Actor)).
		Str("ip", sanitizeLogValue(event.IP)).
		Str("user_agent", sanitizeLogValue(event.UserAgent))
	if len(event.Details) > 0 {
		// only the count; details can carry patient data
		entry = entry.Int("details_count", len(event.Details))
	}
	entry.Msg(sanitizeLogValue(event.Message))

	auditDBMu.RLock()
	db := auditDB
	auditDBMu.RUnlock()
	if db == nil {
		return
	}

	var details datatypes.JSON
	if event.Details != nil {
		if b, err := json.Marshal(event.Details); err == nil {
			details = datatypes.JSON(b)
		}
	}
	record := model.AuditLog{
		EventType: string(event.EventType),
		Actor:     sanitizeLogValue(event.Actor),
		IP:        sanitizeLogValue(event.IP),
		UserAgent: sanitizeLogValue(event.UserAgent),
		Message:   sanitizeLogValue(event.Message),
		Details:   details,
	}
	if err := db.Create(&record).Error; err != nil {
		log.Warn().Err(err).Msg("failed to persist audit event")
	}
}

// LogUnauthorizedAccess logs a request rejected for lack of a known account.
func LogUnauthorizedAccess(actor, ip, resource, reason string) {
	LogAuditEvent(AuditEvent{
		EventType: EventUnauthorizedAccess,
		Actor:     actor,
		IP:        ip,
		Message:   "Unauthorized access to " + resource + ": " + reason,
	})
}

// LogRateLimitExceeded logs when rate limit is exceeded
func LogRateLimitExceeded(actor, ip, endpoint string) {
	LogAuditEvent(AuditEvent{
		EventType: EventRateLimitExceeded,
		Actor:     actor,
		IP:        ip,
		Message:   "Rate limit exceeded for endpoint: " + endpoint,
	})
}
