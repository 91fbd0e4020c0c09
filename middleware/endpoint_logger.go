package middleware

import (
	"fmt"
	"time"

	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

// EndpointCallLogger logs each HTTP request as an audit event. Events are
// persisted when util.SetAuditLoggerDB was called during startup.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		details := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"raw_path":    c.Request.URL.Path,
			"status":      status,
			"duration_ms": duration.Milliseconds(),
			"query":       c.Request.URL.RawQuery,
		}
		actor := ""
		if account := GetAccount(c); account != nil {
			actor = account.Email
			details["role"] = account.Role
		}

		util.LogAuditEvent(util.AuditEvent{
			EventType: util.EventEndpointCall,
			Actor:     actor,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			Details:   details,
		})
	}
}
