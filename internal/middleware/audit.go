package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/models"
	"github.com/noah-isme/office-scheduler/pkg/middleware/requestid"
)

// Context keys read by Audit.
const (
	ContextAuditDetailsKey  = "audit_details"
	ContextAuditResourceKey = "audit_resource_id"
)

// AuditRecorder persists audit rows.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditDetails attaches handler-specific fields to the audit row of this request.
func SetAuditDetails(c *gin.Context, details map[string]interface{}) {
	current, _ := c.Get(ContextAuditDetailsKey)
	merged, _ := current.(map[string]interface{})
	if merged == nil {
		merged = map[string]interface{}{}
	}
	for k, v := range details {
		merged[k] = v
	}
	c.Set(ContextAuditDetailsKey, merged)
}

// SetAuditResourceID overrides the audited resource id, e.g. for created rows.
func SetAuditResourceID(c *gin.Context, id string) {
	c.Set(ContextAuditResourceKey, id)
}

// Audit creates a middleware that records audit logs after successful requests.
func Audit(repo AuditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *int64
		if identity, ok := CurrentIdentity(c); ok {
			id := identity.ID
			userID = &id
		}

		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}
		if value, ok := c.Get(ContextAuditResourceKey); ok {
			if id, ok := value.(string); ok && id != "" {
				resourceID = &id
			}
		}

		payload := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if reqID := requestid.Value(c); reqID != "" {
			payload["request_id"] = reqID
		}
		if value, ok := c.Get(ContextAuditDetailsKey); ok {
			if details, ok := value.(map[string]interface{}); ok {
				for k, v := range details {
					payload[k] = v
				}
			}
		}
		body, _ := json.Marshal(payload)

		if err := repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}); err != nil {
			logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
		}
	}
}
