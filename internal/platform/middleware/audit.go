package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schoolhealth/nurse-console/internal/platform/auth"
)

// AuditEntry records one state-changing call against the console API.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Kind       string
	RecordID   string
	Action     string // create, update, delete, or a workflow action
	Method     string
	Path       string
	StatusCode int
	RequestID  string
	Timestamp  time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every write under /api/v1 with the caller identity and hands
// the entry to each recorder. Reads are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method == http.MethodGet || req.Method == http.MethodHead || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := parseAuditPath(req.Method, req.URL.Path)
			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			entry.StatusCode = c.Response().Status
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.Timestamp = time.Now().UTC()

			logger.Info().
				Str("user", entry.UserID).
				Str("kind", entry.Kind).
				Str("record", entry.RecordID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("request_id", entry.RequestID).
				Msg("audit")
			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr != nil {
					logger.Error().Err(rerr).Msg("failed to record audit entry")
				}
			}
			return err
		}
	}
}

// parseAuditPath splits /api/v1/{kind}[/{id}[/{action}]].
func parseAuditPath(method, path string) AuditEntry {
	entry := AuditEntry{Method: method, Path: path}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	entry.Kind = parts[0]
	if len(parts) > 1 {
		entry.RecordID = parts[1]
	}
	switch {
	case len(parts) > 2:
		entry.Action = parts[2]
	case method == http.MethodPost:
		entry.Action = "create"
	case method == http.MethodPut || method == http.MethodPatch:
		entry.Action = "update"
	case method == http.MethodDelete:
		entry.Action = "delete"
	}
	return entry
}
