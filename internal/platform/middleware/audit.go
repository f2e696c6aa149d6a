package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/barangay/bhc/internal/platform/auth"
)

// AuditEntry describes one access to health-center records.
type AuditEntry struct {
	UserID       string
	UserRoles    []string
	TenantID     string
	ResourceType string
	PatientID    string
	Action       string // read, create, update, delete or a workflow verb
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries somewhere other than the log stream.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 request as a record_access event after the
// handler has run. Recorders, when given, receive the same entry.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isAuditablePath(c.Request().URL.Path) {
				return next(c)
			}
			err := next(c)
			entry := newAuditEntry(c, err)

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Str("tenant_id", entry.TenantID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")
			return err
		}
	}
}

func newAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	ctx := req.Context()
	entry := AuditEntry{
		UserID:       auth.UserIDFromContext(ctx),
		UserRoles:    auth.RolesFromContext(ctx),
		ResourceType: extractResourceType(req.URL.Path),
		PatientID:    extractPatientID(c),
		Action:       auditAction(req.Method, req.URL.Path),
		IPAddress:    c.RealIP(),
		UserAgent:    req.UserAgent(),
		Path:         req.URL.Path,
		Method:       req.Method,
		Timestamp:    time.Now().UTC(),
		StatusCode:   c.Response().Status,
	}
	entry.RequestID, _ = c.Get("request_id").(string)
	entry.TenantID, _ = c.Get("tenant_id").(string)
	if he, ok := err.(*echo.HTTPError); ok {
		entry.StatusCode = he.Code
	}
	return entry
}

// Workflow endpoints end in a verb; their audit action is the verb rather
// than a generic update.
var actionVerbs = map[string]string{
	"cancel":   "cancel",
	"complete": "complete",
	"confirm":  "confirm",
	"dispense": "dispense",
	"pdf":      "print",
}

func auditAction(method, path string) string {
	last := path[strings.LastIndex(path, "/")+1:]
	if verb, ok := actionVerbs[last]; ok {
		return verb
	}
	return httpMethodToAction(method)
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the first path segment under /api/v1, e.g.
// /api/v1/appointments/123/cancel -> appointments.
func extractResourceType(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractPatientID finds the patient a request is about, from
// /api/v1/patients/<uuid>/... or a patient_id query parameter.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path

	if strings.HasPrefix(path, "/api/v1/patients/") {
		segments := strings.Split(strings.TrimPrefix(path, "/api/v1/patients/"), "/")
		if len(segments) > 0 && isUUIDLike(segments[0]) {
			return segments[0]
		}
	}

	if patient := c.QueryParam("patient_id"); isUUIDLike(patient) {
		return patient
	}

	return ""
}

func isUUIDLike(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
