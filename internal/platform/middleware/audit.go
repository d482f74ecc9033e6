package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry describes one access to patient or record data.
type AuditEntry struct {
	Resource   string // patients or records
	Action     string // read, create, update
	HealthID   string
	RecordID   string
	Path       string
	Method     string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries in addition to the log event.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

const apiPrefix = "/api/"

// AuditHealthIDKey lets a handler name the Health ID it touched when the ID
// travels in the body rather than the query string.
const AuditHealthIDKey = "audit_health_id"

// Audit emits a "record_access" event for every request under
// /api/patients and /api/records once the handler has run. Signup and login
// are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, rest := splitResource(req.URL.Path)
			if resource != "patients" && resource != "records" {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Resource:   resource,
				Action:     httpMethodToAction(req.Method),
				HealthID:   c.QueryParam("healthId"),
				Path:       req.URL.Path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: statusOf(c, err),
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			if hid, ok := c.Get(AuditHealthIDKey).(string); ok && hid != "" {
				entry.HealthID = hid
			}
			if resource == "records" && rest != "" && rest != "add" {
				entry.RecordID = rest
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("health_id", entry.HealthID).
				Str("record_id", entry.RecordID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// splitResource returns the first path segment under /api/ and the segment
// after it: "/api/records/abc" -> ("records", "abc").
func splitResource(path string) (string, string) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", ""
	}
	segments := strings.SplitN(strings.TrimPrefix(path, apiPrefix), "/", 3)
	if len(segments) == 1 {
		return segments[0], ""
	}
	return segments[0], segments[1]
}

// statusOf is the status the client will see. An error not yet rendered
// decides it when it is an HTTPError.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
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
