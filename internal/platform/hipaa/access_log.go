// Package hipaa persists the PHI access trail: one event per read or write
// of patient or record data, queryable by Health ID.
package hipaa

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jeev/jeev/internal/platform/middleware"
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 100

// AccessEvent is the stored form of a middleware.AuditEntry.
type AccessEvent struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	HealthID   string    `json:"healthId,omitempty"`
	RecordID   string    `json:"recordId,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	AccessedAt time.Time `json:"accessedAt"`
}

// AccessLog stores access events. Every implementation is also a
// middleware.AuditRecorder.
type AccessLog interface {
	middleware.AuditRecorder
	// ListByHealthID returns the newest events first.
	ListByHealthID(ctx context.Context, healthID string, limit int) ([]*AccessEvent, error)
}

func eventFromEntry(entry middleware.AuditEntry) *AccessEvent {
	at := entry.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return &AccessEvent{
		ID:         uuid.NewString(),
		Resource:   entry.Resource,
		Action:     entry.Action,
		HealthID:   entry.HealthID,
		RecordID:   entry.RecordID,
		Method:     entry.Method,
		Path:       entry.Path,
		StatusCode: entry.StatusCode,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		RequestID:  entry.RequestID,
		AccessedAt: at.UTC(),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
