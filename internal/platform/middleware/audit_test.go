package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_RecordsSearch(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodGet, "/api/patients/search?healthId=JEEVABCDEF123")
	c.Set("request_id", "req-abc")

	if err := Audit(zerolog.New(&buf), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.Resource != "patients" || entry.Action != "read" {
		t.Errorf("unexpected resource/action: %+v", entry)
	}
	if entry.HealthID != "JEEVABCDEF123" {
		t.Errorf("expected health id JEEVABCDEF123, got %q", entry.HealthID)
	}
	if entry.RequestID != "req-abc" || entry.StatusCode != http.StatusOK {
		t.Errorf("unexpected request id or status: %+v", entry)
	}

	var evt map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &evt); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if evt["message"] != "record_access" || evt["health_id"] != "JEEVABCDEF123" {
		t.Errorf("unexpected log event: %v", evt)
	}
}

func TestAudit_RecordActions(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		action   string
		recordID string
	}{
		{http.MethodGet, "/api/records?healthId=JEEV000000001", "read", ""},
		{http.MethodPost, "/api/records/add", "create", ""},
		{http.MethodPost, "/api/records", "create", ""},
		{http.MethodPut, "/api/records/rec-42", "update", "rec-42"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := &mockRecorder{}
			c, _ := newTestContext(tt.method, tt.path)
			Audit(zerolog.Nop(), rec)(okHandler)(c)

			if rec.count() != 1 {
				t.Fatalf("expected 1 entry, got %d", rec.count())
			}
			entry := rec.last()
			if entry.Resource != "records" || entry.Action != tt.action || entry.RecordID != tt.recordID {
				t.Errorf("unexpected entry: %+v", entry)
			}
		})
	}
}

func TestAudit_SkipsOtherPaths(t *testing.T) {
	for _, path := range []string{"/api/auth/login", "/health", "/api/", "/records"} {
		rec := &mockRecorder{}
		c, _ := newTestContext(http.MethodGet, path)
		Audit(zerolog.Nop(), rec)(okHandler)(c)
		if rec.count() != 0 {
			t.Errorf("%s: expected no audit entry, got %d", path, rec.count())
		}
	}
}

func TestAudit_StatusFromUnrenderedError(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodGet, "/api/records")

	handler := func(c echo.Context) error { return ErrTooManyRequests }
	err := Audit(zerolog.Nop(), rec)(handler)(c)

	if err != ErrTooManyRequests {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
	if got := rec.last().StatusCode; got != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", got)
	}

	c, _ = newTestContext(http.MethodGet, "/api/records")
	Audit(zerolog.Nop(), rec)(func(echo.Context) error { return errors.New("boom") })(c)
	if got := rec.last().StatusCode; got != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", got)
	}
}

func TestAudit_RecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("audit sink down")}
	c, httpRec := newTestContext(http.MethodGet, "/api/records?healthId=JEEV000000001")

	if err := Audit(zerolog.Nop(), rec)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpRec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", httpRec.Code)
	}
}

func TestAudit_RecorderFunc(t *testing.T) {
	var got AuditEntry
	fn := AuditRecorderFunc(func(e AuditEntry) error {
		got = e
		return nil
	})
	c, _ := newTestContext(http.MethodGet, "/api/records?healthId=JEEV000000009")
	Audit(zerolog.Nop(), fn)(okHandler)(c)

	if got.HealthID != "JEEV000000009" {
		t.Errorf("expected recorder func to receive the entry, got %+v", got)
	}
}

func TestAudit_HealthIDFromHandler(t *testing.T) {
	rec := &mockRecorder{}
	c, _ := newTestContext(http.MethodPost, "/api/records/add")

	handler := func(c echo.Context) error {
		c.Set(AuditHealthIDKey, "JEEVKKKKKKKKK")
		return c.String(http.StatusOK, "ok")
	}
	if err := Audit(zerolog.Nop(), rec)(handler)(c); err != nil {
		t.Fatal(err)
	}

	got := rec.last()
	if got.HealthID != "JEEVKKKKKKKKK" || got.Action != "create" || got.RecordID != "" {
		t.Errorf("unexpected entry: %+v", got)
	}
}

func TestSplitResource(t *testing.T) {
	tests := []struct {
		path, resource, rest string
	}{
		{"/api/records", "records", ""},
		{"/api/records/abc", "records", "abc"},
		{"/api/records/abc/extra", "records", "abc"},
		{"/api/patients/search", "patients", "search"},
		{"/health", "", ""},
	}
	for _, tt := range tests {
		resource, rest := splitResource(tt.path)
		if resource != tt.resource || rest != tt.rest {
			t.Errorf("splitResource(%q) = (%q, %q), want (%q, %q)", tt.path, resource, rest, tt.resource, tt.rest)
		}
	}
}
