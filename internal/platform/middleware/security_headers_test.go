package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var wantSecurityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "0",
	"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "no-referrer",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Cache-Control":             "no-store",
}

func TestSecurityHeaders_SetOnEveryResponse(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		handler echo.HandlerFunc
		status  int
	}{
		{
			name:   "records read",
			method: http.MethodGet,
			path:   "/api/records?healthId=JEEVABC123XYZ",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]bool{"success": true})
			},
			status: http.StatusOK,
		},
		{
			name:   "signup",
			method: http.MethodPost,
			path:   "/api/auth/signup",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusCreated)
			},
			status: http.StatusCreated,
		},
		{
			name:   "handler error",
			method: http.MethodGet,
			path:   "/api/patients/search",
			handler: func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
			},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
			e.Use(SecurityHeaders())
			e.Add(tt.method, "/api/*", tt.handler)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			for header, want := range wantSecurityHeaders {
				if got := rec.Header().Get(header); got != want {
					t.Errorf("header %s: got %q, want %q", header, got, want)
				}
			}
		})
	}
}

func TestSecurityHeaders_HandlerCanOverride(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/api/docs", func(c echo.Context) error {
		c.Response().Header().Set("Content-Security-Policy", "default-src 'self'")
		return c.HTML(http.StatusOK, "<html></html>")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/docs", nil))

	if got := rec.Header().Get("Content-Security-Policy"); got != "default-src 'self'" {
		t.Errorf("expected handler CSP to win, got %q", got)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected remaining security headers to stay in place")
	}
}
