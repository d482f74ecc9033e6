package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestGenerator() *Generator {
	g := NewGenerator("Jeev API", "1.0.0", "http://localhost:8000")
	g.Add(PortalOperations()...)
	return g
}

func TestGenerateSpec_Structure(t *testing.T) {
	spec := newTestGenerator().GenerateSpec()

	if spec["openapi"] != "3.0.3" {
		t.Errorf("expected openapi '3.0.3', got %v", spec["openapi"])
	}
	info, ok := spec["info"].(map[string]interface{})
	if !ok || info["title"] != "Jeev API" || info["version"] != "1.0.0" {
		t.Errorf("unexpected info: %v", spec["info"])
	}
	if _, ok := spec["components"].(map[string]interface{})["schemas"].(map[string]interface{})["MedicalRecord"]; !ok {
		t.Error("expected MedicalRecord schema")
	}
}

func TestGenerateSpec_Paths(t *testing.T) {
	paths := newTestGenerator().GenerateSpec()["paths"].(map[string]interface{})

	expected := map[string][]string{
		"/api/auth/signup":     {"post"},
		"/api/auth/login":      {"post"},
		"/api/patients/search": {"get"},
		"/api/records/add":     {"post"},
		"/api/records":         {"get", "post"},
		"/api/records/{id}":    {"put"},
	}
	for path, methods := range expected {
		item, ok := paths[path].(map[string]interface{})
		if !ok {
			t.Errorf("missing path %s", path)
			continue
		}
		for _, m := range methods {
			if _, ok := item[m]; !ok {
				t.Errorf("missing %s %s", m, path)
			}
		}
	}
	if len(paths) != len(expected) {
		t.Errorf("expected %d paths, got %d", len(expected), len(paths))
	}
}

func TestGenerateSpec_PathParameter(t *testing.T) {
	paths := newTestGenerator().GenerateSpec()["paths"].(map[string]interface{})
	put := paths["/api/records/{id}"].(map[string]interface{})["put"].(map[string]interface{})

	params := put["parameters"].([]map[string]interface{})
	if len(params) != 1 || params[0]["name"] != "id" || params[0]["in"] != "path" || params[0]["required"] != true {
		t.Errorf("unexpected parameters: %v", params)
	}
	if _, ok := put["requestBody"]; !ok {
		t.Error("expected request body on update")
	}
}

func TestGenerateSpec_ResponseStructure(t *testing.T) {
	paths := newTestGenerator().GenerateSpec()["paths"].(map[string]interface{})
	post := paths["/api/auth/signup"].(map[string]interface{})["post"].(map[string]interface{})
	responses := post["responses"].(map[string]interface{})

	created, ok := responses["201"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 201 response, got %v", responses)
	}
	if created["description"] != "Created" {
		t.Errorf("expected description 'Created', got %v", created["description"])
	}
	schema := created["content"].(map[string]interface{})["application/json"].(map[string]interface{})["schema"].(map[string]interface{})
	if schema["$ref"] != "#/components/schemas/UserResponse" {
		t.Errorf("unexpected schema ref %v", schema["$ref"])
	}
	if _, ok := responses["400"]; !ok {
		t.Error("expected 400 response")
	}
}

func TestGenerateSpec_Empty(t *testing.T) {
	spec := NewGenerator("Empty", "0", "http://localhost").GenerateSpec()
	if paths := spec["paths"].(map[string]interface{}); len(paths) != 0 {
		t.Errorf("expected no paths, got %d", len(paths))
	}
}

func TestGenerateSpec_JSONSerialization(t *testing.T) {
	data, err := json.Marshal(newTestGenerator().GenerateSpec())
	if err != nil {
		t.Fatalf("failed to marshal spec: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal spec: %v", err)
	}
	if !strings.Contains(string(data), `"operationId":"updateRecord"`) {
		t.Error("expected updateRecord operation in output")
	}
}

func TestEchoPathToOpenAPI(t *testing.T) {
	tests := map[string]string{
		"/api/records/:id":     "/api/records/{id}",
		"/api/records":         "/api/records",
		"/a/:x/b/:y":           "/a/{x}/b/{y}",
		"/api/patients/search": "/api/patients/search",
	}
	for in, want := range tests {
		if got := echoPathToOpenAPI(in); got != want {
			t.Errorf("echoPathToOpenAPI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerator_Routes(t *testing.T) {
	e := echo.New()
	newTestGenerator().RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var spec map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Errorf("expected swagger UI page, got %d", rec.Code)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://unpkg.com") {
		t.Errorf("expected docs CSP to allow the Swagger UI bundle, got %q", csp)
	}
}
