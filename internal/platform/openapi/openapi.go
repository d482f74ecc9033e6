package openapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Param describes a path or query parameter.
type Param struct {
	Name     string
	In       string
	Required bool
}

// Operation is one documented route. Responses maps status codes to the
// component schema returned with that code.
type Operation struct {
	Method      string
	Path        string
	OperationID string
	Summary     string
	Tag         string
	Params      []Param
	RequestBody string
	Responses   map[int]string
}

// Generator builds an OpenAPI 3.0 document from registered operations.
type Generator struct {
	title   string
	version string
	baseURL string
	ops     []Operation
}

func NewGenerator(title, version, baseURL string) *Generator {
	return &Generator{title: title, version: version, baseURL: baseURL}
}

func (g *Generator) Add(ops ...Operation) {
	g.ops = append(g.ops, ops...)
}

// Operations returns the registered operations in registration order.
func (g *Generator) Operations() []Operation {
	out := make([]Operation, len(g.ops))
	copy(out, g.ops)
	return out
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	tagSet := make(map[string]bool)

	for _, op := range g.ops {
		path := echoPathToOpenAPI(op.Path)
		item, _ := paths[path].(map[string]interface{})
		if item == nil {
			item = make(map[string]interface{})
			paths[path] = item
		}
		item[strings.ToLower(op.Method)] = g.buildOperation(op)
		if op.Tag != "" {
			tagSet[op.Tag] = true
		}
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	tagList := make([]map[string]interface{}, 0, len(tags))
	for _, t := range tags {
		tagList = append(tagList, map[string]interface{}{"name": t})
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]interface{}{
			{"url": g.baseURL},
		},
		"tags":  tagList,
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": componentSchemas(),
		},
	}
}

func (g *Generator) buildOperation(op Operation) map[string]interface{} {
	out := map[string]interface{}{
		"summary":     op.Summary,
		"operationId": op.OperationID,
	}
	if op.Tag != "" {
		out["tags"] = []string{op.Tag}
	}

	if len(op.Params) > 0 {
		params := make([]map[string]interface{}, 0, len(op.Params))
		for _, p := range op.Params {
			params = append(params, map[string]interface{}{
				"name":     p.Name,
				"in":       p.In,
				"required": p.Required || p.In == "path",
				"schema":   map[string]interface{}{"type": "string"},
			})
		}
		out["parameters"] = params
	}

	if op.RequestBody != "" {
		out["requestBody"] = map[string]interface{}{
			"required": true,
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": schemaRef(op.RequestBody),
				},
			},
		}
	}

	responses := make(map[string]interface{}, len(op.Responses))
	for code, schema := range op.Responses {
		responses[strconv.Itoa(code)] = buildResponseWithSchema(http.StatusText(code), schema)
	}
	out["responses"] = responses
	return out
}

func buildResponseWithSchema(description, schema string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": schemaRef(schema),
			},
		},
	}
}

func schemaRef(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

// echoPathToOpenAPI turns ":id" segments into "{id}".
func echoPathToOpenAPI(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, ":") {
			parts[i] = "{" + part[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// docsCSP replaces the API-wide policy on the docs page, which loads the
// Swagger UI bundle from unpkg.
const docsCSP = "default-src 'none'; script-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data:; " +
	"connect-src 'self'; frame-ancestors 'none'"

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		c.Response().Header().Set("Content-Security-Policy", docsCSP)
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
