package openapi

import "net/http"

func obj(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str() map[string]interface{}  { return map[string]interface{}{"type": "string"} }
func date() map[string]interface{} { return map[string]interface{}{"type": "string", "format": "date-time"} }

func enum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values}
}

func arrayOf(schema string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": schemaRef(schema)}
}

func envelopeWith(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"success": map[string]interface{}{"type": "boolean"},
		"message": str(),
	}
	for k, v := range extra {
		props[k] = v
	}
	return obj(props, "success", "message")
}

func componentSchemas() map[string]interface{} {
	return map[string]interface{}{
		"Envelope": envelopeWith(nil),
		"User": obj(map[string]interface{}{
			"id":             str(),
			"email":          str(),
			"fullName":       str(),
			"type":           enum("patient", "hospital"),
			"healthId":       str(),
			"hospitalName":   str(),
			"role":           enum("admin", "doctor", "staff"),
			"createdAt":      date(),
			"medicalRecords": arrayOf("MedicalRecord"),
		}, "id", "email", "type", "createdAt", "medicalRecords"),
		"PatientProfile": obj(map[string]interface{}{
			"id":        str(),
			"email":     str(),
			"fullName":  str(),
			"healthId":  str(),
			"createdAt": date(),
		}),
		"MedicalRecord": obj(map[string]interface{}{
			"id":              str(),
			"email":           str(),
			"patientHealthId": str(),
			"type":            str(),
			"title":           str(),
			"description":     str(),
			"data":            map[string]interface{}{"type": "object", "additionalProperties": true},
			"createdAt":       date(),
			"updatedAt":       date(),
		}, "id", "email", "patientHealthId", "type", "title", "createdAt"),
		"SignUpRequest": obj(map[string]interface{}{
			"email":        str(),
			"password":     str(),
			"fullName":     str(),
			"type":         enum("patient", "hospital"),
			"hospitalName": str(),
			"role":         enum("admin", "doctor", "staff"),
		}, "email", "password"),
		"LoginRequest": obj(map[string]interface{}{
			"email":    str(),
			"password": str(),
		}, "email", "password"),
		"AddRecordRequest": obj(map[string]interface{}{
			"email":  str(),
			"record": map[string]interface{}{"type": "object", "additionalProperties": true},
		}, "email", "record"),
		"CreateRecordRequest": obj(map[string]interface{}{
			"email":      str(),
			"healthId":   str(),
			"recordData": map[string]interface{}{"type": "object", "additionalProperties": true},
		}, "email", "healthId", "recordData"),
		"UpdateRecordRequest": obj(map[string]interface{}{
			"email":   str(),
			"updates": map[string]interface{}{"type": "object", "additionalProperties": true},
		}, "email", "updates"),
		"UserResponse": envelopeWith(map[string]interface{}{"user": schemaRef("User")}),
		"SearchResponse": envelopeWith(map[string]interface{}{
			"patient": schemaRef("PatientProfile"),
			"records": arrayOf("MedicalRecord"),
		}),
		"RecordResponse": envelopeWith(map[string]interface{}{
			"record": schemaRef("MedicalRecord"),
			"user":   schemaRef("User"),
		}),
		"RecordsResponse": envelopeWith(map[string]interface{}{"records": arrayOf("MedicalRecord")}),
	}
}

// PortalOperations documents the routes the portal handler registers under
// /api.
func PortalOperations() []Operation {
	failures := func(codes ...int) map[int]string {
		m := map[int]string{http.StatusInternalServerError: "Envelope"}
		for _, c := range codes {
			m[c] = "Envelope"
		}
		return m
	}
	with := func(m map[int]string, code int, schema string) map[int]string {
		m[code] = schema
		return m
	}

	return []Operation{
		{
			Method: http.MethodPost, Path: "/api/auth/signup", OperationID: "signUp", Tag: "auth",
			Summary:     "Register a patient or hospital account",
			RequestBody: "SignUpRequest",
			Responses:   with(failures(http.StatusBadRequest), http.StatusCreated, "UserResponse"),
		},
		{
			Method: http.MethodPost, Path: "/api/auth/login", OperationID: "login", Tag: "auth",
			Summary:     "Log in by email",
			RequestBody: "LoginRequest",
			Responses:   with(failures(http.StatusBadRequest, http.StatusUnauthorized), http.StatusOK, "UserResponse"),
		},
		{
			Method: http.MethodGet, Path: "/api/patients/search", OperationID: "searchPatient", Tag: "patients",
			Summary:   "Find a patient and their records by Health ID",
			Params:    []Param{{Name: "healthId", In: "query", Required: true}},
			Responses: with(failures(http.StatusBadRequest, http.StatusNotFound), http.StatusOK, "SearchResponse"),
		},
		{
			Method: http.MethodPost, Path: "/api/records/add", OperationID: "addMedicalRecord", Tag: "records",
			Summary:     "Add a record on behalf of a user",
			RequestBody: "AddRecordRequest",
			Responses:   with(failures(http.StatusBadRequest, http.StatusNotFound), http.StatusOK, "RecordResponse"),
		},
		{
			Method: http.MethodGet, Path: "/api/records", OperationID: "getRecords", Tag: "records",
			Summary:   "List records for a Health ID in insertion order",
			Params:    []Param{{Name: "healthId", In: "query", Required: true}},
			Responses: with(failures(http.StatusBadRequest), http.StatusOK, "RecordsResponse"),
		},
		{
			Method: http.MethodPost, Path: "/api/records", OperationID: "createRecord", Tag: "records",
			Summary:     "Create a record for a Health ID",
			RequestBody: "CreateRecordRequest",
			Responses:   with(failures(http.StatusBadRequest, http.StatusNotFound), http.StatusCreated, "RecordResponse"),
		},
		{
			Method: http.MethodPut, Path: "/api/records/:id", OperationID: "updateRecord", Tag: "records",
			Summary:     "Update a record's mutable fields",
			Params:      []Param{{Name: "id", In: "path"}},
			RequestBody: "UpdateRecordRequest",
			Responses:   with(failures(http.StatusBadRequest, http.StatusNotFound), http.StatusOK, "RecordResponse"),
		},
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Jeev API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

