package portal

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/jeev/jeev/internal/domain/record"
	"github.com/jeev/jeev/internal/platform/middleware"
)

// MsgInvalidBody is returned when a request body is not a JSON object.
const MsgInvalidBody = "Invalid request body"

// Envelope carries the fields present in every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userResponse struct {
	Envelope
	User *UserView `json:"user"`
}

type searchResponse struct {
	Envelope
	Patient *PatientProfile         `json:"patient"`
	Records []*record.MedicalRecord `json:"records"`
}

type recordsResponse struct {
	Envelope
	Records []*record.MedicalRecord `json:"records"`
}

type recordResponse struct {
	Envelope
	Record *record.MedicalRecord `json:"record"`
	User   *UserView             `json:"user,omitempty"`
}

type signUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"fullName"`
	Type         string `json:"type"`
	HospitalName string `json:"hospitalName"`
	Role         string `json:"role"`
	// AdditionalData is how older clients send the hospital fields.
	AdditionalData *struct {
		HospitalName string `json:"hospitalName"`
		Role         string `json:"role"`
	} `json:"additionalData"`
}

func (r *signUpRequest) input() SignUpInput {
	in := SignUpInput{
		Email:        r.Email,
		Password:     r.Password,
		FullName:     r.FullName,
		Type:         r.Type,
		HospitalName: r.HospitalName,
		Role:         r.Role,
	}
	if r.AdditionalData != nil {
		if in.HospitalName == "" {
			in.HospitalName = r.AdditionalData.HospitalName
		}
		if in.Role == "" {
			in.Role = r.AdditionalData.Role
		}
	}
	return in
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addRecordRequest struct {
	Email  string                 `json:"email"`
	Record map[string]interface{} `json:"record"`
}

type createRecordRequest struct {
	Email      string                 `json:"email"`
	HealthID   string                 `json:"healthId"`
	RecordData map[string]interface{} `json:"recordData"`
}

type updateRecordRequest struct {
	Email   string                 `json:"email"`
	Updates map[string]interface{} `json:"updates"`
}

var statusByKind = map[Kind]int{
	KindMissingFields:   http.StatusBadRequest,
	KindEmailTaken:      http.StatusBadRequest,
	KindInvalidAccount:  http.StatusBadRequest,
	KindEmailNotFound:   http.StatusUnauthorized,
	KindPatientNotFound: http.StatusNotFound,
	KindUserNotFound:    http.StatusNotFound,
	KindRecordNotFound:  http.StatusNotFound,
	KindTimeout:         http.StatusGatewayTimeout,
	KindUnexpected:      http.StatusInternalServerError,
}

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/signup", h.SignUp)
	api.POST("/auth/login", h.Login)
	api.GET("/patients/search", h.SearchPatient)
	api.POST("/records/add", h.AddRecord)
	api.GET("/records", h.GetRecords)
	api.POST("/records", h.CreateRecord)
	api.PUT("/records/:id", h.UpdateRecord)
}

func ok(msg string) Envelope {
	return Envelope{Success: true, Message: msg}
}

// fail renders err as a failure envelope. Only the portal message reaches
// the caller; the cause of unexpected failures is logged.
func (h *Handler) fail(c echo.Context, op, fallback string, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindUnexpected, Message: fallback, Err: err}
	}
	status, found := statusByKind[e.Kind]
	if !found {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		rid, _ := c.Get("request_id").(string)
		h.log.Error().Err(e.Err).
			Str("request_id", rid).
			Str("op", op).
			Str("kind", e.Kind.String()).
			Msg("operation failed")
	}
	return c.JSON(status, Envelope{Message: e.Message})
}

func (h *Handler) badBody(c echo.Context, err error) error {
	if errors.Is(err, middleware.ErrBodyTooLarge) {
		return err
	}
	return c.JSON(http.StatusBadRequest, Envelope{Message: MsgInvalidBody})
}

func (h *Handler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, err)
	}
	u, err := h.svc.SignUp(c.Request().Context(), req.input())
	if err != nil {
		return h.fail(c, "signup", MsgSignupFailed, err)
	}
	return c.JSON(http.StatusCreated, userResponse{Envelope: ok(MsgRegistered), User: u})
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, err)
	}
	u, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, "login", MsgLoginFailed, err)
	}
	return c.JSON(http.StatusOK, userResponse{Envelope: ok(MsgLoggedIn), User: u})
}

func (h *Handler) SearchPatient(c echo.Context) error {
	res, err := h.svc.SearchPatientByHealthID(c.Request().Context(), c.QueryParam("healthId"))
	if err != nil {
		return h.fail(c, "search_patient", MsgSearchFailed, err)
	}
	return c.JSON(http.StatusOK, searchResponse{
		Envelope: ok(MsgPatientFound),
		Patient:  res.Patient,
		Records:  res.Records,
	})
}

func (h *Handler) AddRecord(c echo.Context) error {
	var req addRecordRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, err)
	}
	res, err := h.svc.AddMedicalRecord(c.Request().Context(), req.Email, req.Record)
	if err != nil {
		return h.fail(c, "add_record", MsgAddFailed, err)
	}
	c.Set(middleware.AuditHealthIDKey, res.Record.PatientHealthID)
	return c.JSON(http.StatusOK, recordResponse{
		Envelope: ok(MsgRecordSaved),
		Record:   res.Record,
		User:     res.User,
	})
}

func (h *Handler) GetRecords(c echo.Context) error {
	records, err := h.svc.GetRecordsByHealthID(c.Request().Context(), c.QueryParam("healthId"))
	if err != nil {
		return h.fail(c, "get_records", MsgFetchFailed, err)
	}
	return c.JSON(http.StatusOK, recordsResponse{Envelope: ok(MsgRecordsRetrieved), Records: records})
}

func (h *Handler) CreateRecord(c echo.Context) error {
	var req createRecordRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, err)
	}
	rec, err := h.svc.CreateRecord(c.Request().Context(), req.Email, req.HealthID, req.RecordData)
	if err != nil {
		return h.fail(c, "create_record", MsgSaveFailed, err)
	}
	c.Set(middleware.AuditHealthIDKey, rec.PatientHealthID)
	return c.JSON(http.StatusCreated, recordResponse{Envelope: ok(MsgRecordSaved), Record: rec})
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	var req updateRecordRequest
	if err := c.Bind(&req); err != nil {
		return h.badBody(c, err)
	}
	res, err := h.svc.UpdateRecord(c.Request().Context(), req.Email, c.Param("id"), req.Updates)
	if err != nil {
		return h.fail(c, "update_record", MsgUpdateFailed, err)
	}
	c.Set(middleware.AuditHealthIDKey, res.Record.PatientHealthID)
	return c.JSON(http.StatusOK, recordResponse{
		Envelope: ok(MsgRecordUpdated),
		Record:   res.Record,
		User:     res.User,
	})
}
