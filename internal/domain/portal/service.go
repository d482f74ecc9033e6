package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeev/jeev/internal/domain/account"
	"github.com/jeev/jeev/internal/domain/record"
	"github.com/jeev/jeev/internal/platform/cache"
)

// Messages returned in the response envelope.
const (
	MsgRegistered        = "Registration successful"
	MsgEmailTaken        = "Email already registered"
	MsgCredentialsNeeded = "Email and password required"
	MsgLoggedIn          = "Login successful"
	MsgEmailNotFound     = "Email not found"
	MsgPatientFound      = "Patient found"
	MsgPatientNotFound   = "Patient not found"
	MsgHealthIDRequired  = "Health ID required"
	MsgRecordsRetrieved  = "Records retrieved"
	MsgRecordSaved       = "Record saved and synced to cloud"
	MsgUserNotFound      = "User not found"
	MsgRecordDataNeeded  = "Email and record data required"
	MsgCreateDataNeeded  = "Health ID and record data required"
	MsgRecordNotFound    = "Record not found"
	MsgRecordUpdated     = "Record updated and synced"
	MsgInvalidType       = "Account type must be patient or hospital"
	MsgInvalidRole       = "Role must be admin, doctor, or staff"
	MsgTimeout           = "Request timed out"

	MsgSignupFailed = "Signup failed"
	MsgLoginFailed  = "Login failed"
	MsgSearchFailed = "Search failed"
	MsgAddFailed    = "Failed to add record"
	MsgFetchFailed  = "Failed to fetch records"
	MsgSaveFailed   = "Failed to save record"
	MsgUpdateFailed = "Failed to update record"
)

// healthIDAttempts bounds retries when a generated Health ID is already
// issued.
const healthIDAttempts = 5

// UserView is a User together with the records it submitted, oldest first.
type UserView struct {
	*account.User
	MedicalRecords []*record.MedicalRecord `json:"medicalRecords"`
}

// PatientProfile is the subset of a patient account shown to hospital staff.
type PatientProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	HealthID  string    `json:"healthId"`
	CreatedAt time.Time `json:"createdAt"`
}

func profileOf(u *account.User) *PatientProfile {
	return &PatientProfile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		HealthID:  u.HealthID,
		CreatedAt: u.CreatedAt,
	}
}

type SearchResult struct {
	Patient *PatientProfile
	Records []*record.MedicalRecord
}

// RecordResult is a stored record and the account that submitted it.
type RecordResult struct {
	Record *record.MedicalRecord
	User   *UserView
}

type SignUpInput struct {
	Email        string
	Password     string
	FullName     string
	Type         string
	HospitalName string
	Role         string
}

type Service struct {
	users    account.UserRepository
	records  record.Repository
	cache    *cache.Cache
	cacheTTL time.Duration
	log      zerolog.Logger

	newHealthID func() (string, error)
	now         func() time.Time
}

func NewService(users account.UserRepository, records record.Repository, logger zerolog.Logger) *Service {
	return &Service{
		users:       users,
		records:     records,
		log:         logger,
		newHealthID: account.NewHealthID,
		now:         time.Now,
	}
}

// SetCache enables a read-through cache of patient accounts keyed by
// Health ID. Accounts never change after signup, so entries only expire.
// A disabled cache turns caching off.
func (s *Service) SetCache(c *cache.Cache, ttl time.Duration) {
	if c == nil || !c.Enabled() {
		s.cache = nil
		return
	}
	s.cache = c
	s.cacheTTL = ttl
}

// failure classifies an unexpected error. A passed deadline becomes
// KindTimeout; everything else carries the operation's fixed message.
func failure(msg string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: err}
	}
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*UserView, error) {
	if in.Email == "" || in.Password == "" {
		return nil, newError(KindMissingFields, MsgCredentialsNeeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgSignupFailed, err)
	}

	t := account.AccountType(in.Type)
	if t == "" {
		t = account.TypePatient
	}
	attrs := account.Attributes{FullName: in.FullName, HospitalName: in.HospitalName, Role: in.Role}

	for attempt := 0; attempt < healthIDAttempts; attempt++ {
		var healthID string
		if t == account.TypePatient {
			id, err := s.newHealthID()
			if err != nil {
				return nil, failure(MsgSignupFailed, err)
			}
			healthID = id
		}

		u, err := account.NewUser(in.Email, t, attrs, healthID, s.now())
		switch {
		case errors.Is(err, account.ErrInvalidType):
			return nil, &Error{Kind: KindInvalidAccount, Message: MsgInvalidType, Err: err}
		case errors.Is(err, account.ErrInvalidRole):
			return nil, &Error{Kind: KindInvalidAccount, Message: MsgInvalidRole, Err: err}
		case err != nil:
			return nil, failure(MsgSignupFailed, err)
		}

		err = s.users.Create(ctx, u)
		switch {
		case err == nil:
			s.log.Info().
				Str("email", u.Email).
				Str("type", string(u.Type)).
				Str("health_id", u.HealthID).
				Msg("user registered")
			return &UserView{User: u, MedicalRecords: []*record.MedicalRecord{}}, nil
		case errors.Is(err, account.ErrEmailTaken):
			return nil, newError(KindEmailTaken, MsgEmailTaken)
		case errors.Is(err, account.ErrHealthIDTaken):
			s.log.Warn().Str("health_id", healthID).Int("attempt", attempt+1).Msg("health id collision")
			continue
		default:
			return nil, failure(MsgSignupFailed, err)
		}
	}
	return nil, failure(MsgSignupFailed, fmt.Errorf("no unique health id after %d attempts", healthIDAttempts))
}

// Login returns the account registered under email. The password must be
// present but is not verified.
func (s *Service) Login(ctx context.Context, email, password string) (*UserView, error) {
	if email == "" || password == "" {
		return nil, newError(KindMissingFields, MsgCredentialsNeeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgLoginFailed, err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		return nil, newError(KindEmailNotFound, MsgEmailNotFound)
	}
	if err != nil {
		return nil, failure(MsgLoginFailed, err)
	}

	view, err := s.view(ctx, u)
	if err != nil {
		return nil, failure(MsgLoginFailed, err)
	}
	return view, nil
}

func (s *Service) SearchPatientByHealthID(ctx context.Context, healthID string) (*SearchResult, error) {
	if healthID == "" {
		return nil, newError(KindMissingFields, MsgHealthIDRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgSearchFailed, err)
	}

	u, err := s.patient(ctx, healthID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, newError(KindPatientNotFound, MsgPatientNotFound)
	}
	if err != nil {
		return nil, failure(MsgSearchFailed, err)
	}

	records, err := s.records.ListByHealthID(ctx, healthID)
	if err != nil {
		return nil, failure(MsgSearchFailed, err)
	}
	return &SearchResult{Patient: profileOf(u), Records: records}, nil
}

// AddMedicalRecord files doc as a record submitted by ownerEmail. The Health
// ID is read from the document and must belong to a registered patient.
func (s *Service) AddMedicalRecord(ctx context.Context, ownerEmail string, doc map[string]interface{}) (*RecordResult, error) {
	if ownerEmail == "" || len(doc) == 0 {
		return nil, newError(KindMissingFields, MsgRecordDataNeeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgAddFailed, err)
	}

	owner, err := s.users.GetByEmail(ctx, ownerEmail)
	if errors.Is(err, account.ErrNotFound) {
		return nil, newError(KindUserNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, failure(MsgAddFailed, err)
	}

	rec := record.FromDocument(ownerEmail, doc)
	if rec.PatientHealthID == "" {
		return nil, newError(KindMissingFields, MsgHealthIDRequired)
	}
	saved, err := s.store(ctx, rec)
	if err != nil {
		return nil, s.storeFailure(MsgAddFailed, err)
	}

	view, err := s.view(ctx, owner)
	if err != nil {
		return nil, failure(MsgAddFailed, err)
	}
	return &RecordResult{Record: saved, User: view}, nil
}

func (s *Service) GetRecordsByHealthID(ctx context.Context, healthID string) ([]*record.MedicalRecord, error) {
	if healthID == "" {
		return nil, newError(KindMissingFields, MsgHealthIDRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgFetchFailed, err)
	}

	records, err := s.records.ListByHealthID(ctx, healthID)
	if err != nil {
		return nil, failure(MsgFetchFailed, err)
	}
	return records, nil
}

// CreateRecord files recordData under healthID. email is recorded as the
// owner when given but need not be a registered account.
func (s *Service) CreateRecord(ctx context.Context, email, healthID string, recordData map[string]interface{}) (*record.MedicalRecord, error) {
	if healthID == "" || len(recordData) == 0 {
		return nil, newError(KindMissingFields, MsgCreateDataNeeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgSaveFailed, err)
	}

	rec := record.FromDocument(email, recordData)
	rec.PatientHealthID = healthID
	saved, err := s.store(ctx, rec)
	if err != nil {
		return nil, s.storeFailure(MsgSaveFailed, err)
	}
	return saved, nil
}

// UpdateRecord merges updates into the record with id. The caller must be a
// registered account.
func (s *Service) UpdateRecord(ctx context.Context, email, id string, updates map[string]interface{}) (*RecordResult, error) {
	patch := record.PatchFromDocument(updates)
	if email == "" || id == "" || patch.IsEmpty() {
		return nil, newError(KindMissingFields, MsgRecordDataNeeded)
	}
	if err := ctx.Err(); err != nil {
		return nil, failure(MsgUpdateFailed, err)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		return nil, newError(KindUserNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, failure(MsgUpdateFailed, err)
	}

	ok, err := s.records.Update(ctx, id, patch)
	if err != nil {
		return nil, failure(MsgUpdateFailed, err)
	}
	if !ok {
		return nil, newError(KindRecordNotFound, MsgRecordNotFound)
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, failure(MsgUpdateFailed, err)
	}
	s.log.Info().Str("record_id", id).Str("email", email).Msg("record updated")

	view, err := s.view(ctx, u)
	if err != nil {
		return nil, failure(MsgUpdateFailed, err)
	}
	return &RecordResult{Record: rec, User: view}, nil
}

var errUnknownPatient = errors.New("health id does not belong to a registered patient")

// store checks that rec is filed under a registered patient, then appends
// it with a fresh id and creation time.
func (s *Service) store(ctx context.Context, rec *record.MedicalRecord) (*record.MedicalRecord, error) {
	if _, err := s.patient(ctx, rec.PatientHealthID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, errUnknownPatient
		}
		return nil, err
	}

	rec.CreatedAt = s.now().UTC()
	if _, err := s.records.Add(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("record_id", rec.ID).
		Str("health_id", rec.PatientHealthID).
		Str("email", rec.OwnerEmail).
		Str("type", rec.RecordType).
		Msg("record saved")
	return rec, nil
}

func (s *Service) storeFailure(msg string, err error) error {
	if errors.Is(err, errUnknownPatient) {
		return newError(KindPatientNotFound, MsgPatientNotFound)
	}
	return failure(msg, err)
}

// patient resolves a Health ID to its account, consulting the cache first.
func (s *Service) patient(ctx context.Context, healthID string) (*account.User, error) {
	key := "patient:" + healthID
	if s.cache != nil {
		var u account.User
		err := s.cache.Get(ctx, key, &u)
		if err == nil {
			return &u, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Str("health_id", healthID).Msg("patient cache read failed")
		}
	}

	u, err := s.users.GetByHealthID(ctx, healthID)
	if err != nil {
		return nil, err
	}
	if !u.IsPatient() {
		return nil, account.ErrNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, u, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("health_id", healthID).Msg("patient cache write failed")
		}
	}
	return u, nil
}

func (s *Service) view(ctx context.Context, u *account.User) (*UserView, error) {
	records, err := s.records.ListByOwner(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	return &UserView{User: u, MedicalRecords: records}, nil
}
