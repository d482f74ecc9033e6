// Package sandbox generates reproducible demo accounts and medical records
// and loads them through the portal service, so seeded data obeys the same
// rules as data entered over the API.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/jeev/jeev/internal/domain/portal"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated data. Seed 0 picks a
// time-based seed.
type SeedConfig struct {
	PatientCount      int    `json:"patientCount"`
	HospitalCount     int    `json:"hospitalCount"`
	RecordsPerPatient int    `json:"recordsPerPatient"`
	EmailDomain       string `json:"emailDomain"`
	Seed              int64  `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:      20,
		HospitalCount:     3,
		RecordsPerPatient: 3,
		EmailDomain:       "sandbox.jeev.test",
	}
}

// SeedResult summarizes one seeding run. Accounts whose email was already
// registered are counted in Skipped and get no new records.
type SeedResult struct {
	Patients  []SeededPatient `json:"patients"`
	Hospitals []string        `json:"hospitals"`
	Records   int             `json:"records"`
	Skipped   int             `json:"skipped"`
	Duration  string          `json:"duration"`
}

type SeededPatient struct {
	Email    string `json:"email"`
	HealthID string `json:"healthId"`
}

// Portal is the subset of the portal service the seeder drives.
type Portal interface {
	SignUp(ctx context.Context, in portal.SignUpInput) (*portal.UserView, error)
	AddMedicalRecord(ctx context.Context, ownerEmail string, doc map[string]interface{}) (*portal.RecordResult, error)
}

// ---------------------------------------------------------------------------
// Data pools
// ---------------------------------------------------------------------------

var (
	givenNames  = []string{"Aarav", "Diya", "Kabir", "Meera", "Rohan", "Sara", "Vikram", "Anaya", "Ishaan", "Tara", "Nikhil", "Leela"}
	familyNames = []string{"Sharma", "Iyer", "Khan", "Patel", "Das", "Reddy", "Mehta", "Singh", "Nair", "Bose"}
	hospitals   = []string{"City General Hospital", "Lakeside Clinic", "Sunrise Medical Centre", "Riverbend Health", "Hilltop Care"}
	roles       = []string{"doctor", "doctor", "staff", "admin"}
)

type recordTemplate struct {
	recordType  string
	title       string
	description string
	data        func(g *DataGenerator) map[string]interface{}
}

var recordTemplates = []recordTemplate{
	{"consultation", "General Consultation", "Routine check-up", func(g *DataGenerator) map[string]interface{} {
		return map[string]interface{}{
			"bloodPressure": fmt.Sprintf("%d/%d", 100+g.rng.Intn(40), 60+g.rng.Intn(30)),
			"pulse":         55 + g.rng.Intn(45),
			"notes":         g.pick([]string{"No acute distress", "Advised rest and fluids", "Follow up in two weeks"}),
		}
	}},
	{"lab", "Blood Panel", "Complete blood count", func(g *DataGenerator) map[string]interface{} {
		return map[string]interface{}{
			"hemoglobin": fmt.Sprintf("%.1f g/dL", 11+g.rng.Float64()*6),
			"wbc":        fmt.Sprintf("%.1f x10^9/L", 4+g.rng.Float64()*7),
			"platelets":  150 + g.rng.Intn(250),
		}
	}},
	{"prescription", "Prescription", "Medication issued", func(g *DataGenerator) map[string]interface{} {
		return map[string]interface{}{
			"medication": g.pick([]string{"Amoxicillin 500mg", "Metformin 500mg", "Atorvastatin 10mg", "Cetirizine 10mg"}),
			"dosage":     g.pick([]string{"once daily", "twice daily", "three times daily"}),
			"days":       5 + g.rng.Intn(25),
		}
	}},
	{"imaging", "Chest X-Ray", "Radiology report", func(g *DataGenerator) map[string]interface{} {
		return map[string]interface{}{
			"modality": "XR",
			"finding":  g.pick([]string{"No abnormality detected", "Mild bronchial thickening", "Clear lung fields"}),
		}
	}},
	{"vaccination", "Immunization", "Vaccine administered", func(g *DataGenerator) map[string]interface{} {
		return map[string]interface{}{
			"vaccine": g.pick([]string{"Influenza", "Hepatitis B", "Tetanus", "COVID-19"}),
			"dose":    1 + g.rng.Intn(3),
		}
	}},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic signup inputs and record documents for
// a given seed. It is not safe for concurrent use.
type DataGenerator struct {
	rng    *rand.Rand
	domain string
	seq    int
}

func NewDataGenerator(seed int64, domain string) *DataGenerator {
	if domain == "" {
		domain = DefaultSeedConfig().EmailDomain
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed)), domain: domain}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) email(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%03d@%s", prefix, g.seq, g.domain)
}

func (g *DataGenerator) GeneratePatient() portal.SignUpInput {
	return portal.SignUpInput{
		Email:    g.email("patient"),
		Password: "sandbox",
		FullName: g.pick(givenNames) + " " + g.pick(familyNames),
		Type:     "patient",
	}
}

func (g *DataGenerator) GenerateHospitalUser() portal.SignUpInput {
	return portal.SignUpInput{
		Email:        g.email("staff"),
		Password:     "sandbox",
		FullName:     "Dr. " + g.pick(givenNames) + " " + g.pick(familyNames),
		Type:         "hospital",
		HospitalName: g.pick(hospitals),
		Role:         g.pick(roles),
	}
}

// GenerateRecord returns a record document for the patient with healthID.
func (g *DataGenerator) GenerateRecord(healthID string) map[string]interface{} {
	tmpl := recordTemplates[g.rng.Intn(len(recordTemplates))]
	doc := tmpl.data(g)
	doc["patientHealthId"] = healthID
	doc["type"] = tmpl.recordType
	doc["title"] = tmpl.title
	doc["description"] = tmpl.description
	return doc
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type Seeder struct {
	portal Portal
	log    zerolog.Logger
	mu     sync.Mutex
}

func NewSeeder(p Portal, logger zerolog.Logger) *Seeder {
	return &Seeder{portal: p, log: logger}
}

// Seed registers hospital users and patients, then has the hospital users
// add records for every new patient in round-robin order.
func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) (*SeedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	seed := cfg.Seed
	if seed == 0 {
		seed = start.UnixNano()
	}
	gen := NewDataGenerator(seed, cfg.EmailDomain)
	result := &SeedResult{Patients: []SeededPatient{}, Hospitals: []string{}}

	for i := 0; i < cfg.HospitalCount; i++ {
		in := gen.GenerateHospitalUser()
		if _, err := s.portal.SignUp(ctx, in); err != nil {
			if portal.KindOf(err) == portal.KindEmailTaken {
				result.Hospitals = append(result.Hospitals, in.Email)
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("seed hospital %s: %w", in.Email, err)
		}
		result.Hospitals = append(result.Hospitals, in.Email)
	}

	for i := 0; i < cfg.PatientCount; i++ {
		in := gen.GeneratePatient()
		u, err := s.portal.SignUp(ctx, in)
		if err != nil {
			if portal.KindOf(err) == portal.KindEmailTaken {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("seed patient %s: %w", in.Email, err)
		}
		result.Patients = append(result.Patients, SeededPatient{Email: u.Email, HealthID: u.HealthID})

		owner := u.Email
		if len(result.Hospitals) > 0 {
			owner = result.Hospitals[i%len(result.Hospitals)]
		}
		for j := 0; j < cfg.RecordsPerPatient; j++ {
			if _, err := s.portal.AddMedicalRecord(ctx, owner, gen.GenerateRecord(u.HealthID)); err != nil {
				return result, fmt.Errorf("seed record for %s: %w", u.HealthID, err)
			}
			result.Records++
		}
	}

	result.Duration = time.Since(start).String()
	s.log.Info().
		Int("patients", len(result.Patients)).
		Int("hospitals", len(result.Hospitals)).
		Int("records", result.Records).
		Int("skipped", result.Skipped).
		Int64("seed", seed).
		Msg("sandbox seeded")
	return result, nil
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

type SeedHandler struct {
	seeder *Seeder
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed)
}

type seedResponse struct {
	portal.Envelope
	Result *SeedResult `json:"result"`
}

func (h *SeedHandler) handleSeed(c echo.Context) error {
	cfg := DefaultSeedConfig()
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&cfg); err != nil {
			return c.JSON(http.StatusBadRequest, portal.Envelope{Message: portal.MsgInvalidBody})
		}
	}
	if cfg.PatientCount < 0 || cfg.HospitalCount < 0 || cfg.RecordsPerPatient < 0 ||
		cfg.PatientCount > 1000 || cfg.RecordsPerPatient > 50 {
		return c.JSON(http.StatusBadRequest, portal.Envelope{Message: "Seed counts out of range"})
	}

	result, err := h.seeder.Seed(c.Request().Context(), cfg)
	if err != nil {
		h.seeder.log.Error().Err(err).Msg("sandbox seed failed")
		return c.JSON(http.StatusInternalServerError, portal.Envelope{Message: "Seeding failed"})
	}
	return c.JSON(http.StatusCreated, seedResponse{
		Envelope: portal.Envelope{Success: true, Message: "Sandbox seeded"},
		Result:   result,
	})
}
