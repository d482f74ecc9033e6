package account

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeev/jeev/internal/platform/db/dbtest"
)

func TestClassifyUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"email", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, ErrEmailTaken},
		{"health id", &pgconn.PgError{Code: "23505", ConstraintName: "users_health_id_key"}, ErrHealthIDTaken},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), ErrEmailTaken},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyUniqueViolation(tt.err)
			if !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("classifyUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyUniqueViolation_PassesOtherErrors(t *testing.T) {
	other := &pgconn.PgError{Code: "23514", ConstraintName: "users_role_iff_hospital"}
	if got := classifyUniqueViolation(other); got != error(other) {
		t.Errorf("expected check violation to pass through, got %v", got)
	}
}

func TestNullableDeref(t *testing.T) {
	if nullable("") != nil {
		t.Error("expected nil for empty string")
	}
	if p := nullable("x"); p == nil || *p != "x" {
		t.Error("expected pointer to x")
	}
	if deref(nil) != "" {
		t.Error("expected empty string for nil")
	}
}

func TestUserRepoPG_CheckConstraints(t *testing.T) {
	if !dbtest.Enabled() {
		t.Skipf("%s not set", dbtest.EnvDatabaseURL)
	}
	repo := NewUserRepoPG(dbtest.NewPool(t))
	ctx := context.Background()

	tests := []struct {
		name       string
		user       *User
		constraint string
	}{
		{
			name: "hospital with health id",
			user: &User{ID: uuid.NewString(), Email: "h@cityhosp.com", Type: TypeHospital,
				HospitalName: "City", Role: RoleAdmin, HealthID: "JEEVAAAAAAAA1", CreatedAt: testNow},
			constraint: "users_health_id_iff_patient",
		},
		{
			name:       "patient without health id",
			user:       &User{ID: uuid.NewString(), Email: "p@example.com", Type: TypePatient, CreatedAt: testNow},
			constraint: "users_health_id_iff_patient",
		},
		{
			name: "patient with role",
			user: &User{ID: uuid.NewString(), Email: "r@example.com", Type: TypePatient,
				HealthID: "JEEVBBBBBBBB2", Role: RoleDoctor, CreatedAt: testNow},
			constraint: "users_role_iff_hospital",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) || pgErr.Code != "23514" || pgErr.ConstraintName != tt.constraint {
				t.Fatalf("expected check violation on %s, got %v", tt.constraint, err)
			}
			if _, err := repo.GetByEmail(ctx, tt.user.Email); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected rejected user not to be stored, got %v", err)
			}
		})
	}
}

func TestUserRepoPG_RoundTripsOptionalColumns(t *testing.T) {
	if !dbtest.Enabled() {
		t.Skipf("%s not set", dbtest.EnvDatabaseURL)
	}
	repo := NewUserRepoPG(dbtest.NewPool(t))
	ctx := context.Background()

	h, err := NewUser("admin@cityhosp.com", TypeHospital, Attributes{FullName: "City", HospitalName: "City Hospital", Role: "admin"}, "", testNow)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := repo.Create(ctx, h); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByEmail(ctx, "admin@cityhosp.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.HealthID != "" || got.HospitalName != "City Hospital" || got.Role != RoleAdmin || got.Type != TypeHospital {
		t.Errorf("unexpected hospital user: %+v", got)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("expected createdAt %s, got %s", testNow, got.CreatedAt)
	}
}
