package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	TypePatient  AccountType = "patient"
	TypeHospital AccountType = "hospital"
)

type HospitalRole string

const (
	RoleAdmin  HospitalRole = "admin"
	RoleDoctor HospitalRole = "doctor"
	RoleStaff  HospitalRole = "staff"
)

var validRoles = map[HospitalRole]bool{
	RoleAdmin: true, RoleDoctor: true, RoleStaff: true,
}

var (
	ErrInvalidType = errors.New("account type must be patient or hospital")
	ErrInvalidRole = errors.New("hospital role must be admin, doctor, or staff")
)

// User is an account keyed by email. HealthID is set only for patients and
// Role only for hospitals.
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Type         AccountType  `json:"type"`
	FullName     string       `json:"fullName,omitempty"`
	HealthID     string       `json:"healthId,omitempty"`
	HospitalName string       `json:"hospitalName,omitempty"`
	Role         HospitalRole `json:"role,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (u *User) IsPatient() bool { return u.Type == TypePatient }

// Attributes carries the account-type specific signup fields.
type Attributes struct {
	FullName     string
	HospitalName string
	Role         string
}

// NewUser builds a User for email. healthID is used only for patients. A
// hospital without a role gets RoleStaff, and a hospital without a name
// falls back to FullName.
func NewUser(email string, t AccountType, attrs Attributes, healthID string, now time.Time) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Email:     email,
		Type:      t,
		CreatedAt: now.UTC(),
	}

	switch t {
	case TypePatient:
		if !ValidHealthID(healthID) {
			return nil, ErrInvalidHealthID
		}
		u.FullName = attrs.FullName
		u.HealthID = healthID
	case TypeHospital:
		role := HospitalRole(attrs.Role)
		if role == "" {
			role = RoleStaff
		}
		if !validRoles[role] {
			return nil, ErrInvalidRole
		}
		name := attrs.HospitalName
		if name == "" {
			name = attrs.FullName
		}
		u.FullName = name
		u.HospitalName = name
		u.Role = role
	default:
		return nil, ErrInvalidType
	}

	return u, nil
}

func copyUser(u *User) *User {
	cp := *u
	return &cp
}
