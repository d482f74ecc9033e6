package record

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("record id already exists")
)

// Repository is the append-only record store. Listings are in insertion
// order and never nil.
type Repository interface {
	Add(ctx context.Context, r *MedicalRecord) (string, error)
	GetByID(ctx context.Context, id string) (*MedicalRecord, error)
	ListByHealthID(ctx context.Context, healthID string) ([]*MedicalRecord, error)
	ListByOwner(ctx context.Context, email string) ([]*MedicalRecord, error)
	// Update reports false without error when no record has the id.
	Update(ctx context.Context, id string, p Patch) (bool, error)
}
