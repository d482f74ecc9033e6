package record

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepo keeps records in insertion order in process memory.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records []*MedicalRecord
	byID    map[string]int // id -> index into records
	now     func() time.Time
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byID: make(map[string]int),
		now:  time.Now,
	}
}

func (r *InMemoryRepo) Add(_ context.Context, rec *MedicalRecord) (string, error) {
	if err := rec.prepare(r.now()); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[rec.ID]; ok {
		return "", ErrDuplicateID
	}
	r.byID[rec.ID] = len(r.records)
	r.records = append(r.records, copyRecord(rec))
	return rec.ID, nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id string) (*MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(r.records[i]), nil
}

func (r *InMemoryRepo) ListByHealthID(_ context.Context, healthID string) ([]*MedicalRecord, error) {
	return r.filter(func(rec *MedicalRecord) bool { return rec.PatientHealthID == healthID }), nil
}

func (r *InMemoryRepo) ListByOwner(_ context.Context, email string) ([]*MedicalRecord, error) {
	return r.filter(func(rec *MedicalRecord) bool { return rec.OwnerEmail == email }), nil
}

func (r *InMemoryRepo) filter(keep func(*MedicalRecord) bool) []*MedicalRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*MedicalRecord{}
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	return out
}

func (r *InMemoryRepo) Update(_ context.Context, id string, p Patch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	r.records[i].Apply(p, r.now())
	return true, nil
}

func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
