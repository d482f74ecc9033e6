package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeev/jeev/internal/platform/kv"
)

const (
	recordKeyPrefix = "rec:"
	recordIDPrefix  = "rid:"
	recordSeqKey    = "meta:rec_seq"
)

// repoKV stores records under "rec:<seq>" with a zero-padded sequence so a
// prefix scan returns them in insertion order. "rid:<id>" maps an id to its
// sequence key.
type repoKV struct {
	store *kv.Store
	mu    sync.Mutex // serializes sequence allocation and updates
	now   func() time.Time
}

func NewRepoKV(store *kv.Store) Repository {
	return &repoKV{store: store, now: time.Now}
}

func seqKey(seq uint64) string {
	return fmt.Sprintf("%s%020d", recordKeyPrefix, seq)
}

func (r *repoKV) Add(_ context.Context, rec *MedicalRecord) (string, error) {
	if err := rec.prepare(r.now()); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	taken, err := r.store.Has(recordIDPrefix + rec.ID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrDuplicateID
	}

	seq, err := r.store.Uint64(recordSeqKey)
	if err != nil {
		return "", err
	}
	seq++
	key := seqKey(seq)

	b := kv.NewBatch()
	if err := b.PutJSON(key, rec); err != nil {
		return "", err
	}
	b.Put(recordIDPrefix+rec.ID, []byte(key))
	b.PutUint64(recordSeqKey, seq)
	if err := r.store.Write(b); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *repoKV) primaryKey(id string) (string, error) {
	key, err := r.store.Get(recordIDPrefix + id)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(key), nil
}

func (r *repoKV) GetByID(_ context.Context, id string) (*MedicalRecord, error) {
	key, err := r.primaryKey(id)
	if err != nil {
		return nil, err
	}
	var rec MedicalRecord
	if err := r.store.GetJSON(key, &rec); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("record id %s points at missing key %s: %w", id, key, ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repoKV) ListByHealthID(_ context.Context, healthID string) ([]*MedicalRecord, error) {
	return r.filter(func(rec *MedicalRecord) bool { return rec.PatientHealthID == healthID })
}

func (r *repoKV) ListByOwner(_ context.Context, email string) ([]*MedicalRecord, error) {
	return r.filter(func(rec *MedicalRecord) bool { return rec.OwnerEmail == email })
}

// filter scans every record. Decoding goes through MedicalRecord's
// UnmarshalJSON, so documents keyed by the older "healthId" field match too.
func (r *repoKV) filter(keep func(*MedicalRecord) bool) ([]*MedicalRecord, error) {
	out := []*MedicalRecord{}
	err := r.store.Scan(recordKeyPrefix, func(key, value []byte) error {
		var rec MedicalRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if keep(&rec) {
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoKV) Update(_ context.Context, id string, p Patch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.primaryKey(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var rec MedicalRecord
	if err := r.store.GetJSON(key, &rec); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	rec.Apply(p, r.now())

	b := kv.NewBatch()
	if err := b.PutJSON(key, &rec); err != nil {
		return false, err
	}
	if err := r.store.Write(b); err != nil {
		return false, err
	}
	return true, nil
}
