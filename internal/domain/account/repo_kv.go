package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeev/jeev/internal/platform/kv"
)

const (
	userKeyPrefix     = "user:"
	healthIDKeyPrefix = "hid:"
)

// userRepoKV stores each user as a JSON document under "user:<email>" with a
// "hid:<healthId>" index key holding the email.
type userRepoKV struct {
	store *kv.Store
	mu    sync.Mutex // serializes check-and-insert
}

func NewUserRepoKV(store *kv.Store) UserRepository {
	return &userRepoKV{store: store}
}

func (r *userRepoKV) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.store.Has(userKeyPrefix + u.Email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailTaken
	}

	b := kv.NewBatch()
	if u.HealthID != "" {
		taken, err := r.store.Has(healthIDKeyPrefix + u.HealthID)
		if err != nil {
			return err
		}
		if taken {
			return ErrHealthIDTaken
		}
		b.Put(healthIDKeyPrefix+u.HealthID, []byte(u.Email))
	}
	if err := b.PutJSON(userKeyPrefix+u.Email, u); err != nil {
		return err
	}
	return r.store.Write(b)
}

func (r *userRepoKV) GetByEmail(_ context.Context, email string) (*User, error) {
	var u User
	err := r.store.GetJSON(userKeyPrefix+email, &u)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoKV) GetByHealthID(ctx context.Context, healthID string) (*User, error) {
	email, err := r.store.Get(healthIDKeyPrefix + healthID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u, err := r.GetByEmail(ctx, string(email))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("health id %s points at missing user %s: %w", healthID, email, err)
	}
	return u, err
}
