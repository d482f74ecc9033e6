package account

import (
	"context"
	"sync"
)

// InMemoryUserRepo keeps users in process memory. State is lost on restart.
type InMemoryUserRepo struct {
	mu         sync.RWMutex
	byEmail    map[string]*User
	byHealthID map[string]string // health id -> email
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		byEmail:    make(map[string]*User),
		byHealthID: make(map[string]string),
	}
}

func (r *InMemoryUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if u.HealthID != "" {
		if _, ok := r.byHealthID[u.HealthID]; ok {
			return ErrHealthIDTaken
		}
		r.byHealthID[u.HealthID] = u.Email
	}
	r.byEmail[u.Email] = copyUser(u)
	return nil
}

func (r *InMemoryUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (r *InMemoryUserRepo) GetByHealthID(_ context.Context, healthID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email, ok := r.byHealthID[healthID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(r.byEmail[email]), nil
}

// Len returns the number of stored users.
func (r *InMemoryUserRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEmail)
}
