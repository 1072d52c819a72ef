package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository using in-memory storage.
// mu guards the maps; locks serializes updates per account.
type InMemoryRepository struct {
	mu    sync.RWMutex
	locks keyLocks
	s     *store
}

// NewInMemoryRepository creates a new in-memory account repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{s: newStore()}
}

// FindByEmail finds an account by its normalized email
func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.findByEmail(email)
}

// FindByID finds an account by ID
func (r *InMemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.findByID(id)
}

// Create stores a new account. The email must not be registered yet.
func (r *InMemoryRepository) Create(ctx context.Context, acct Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.create(acct)
}

// Save overwrites an existing account
func (r *InMemoryRepository) Save(ctx context.Context, acct Account) error {
	unlock := r.locks.lock(acct.ID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.put(acct)
}

// Update runs fn while holding the lock of account id. Updates of the same
// account are serialized; updates of different accounts run concurrently.
func (r *InMemoryRepository) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	unlock := r.locks.lock(id)
	defer unlock()

	r.mu.RLock()
	current, err := r.s.findByID(id)
	r.mu.RUnlock()
	if err != nil {
		return Account{}, err
	}

	next, err := fn(current)
	if err != nil {
		return Account{}, err
	}
	next.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.s.put(next); err != nil {
		return Account{}, err
	}
	return next, nil
}
