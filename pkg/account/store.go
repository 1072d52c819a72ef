package account

import (
	"github.com/google/uuid"
)

// store is the unsynchronized map backing the in-memory and file
// repositories. Callers hold their own lock.
type store struct {
	byID    map[uuid.UUID]Account
	byEmail map[string]uuid.UUID
}

func newStore() *store {
	return &store{
		byID:    make(map[uuid.UUID]Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *store) findByEmail(email string) (Account, error) {
	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.findByID(id)
}

func (s *store) findByID(id uuid.UUID) (Account, error) {
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct.clone(), nil
}

func (s *store) create(acct Account) (Account, error) {
	acct.Email = NormalizeEmail(acct.Email)
	if _, ok := s.byEmail[acct.Email]; ok {
		return Account{}, ErrDuplicateEmail
	}
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	if _, ok := s.byID[acct.ID]; ok {
		return Account{}, ErrDuplicateEmail
	}
	s.byID[acct.ID] = acct.clone()
	s.byEmail[acct.Email] = acct.ID
	return acct, nil
}

// put replaces an existing account, keeping the email index in sync.
func (s *store) put(acct Account) error {
	prev, ok := s.byID[acct.ID]
	if !ok {
		return ErrNotFound
	}
	acct.Email = NormalizeEmail(acct.Email)
	if acct.Email != prev.Email {
		if _, taken := s.byEmail[acct.Email]; taken {
			return ErrDuplicateEmail
		}
		delete(s.byEmail, prev.Email)
		s.byEmail[acct.Email] = acct.ID
	}
	s.byID[acct.ID] = acct.clone()
	return nil
}

func (s *store) remove(id uuid.UUID) {
	if acct, ok := s.byID[id]; ok {
		delete(s.byEmail, acct.Email)
		delete(s.byID, id)
	}
}

func (s *store) all() []Account {
	accounts := make([]Account, 0, len(s.byID))
	for _, acct := range s.byID {
		accounts = append(accounts, acct.clone())
	}
	return accounts
}
