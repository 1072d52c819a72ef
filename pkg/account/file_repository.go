package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const accountsFile = "accounts.json"

// FileRepository implements Repository using a JSON file.
// mu guards the maps and the file; locks serializes updates per account.
type FileRepository struct {
	dataDir string
	mu      sync.RWMutex
	locks   keyLocks
	s       *store
}

// accountData represents the structure of data stored in the JSON file
type accountData struct {
	Accounts []Account `json:"accounts"`
}

// NewFileRepository creates a new file-based account repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		dataDir: dataDir,
		s:       newStore(),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// FindByEmail finds an account by its normalized email
func (r *FileRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.findByEmail(email)
}

// FindByID finds an account by ID
func (r *FileRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s.findByID(id)
}

// Create stores a new account and writes the file
func (r *FileRepository) Create(ctx context.Context, acct Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, err := r.s.create(acct)
	if err != nil {
		return Account{}, err
	}
	if err := r.save(); err != nil {
		r.s.remove(created.ID)
		return Account{}, err
	}
	return created, nil
}

// Save overwrites an existing account and writes the file
func (r *FileRepository) Save(ctx context.Context, acct Account) error {
	unlock := r.locks.lock(acct.ID)
	defer unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.s.findByID(acct.ID)
	if err != nil {
		return err
	}
	if err := r.s.put(acct); err != nil {
		return err
	}
	if err := r.save(); err != nil {
		_ = r.s.put(prev)
		return err
	}
	return nil
}

// Update runs fn under the lock of account id and persists the result. fn
// runs without the file lock, so updates of different accounts overlap. The
// in-memory state is rolled back if the file cannot be written.
func (r *FileRepository) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	unlock := r.locks.lock(id)
	defer unlock()

	r.mu.RLock()
	prev, err := r.s.findByID(id)
	r.mu.RUnlock()
	if err != nil {
		return Account{}, err
	}

	next, err := fn(prev.clone())
	if err != nil {
		return Account{}, err
	}
	next.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.s.put(next); err != nil {
		return Account{}, err
	}
	if err := r.save(); err != nil {
		_ = r.s.put(prev)
		return Account{}, err
	}
	return next, nil
}

// load reads account data from file
func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, accountsFile)

	// If file doesn't exist, start empty
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var obj accountData
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	for _, acct := range obj.Accounts {
		if _, err := r.s.create(acct); err != nil {
			return fmt.Errorf("account %s: %w", acct.ID, err)
		}
	}
	return nil
}

// save writes account data to file atomically
func (r *FileRepository) save() error {
	accounts := r.s.all()
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Email < accounts[j].Email
	})

	jsonData, err := json.MarshalIndent(accountData{Accounts: accounts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, accountsFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, accountsFile)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
