package account

import (
	"fmt"
)

// Persistence types accepted by NewRepository.
const (
	PersistenceMemory   = "memory"
	PersistenceFile     = "file"
	PersistencePostgres = "postgres"
)

// NewRepository builds the repository for persistenceType. db is only used
// for postgres and dataDir only for file.
func NewRepository(persistenceType, dataDir string, db DBTX) (Repository, error) {
	switch persistenceType {
	case PersistenceMemory, "":
		return NewInMemoryRepository(), nil
	case PersistenceFile:
		return NewFileRepository(dataDir)
	case PersistencePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres persistence requires a database connection")
		}
		return NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown persistence type: %q", persistenceType)
	}
}
