package cas

import (
	"path/filepath"

	"go.trai.ch/kiln/internal/adapters/sqlstore"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StoreOpener = (*Opener)(nil)

// Opener opens the configured build record backend inside a state directory.
type Opener struct{}

// NewOpener creates a new Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open returns the JSON store at <stateDir>/records or the sqlite store at <stateDir>/records.db.
func (o *Opener) Open(stateDir string, backend domain.StoreBackend) (ports.BuildRecordStore, error) {
	switch backend {
	case domain.StoreJSON, "":
		return NewStoreWithPath(filepath.Join(stateDir, domain.RecordsDirName))
	case domain.StoreSQLite:
		return sqlstore.Open(filepath.Join(stateDir, domain.RecordsDBName))
	default:
		return nil, zerr.With(domain.ErrInvalidStoreBackend, "store", string(backend))
	}
}
