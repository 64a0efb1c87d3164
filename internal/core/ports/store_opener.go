package ports

import "go.trai.ch/kiln/internal/core/domain"

// StoreOpener opens the build record store of a workspace.
//
//go:generate mockgen -source=store_opener.go -destination=mocks/mock_store_opener.go -package=mocks
type StoreOpener interface {
	// Open returns the store for backend rooted at stateDir.
	Open(stateDir string, backend domain.StoreBackend) (BuildRecordStore, error)
}
