package ports

// Hasher defines the interface for computing file fingerprints.
//
//go:generate mockgen -destination=mocks/mock_hasher.go -package=mocks -source=hasher.go
type Hasher interface {
	// HashFile returns the fingerprint of the file at path.
	HashFile(path string) (string, error)
}
