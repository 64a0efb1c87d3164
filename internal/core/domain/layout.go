package domain

import "path/filepath"

const (
	// StateDirName is the default name of the state directory.
	StateDirName = ".kiln"

	// RecordsDirName is the directory holding JSON build records.
	RecordsDirName = "records"

	// RecordsDBName is the sqlite build record database file.
	RecordsDBName = "records.db"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "kiln.yaml"

	// DefaultServeAddr is the default listen address of the live reload server.
	DefaultServeAddr = "localhost:3000"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultRecordsPath returns the default path of the JSON build record store.
// It joins .kiln and records.
func DefaultRecordsPath() string {
	return filepath.Join(StateDirName, RecordsDirName)
}

// DefaultRecordsDBPath returns the default path of the sqlite build record store.
func DefaultRecordsDBPath() string {
	return filepath.Join(StateDirName, RecordsDBName)
}
