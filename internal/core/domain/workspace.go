package domain

// StoreBackend selects the build record persistence.
type StoreBackend string

const (
	// StoreJSON keeps one JSON file per task.
	StoreJSON StoreBackend = "json"
	// StoreSQLite keeps all records in a single sqlite database.
	StoreSQLite StoreBackend = "sqlite"
)

// ServeSettings configures the live reload server used in watch mode.
type ServeSettings struct {
	Enabled bool
	Addr    string
	Dir     string
}

// NotifySettings configures outbound reload notifications.
type NotifySettings struct {
	Webhook string
	Retries uint64
}

// Workspace is a loaded project: the task graph for one mode and the project settings.
type Workspace struct {
	Root     string
	StateDir string
	Mode     Mode
	Store    StoreBackend
	Serve    ServeSettings
	Notify   NotifySettings
	Graph    *Graph
}
