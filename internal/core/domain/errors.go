package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrTaskAlreadyExists is returned when attempting to add a task with a name that already exists.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrMissingDependency is returned when a task references a dependency that doesn't exist in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the task dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is not found in the graph.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrReservedTaskName is returned when a task uses a reserved name (e.g., "all").
	ErrReservedTaskName = zerr.New("task name 'all' is reserved")

	// ErrInvalidTaskName is returned when a task name contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrConfiguration is the parent of all task definition errors.
	ErrConfiguration = zerr.New("invalid configuration")

	// ErrMissingSource is returned when a task declares no source selector.
	ErrMissingSource = zerr.New("task has no source selector")

	// ErrMissingDestination is returned when a task declares no destination.
	ErrMissingDestination = zerr.New("task has no destination")

	// ErrInvalidStaleness is returned when a staleness policy is not recognized.
	ErrInvalidStaleness = zerr.New("invalid staleness policy, expected 'always', 'newer' or 'content'")

	// ErrInvalidMode is returned when a build mode is not recognized.
	ErrInvalidMode = zerr.New("invalid mode, expected 'production' or 'development'")

	// ErrInvalidStoreBackend is returned when the configured build record backend is unknown.
	ErrInvalidStoreBackend = zerr.New("invalid store backend, expected 'json' or 'sqlite'")

	// ErrUnknownTransform is returned when a chain step names a transform that is not registered.
	ErrUnknownTransform = zerr.New("unknown transform")

	// ErrInvalidTransformOptions is returned when a chain step is missing required options.
	ErrInvalidTransformOptions = zerr.New("invalid transform options")

	// ErrInvalidSelector is returned when a source selector is not a valid glob.
	ErrInvalidSelector = zerr.New("invalid source selector")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no kiln.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find kiln.yaml")

	// ErrStoreCreateFailed is returned when the build record store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build record store")

	// ErrStoreReadFailed is returned when a build record cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build record")

	// ErrStoreUnmarshalFailed is returned when a build record cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build record")

	// ErrStoreMarshalFailed is returned when a build record cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build record")

	// ErrStoreWriteFailed is returned when a build record cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build record")

	// ErrBuildExecutionFailed is returned when at least one task of a run failed.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrTaskExecutionFailed wraps the error of a single failed task.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrUpstreamFailure is recorded on tasks skipped because a dependency failed.
	ErrUpstreamFailure = zerr.New("upstream failure")

	// ErrSourceResolutionFailed is returned when source selectors cannot be expanded.
	ErrSourceResolutionFailed = zerr.New("failed to resolve sources")

	// ErrSourceReadFailed is returned when a dirty source file cannot be read.
	ErrSourceReadFailed = zerr.New("failed to read source file")

	// ErrOutputWriteFailed is returned when an output file cannot be written.
	ErrOutputWriteFailed = zerr.New("failed to write output")

	// ErrOutputPathOutsideRoot is returned when an output would be written outside the project root.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside project root")

	// ErrBuildRecordUpdateFailed is returned when committing a build record fails.
	ErrBuildRecordUpdateFailed = zerr.New("failed to update build record")

	// ErrNotifierFailed is logged when a reload notification could not be delivered.
	ErrNotifierFailed = zerr.New("reload notification failed")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrServerFailed is returned when the live reload server cannot start.
	ErrServerFailed = zerr.New("live reload server failed")
)

// TransformError reports a failed chain step. It isolates the failure to the owning task.
type TransformError struct {
	Transform string
	Message   string
	Err       error
}

// NewTransformError wraps err as the failure of the named transform.
func NewTransformError(transform string, err error) *TransformError {
	msg := "transform failed"
	if err != nil {
		msg = err.Error()
	}
	return &TransformError{Transform: transform, Message: msg, Err: err}
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.Transform, e.Message)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
