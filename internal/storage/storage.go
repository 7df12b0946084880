// internal/storage/storage.go
package storage

import (
	"io"
	"io/fs"

	"github.com/OCAP2/simtools/pkg/core"
)

var (
	// ErrNotFound is matched by backends' errors for unknown names
	ErrNotFound = fs.ErrNotExist
	// ErrInvalidName is matched by backends' errors for names that are empty after sanitizing
	ErrInvalidName = fs.ErrInvalid
)

// Backend is the interface all archive implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Scenarios
	SaveScenario(name string, doc core.ScenarioDocument) error
	LoadScenario(name string) (core.ScenarioDocument, error)
	ListScenarios() ([]string, error)

	// Traces. SaveTrace validates the stream and returns the number of frames stored.
	// OpenTrace returns the stored frames as NDJSON ordered by time.
	SaveTrace(name string, r io.Reader) (int, error)
	OpenTrace(name string) (io.ReadCloser, error)
	ListTraces() ([]string, error)
}

// FileBacked is an optional interface for backends that write one file per
// archived item.
type FileBacked interface {
	LastWrittenPath() string
}
