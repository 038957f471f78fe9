package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another ingestion run holds the collection's lock.
var ErrLocked = errors.New("ingest: another run is writing to this collection")

// Lock takes the single-writer lock for collection. An empty dir uses a
// directory under os.TempDir. The returned func releases the lock.
func Lock(dir, collection string) (func(), error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "textbookrag")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, collection+".lock")
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock: %s)", ErrLocked, path)
	}
	return func() { _ = l.Unlock() }, nil
}
