package supervisor

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning reports a second supervisor contending for the same
// data directory.
var ErrAlreadyRunning = errors.New("another minder instance is already running")

// Lock is the held single-instance guard. Two supervisors sharing one
// datadir would race on the reindex markers and the daemon itself.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the instance lock at path without blocking.
func AcquireLock(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
