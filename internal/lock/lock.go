// Package lock provides the campaign lock that keeps two launches from
// rebuilding the same workspaces at once.
//
// The lock is an advisory file lock (flock) on <iteration>/.campaign.lock.
// While held, the file contains JSON naming the holder:
// - PID of the owning process
// - Timestamp when the lock was acquired
// - The operation being performed (launch, submit)
//
// The OS drops the lock when the holder dies, so there are no stale locks
// to clean up; a leftover holder record is simply ignored.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Common errors
var (
	ErrLocked      = errors.New("campaign is locked by another process")
	ErrNotLocked   = errors.New("campaign is not locked")
	ErrInvalidLock = errors.New("invalid lock file")
)

// retryDelay is how often a blocked Acquire retries.
const retryDelay = 100 * time.Millisecond

// LockInfo contains information about who holds a lock.
type LockInfo struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Operation  string    `json:"operation,omitempty"`
	Hostname   string    `json:"hostname,omitempty"`
}

// IsStale reports whether the recorded holder process is gone.
func (l *LockInfo) IsStale() bool {
	return !processExists(l.PID)
}

// Lock is a campaign lock.
type Lock struct {
	lockPath string
	fl       *flock.Flock
}

// New creates a Lock backed by the file at lockPath.
func New(lockPath string) *Lock {
	return &Lock{
		lockPath: lockPath,
		fl:       flock.New(lockPath),
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.lockPath
}

// Acquire takes the lock, waiting up to timeout. A zero timeout tries once.
// Returns ErrLocked, naming the holder when known, if the lock stays busy.
func (l *Lock) Acquire(ctx context.Context, operation string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.lockPath), 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	var locked bool
	var err error
	if timeout <= 0 {
		locked, err = l.fl.TryLock()
	} else {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		locked, err = l.fl.TryLockContext(ctx, retryDelay)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		if info, readErr := l.Read(); readErr == nil {
			return fmt.Errorf("%w: PID %d (%s since %s)",
				ErrLocked, info.PID, info.Operation, info.AcquiredAt.Format(time.RFC3339))
		}
		return ErrLocked
	}

	if err := l.write(operation); err != nil {
		_ = l.fl.Unlock()
		return err
	}
	return nil
}

// Release clears the holder record and unlocks.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := os.Truncate(l.lockPath, 0); err != nil && !os.IsNotExist(err) {
		_ = l.fl.Unlock()
		return fmt.Errorf("clearing lock file: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// Read reads the holder record without taking the lock.
func (l *Lock) Read() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLocked
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotLocked
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLock, err)
	}
	return &info, nil
}

// Status returns a human-readable status of the lock.
func (l *Lock) Status() string {
	if l.fl.Locked() {
		return "locked (by us)"
	}

	if _, err := os.Stat(l.lockPath); os.IsNotExist(err) {
		return "unlocked"
	}

	probe := flock.New(l.lockPath)
	locked, err := probe.TryLock()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if locked {
		_ = probe.Unlock()
		return "unlocked"
	}

	info, err := l.Read()
	if err != nil {
		return "locked"
	}
	if info.IsStale() {
		return fmt.Sprintf("locked (holder PID %d not visible from this host)", info.PID)
	}
	return fmt.Sprintf("locked by PID %d (%s since %s)", info.PID, info.Operation, info.AcquiredAt.Format(time.RFC3339))
}

// write records the holder in the lock file.
func (l *Lock) write(operation string) error {
	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
		Operation:  operation,
		Hostname:   hostname,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock info: %w", err)
	}

	if err := os.WriteFile(l.lockPath, data, 0644); err != nil { //nolint:gosec // G306: lock files are non-sensitive operational data
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}
