package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	DefaultLockTimeout = 30 * time.Second
	defaultLockPoll    = 200 * time.Millisecond
)

// Holds are counted per lock file for the whole process, so nested or
// repeated Acquire calls from the same process never wait on themselves.
var (
	processLocksMu sync.Mutex
	processLocks   = map[string]*processLock{}
)

type processLock struct {
	fl    *flock.Flock
	holds int
}

// Lock is a cooperative, path-scoped exclusive lock guarding read-modify-write
// cycles on an index file. It is reentrant within a process.
type Lock struct {
	path    string
	held    int
	Timeout time.Duration
	Poll    time.Duration
}

// NewLock returns the lock guarding indexPath. The lock file is
// "<indexPath>.lock".
func NewLock(indexPath string) *Lock {
	p := indexPath + ".lock"
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return &Lock{path: p, Timeout: DefaultLockTimeout, Poll: defaultLockPoll}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Held reports whether this Lock currently holds the lock.
func (l *Lock) Held() bool { return l.held > 0 }

// Acquire takes the lock, waiting up to Timeout. On timeout the error is a
// *LockTimeoutError naming the recorded holder.
func (l *Lock) Acquire() error {
	timeout, poll := l.Timeout, l.Poll
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if poll <= 0 {
		poll = defaultLockPoll
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return &LockError{Path: l.path, Op: "acquire", Err: err}
	}

	fl := flock.New(l.path)
	deadline := time.Now().Add(timeout)
	for {
		done, err := l.tryAcquire(fl)
		if err != nil || done {
			return err
		}
		if time.Now().After(deadline) {
			pid, stale := l.holder()
			return &LockTimeoutError{Path: l.path, Timeout: timeout, HolderPID: pid, Stale: stale}
		}
		time.Sleep(poll)
	}
}

// tryAcquire makes one attempt. The registry mutex is not held while the
// caller sleeps between attempts.
func (l *Lock) tryAcquire(fl *flock.Flock) (bool, error) {
	processLocksMu.Lock()
	defer processLocksMu.Unlock()

	if pl, ok := processLocks[l.path]; ok {
		pl.holds++
		l.held++
		return true, nil
	}
	locked, err := fl.TryLock()
	if err != nil {
		return false, &LockError{Path: l.path, Op: "acquire", Err: err}
	}
	if !locked {
		return false, nil
	}
	if err := writeHolder(l.pidPath()); err != nil {
		_ = fl.Unlock()
		return false, &LockError{Path: l.path, Op: "acquire", Err: err}
	}
	processLocks[l.path] = &processLock{fl: fl, holds: 1}
	l.held++
	return true, nil
}

// Release gives back one hold. The file lock is dropped with the last hold
// in the process.
func (l *Lock) Release() error {
	processLocksMu.Lock()
	defer processLocksMu.Unlock()

	pl, ok := processLocks[l.path]
	if l.held == 0 || !ok {
		return &LockError{Path: l.path, Op: "release", Err: ErrNotLocked}
	}
	l.held--
	pl.holds--
	if pl.holds > 0 {
		return nil
	}
	delete(processLocks, l.path)
	_ = os.Remove(l.pidPath())
	if err := pl.fl.Unlock(); err != nil {
		return &LockError{Path: l.path, Op: "release", Err: err}
	}
	return nil
}

// WithLock runs fn while holding l and releases it on every exit path.
func WithLock(l *Lock, fn func() error) (err error) {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); err == nil {
			err = rerr
		}
	}()
	return fn()
}

func (l *Lock) pidPath() string { return l.path + ".pid" }

// holder reads the recorded holder. The lock is stale when the holder ran
// on this host and is no longer alive.
func (l *Lock) holder() (int, bool) {
	b, err := os.ReadFile(l.pidPath())
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, false
	}
	host, _ := os.Hostname()
	if len(fields) > 1 && fields[1] != host {
		return pid, false
	}
	return pid, !processAlive(pid)
}

func writeHolder(path string) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	body := fmt.Sprintf("%d %s\n", os.Getpid(), host)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("cannot record lock holder: %w", err)
	}
	return nil
}

// IsLockBusy reports whether err came from a lock that could not be taken.
func IsLockBusy(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
