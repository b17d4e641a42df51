package index

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateKey indicates a tag key was supplied more than once.
	ErrDuplicateKey = errors.New("index: duplicate key")
	// ErrKeyNotFound indicates a tag key is not present in a Metadata.
	ErrKeyNotFound = errors.New("index: key not found")
	// ErrInvalidKey indicates a tag key that can never be read back.
	ErrInvalidKey = errors.New("index: invalid key")
	// ErrMalformedLine indicates an index line without the file<TAB>tags shape.
	ErrMalformedLine = errors.New("index: malformed line")
	// ErrMalformedTag indicates tag text dropped by strict parsing.
	ErrMalformedTag = errors.New("index: malformed tag")
	// ErrEmptyPath indicates an entry without a file path.
	ErrEmptyPath = errors.New("index: empty file path")

	ErrLockTimeout = errors.New("index: lock timeout")
	ErrNotLocked   = errors.New("index: not locked")
	ErrStaleLock   = errors.New("index: stale lock")
)

// DuplicateKeyError is returned when a Metadata is built with a repeated key.
type DuplicateKeyError struct {
	Type string
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already contains %q", e.Type, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// KeyNotFoundError is returned by Metadata.Get for a missing key.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found", e.Key)
}

func (e *KeyNotFoundError) Unwrap() error { return ErrKeyNotFound }

type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Unwrap() error { return ErrInvalidKey }

// MalformedLineError reports the first index line that could not be parsed.
type MalformedLineError struct {
	Path    string
	Line    int
	Content string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("%s:%d: expected <file>\\t<tags>, got %q", e.Path, e.Line, e.Content)
}

func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }

// MalformedTagError lists the segments strict parsing refused to drop.
type MalformedTagError struct {
	Input   string
	Dropped []string
}

func (e *MalformedTagError) Error() string {
	return fmt.Sprintf("malformed tags in %q: %q", e.Input, e.Dropped)
}

func (e *MalformedTagError) Unwrap() error { return ErrMalformedTag }

// LockError wraps a failure to take or give back an index lock.
type LockError struct {
	Path string
	Op   string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("cannot %s index lock %s: %v", e.Op, e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// LockTimeoutError is returned when the lock could not be taken before the
// deadline. HolderPID is 0 when the holder is unknown.
type LockTimeoutError struct {
	Path      string
	Timeout   time.Duration
	HolderPID int
	Stale     bool
}

func (e *LockTimeoutError) Error() string {
	switch {
	case e.Stale:
		return fmt.Sprintf("index lock %s still held after %s, recorded holder pid %d is not running (stale lock, remove it manually)", e.Path, e.Timeout, e.HolderPID)
	case e.HolderPID > 0:
		return fmt.Sprintf("index lock %s held by pid %d, gave up after %s", e.Path, e.HolderPID, e.Timeout)
	default:
		return fmt.Sprintf("index lock %s busy, gave up after %s", e.Path, e.Timeout)
	}
}

func (e *LockTimeoutError) Unwrap() []error {
	if e.Stale {
		return []error{ErrLockTimeout, ErrStaleLock}
	}
	return []error{ErrLockTimeout}
}
