package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Save writes all entries to Path. The content goes to a temporary file in
// the same directory which is then renamed over Path, so concurrent readers
// see either the old or the new index, never a partial one.
func (idx *Index) Save() error {
	if idx.RequireLock && !idx.Locked() {
		return &LockError{Path: idx.lock.Path(), Op: "save under", Err: ErrNotLocked}
	}
	for _, e := range idx.entries {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("cannot save index %s: %w", idx.Path, err)
		}
	}
	start := time.Now()

	dir := filepath.Dir(idx.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(idx.Path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot create temp index %s: %w", tmp, err)
	}
	if err := WriteEntries(f, idx.entries); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot write index %s: %w", idx.Path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot sync index %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, idx.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot replace index %s: %w", idx.Path, err)
	}

	idx.Log.Debug().
		Str("path", idx.Path).
		Int("entries", len(idx.entries)).
		Dur("duration_ms", time.Since(start)).
		Msg("index saved")
	return nil
}

// WriteEntries writes entries as index lines to w.
func WriteEntries(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(FormatLine(e)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
