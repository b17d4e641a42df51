// Package index reads and writes GRAPE index files: one line per file,
// "<file>\t<key>=<value>; ...", recording metadata for datasets and the
// files derived from them.
package index

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"
)

// Entry is one line of an index file.
type Entry struct {
	File     string
	Metadata *Metadata
}

// Index is an ordered list of entries bound to an index file.
//
// Index is not safe for concurrent use; other processes writing the same
// path are kept out with Lock/Release around a read-modify-write cycle.
type Index struct {
	Path string
	Type Type

	// RequireLock makes Save fail with ErrNotLocked unless the index lock is held.
	RequireLock bool

	Log zerolog.Logger

	entries []Entry
	files   *btree.Map[string, []int]
	loaded  bool
	lock    *Lock
}

// New binds an index to path. The given entries are copied.
func New(path string, typ Type, entries ...Entry) *Index {
	idx := &Index{
		Path:  path,
		Type:  typ,
		Log:   zerolog.Nop(),
		files: btree.NewMap[string, []int](0),
		lock:  NewLock(path),
	}
	idx.entries = make([]Entry, 0, len(entries))
	for _, e := range entries {
		idx.append(e)
	}
	return idx
}

func (idx *Index) append(e Entry) {
	pos, _ := idx.files.Get(e.File)
	idx.files.Set(e.File, append(pos, len(idx.entries)))
	idx.entries = append(idx.entries, e)
}

func (idx *Index) reset() {
	idx.entries = idx.entries[:0]
	idx.files = btree.NewMap[string, []int](0)
	idx.loaded = false
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Loaded reports whether Initialize has read the backing file.
func (idx *Index) Loaded() bool { return idx.loaded }

// Entries returns a copy of all entries in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Insert appends e. Repeated files are kept; readers decide which wins.
func (idx *Index) Insert(e Entry) error {
	if e.File == "" {
		return ErrEmptyPath
	}
	if e.Metadata == nil {
		e.Metadata = &Metadata{pos: map[string]int{}}
	}
	idx.append(e)
	return nil
}

// Add appends an entry for file belonging to dataset id. The metadata is
// "id" followed by the info keys in sorted order.
func (idx *Index) Add(id, file string, info map[string]string) error {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]Tag, 0, len(keys)+1)
	tags = append(tags, Tag{Key: "id", Value: id})
	for _, k := range keys {
		tags = append(tags, Tag{Key: k, Value: info[k]})
	}
	m, err := NewMetadata(tags...)
	if err != nil {
		return err
	}
	return idx.Insert(Entry{File: file, Metadata: m})
}

// Lookup returns the last entry recorded for file.
func (idx *Index) Lookup(file string) (Entry, bool) {
	pos, ok := idx.files.Get(file)
	if !ok || len(pos) == 0 {
		return Entry{}, false
	}
	return idx.entries[pos[len(pos)-1]], true
}

// History returns every entry recorded for file, oldest first.
func (idx *Index) History(file string) []Entry {
	pos, _ := idx.files.Get(file)
	out := make([]Entry, 0, len(pos))
	for _, p := range pos {
		out = append(out, idx.entries[p])
	}
	return out
}

// Files returns the distinct file paths in lexical order.
func (idx *Index) Files() []string {
	out := make([]string, 0, idx.files.Len())
	idx.files.Scan(func(file string, _ []int) bool {
		out = append(out, file)
		return true
	})
	return out
}

// Select returns the entries whose tag key equals value, in order.
func (idx *Index) Select(key, value string) []Entry {
	var out []Entry
	for _, e := range idx.entries {
		if v, ok := e.Metadata.Lookup(key); ok && v == value {
			out = append(out, e)
		}
	}
	return out
}

// Lock takes the index lock, see Lock.Acquire.
func (idx *Index) Lock() error {
	return idx.lock.Acquire()
}

// Release gives back the index lock.
func (idx *Index) Release() error {
	return idx.lock.Release()
}

// Locked reports whether this index holds its lock.
func (idx *Index) Locked() bool { return idx.lock.Held() }

// LockHandle exposes the underlying lock, e.g. to tune its timeout.
func (idx *Index) LockHandle() *Lock { return idx.lock }

// FormatLine renders e as an index file line without the newline.
func FormatLine(e Entry) string {
	return e.File + "\t" + e.Metadata.String()
}

// validateEntry rejects entries that would not survive a save/load cycle.
func validateEntry(e Entry) error {
	if e.File == "" {
		return ErrEmptyPath
	}
	if strings.ContainsAny(e.File, "\t\r\n") {
		return &InvalidKeyError{Key: e.File, Reason: "file path contains a tab or newline"}
	}
	if e.Metadata.Len() == 0 {
		return &InvalidKeyError{Key: e.File, Reason: "entry has no tags"}
	}
	for _, t := range e.Metadata.All() {
		if strings.ContainsAny(t.Key, "=; \t\r\n") {
			return &InvalidKeyError{Key: t.Key, Reason: "key contains '=', ';' or whitespace"}
		}
		if t.Value == "" || strings.ContainsAny(t.Value, ";\t\r\n") {
			return &InvalidKeyError{Key: t.Key, Reason: "value is empty or contains a tab, newline or ';'"}
		}
	}
	return nil
}
