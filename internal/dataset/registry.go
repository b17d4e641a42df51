package dataset

import (
	"github.com/grape-pipeline/grape/internal/index"
)

// DefaultFileInfo lists the tags that describe a single file rather than the
// dataset it belongs to.
var DefaultFileInfo = []string{"type", "md5", "size", "view"}

// Options controls how index entries are grouped into datasets.
type Options struct {
	// ReadType is the "type" tag value of read files. Default "fastq".
	ReadType string
	// FileInfo are the per-file tag keys. Default DefaultFileInfo.
	FileInfo []string
}

// Registry groups index entries by dataset id.
type Registry struct {
	ids  []string
	sets map[string]*Dataset
}

// NewRegistry builds datasets from entries. Entries without an id tag are
// ignored. The dataset metadata is the union of the entries' non file-info
// tags, the first value seen for a key winning.
func NewRegistry(entries []index.Entry, opts Options) (*Registry, error) {
	if opts.ReadType == "" {
		opts.ReadType = "fastq"
	}
	if opts.FileInfo == nil {
		opts.FileInfo = DefaultFileInfo
	}

	r := &Registry{sets: map[string]*Dataset{}}
	seen := map[string]map[string]bool{}
	for _, e := range entries {
		id, ok := e.Metadata.Lookup(KeyID)
		if !ok {
			continue
		}
		d, ok := r.sets[id]
		if !ok {
			d = &Dataset{Metadata: e.Metadata.Without(opts.FileInfo...)}
			r.sets[id] = d
			r.ids = append(r.ids, id)
			seen[id] = map[string]bool{}
		} else {
			var extra []index.Tag
			for _, t := range e.Metadata.Without(opts.FileInfo...).All() {
				if !d.Metadata.Has(t.Key) {
					extra = append(extra, t)
				}
			}
			if len(extra) > 0 {
				m, err := d.Metadata.With(extra...)
				if err != nil {
					return nil, err
				}
				d.Metadata = m
			}
		}
		if typ, _ := e.Metadata.Lookup("type"); typ == opts.ReadType && !seen[id][e.File] {
			seen[id][e.File] = true
			d.Reads = append(d.Reads, e.File)
		}
	}
	return r, nil
}

// FromIndex builds a registry from a loaded index.
func FromIndex(idx *index.Index, opts Options) (*Registry, error) {
	return NewRegistry(idx.Entries(), opts)
}

// IDs returns dataset ids in order of first appearance.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Get returns the dataset with the given id.
func (r *Registry) Get(id string) (Dataset, bool) {
	d, ok := r.sets[id]
	if !ok {
		return Dataset{}, false
	}
	return *d, true
}

func (r *Registry) Len() int { return len(r.ids) }
