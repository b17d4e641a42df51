package index

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Tag is a single key=value unit of an index line.
type Tag struct {
	Key   string
	Value string
}

// Metadata is an ordered, immutable set of tags. Keys are unique.
type Metadata struct {
	tags []Tag
	pos  map[string]int
}

// tagPattern splits on the first '=' and ends the value at the first ';'.
// A key can therefore never contain '=' and a value never ';'.
var tagPattern = regexp.MustCompile(`([^\s=;]+)=([^;]+);`)

// NewMetadata builds a Metadata from tags in the given order.
func NewMetadata(tags ...Tag) (*Metadata, error) {
	m := &Metadata{
		tags: make([]Tag, 0, len(tags)),
		pos:  make(map[string]int, len(tags)),
	}
	for _, t := range tags {
		if t.Key == "" {
			return nil, &InvalidKeyError{Key: t.Key, Reason: "empty"}
		}
		if _, ok := m.pos[t.Key]; ok {
			return nil, &DuplicateKeyError{Type: "index.Metadata", Key: t.Key}
		}
		m.pos[t.Key] = len(m.tags)
		m.tags = append(m.tags, t)
	}
	return m, nil
}

// MustMetadata is like NewMetadata but panics on error. Intended for tests
// and literals.
func MustMetadata(tags ...Tag) *Metadata {
	m, err := NewMetadata(tags...)
	if err != nil {
		panic(err)
	}
	return m
}

// MetadataFromMap builds a Metadata with keys in sorted order. Values are
// stringified with fmt.Sprint.
func MetadataFromMap(kv map[string]any) (*Metadata, error) {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tags := make([]Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, Tag{Key: k, Value: fmt.Sprint(kv[k])})
	}
	return NewMetadata(tags...)
}

// ParseMetadata parses concatenated key=value; tags. Segments that do not
// match are skipped. A key given twice keeps its first position and its last
// value.
func ParseMetadata(s string) *Metadata {
	m := &Metadata{pos: map[string]int{}}
	for _, match := range tagPattern.FindAllStringSubmatch(s, -1) {
		m.set(match[1], match[2])
	}
	return m
}

// ParseMetadataStrict parses like ParseMetadata but fails instead of dropping
// text or overwriting a repeated key.
func ParseMetadataStrict(s string) (*Metadata, error) {
	var (
		tags    []Tag
		dropped []string
		last    int
	)
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(s, -1) {
		dropped = append(dropped, strings.Fields(s[last:loc[0]])...)
		tags = append(tags, Tag{Key: s[loc[2]:loc[3]], Value: s[loc[4]:loc[5]]})
		last = loc[1]
	}
	dropped = append(dropped, strings.Fields(s[last:])...)
	if len(dropped) > 0 {
		return nil, &MalformedTagError{Input: s, Dropped: dropped}
	}
	return NewMetadata(tags...)
}

func (m *Metadata) set(key, value string) {
	if i, ok := m.pos[key]; ok {
		m.tags[i].Value = value
		return
	}
	m.pos[key] = len(m.tags)
	m.tags = append(m.tags, Tag{Key: key, Value: value})
}

// Get returns the value of key or a *KeyNotFoundError.
func (m *Metadata) Get(key string) (string, error) {
	v, ok := m.Lookup(key)
	if !ok {
		return "", &KeyNotFoundError{Key: key}
	}
	return v, nil
}

func (m *Metadata) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.pos[key]
	if !ok {
		return "", false
	}
	return m.tags[i].Value, true
}

func (m *Metadata) Has(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.tags)
}

// Keys returns the keys in construction order.
func (m *Metadata) Keys() []string {
	out := make([]string, 0, m.Len())
	for _, t := range m.All() {
		out = append(out, t.Key)
	}
	return out
}

// All returns a copy of the tags in construction order.
func (m *Metadata) All() []Tag {
	if m == nil {
		return nil
	}
	out := make([]Tag, len(m.tags))
	copy(out, m.tags)
	return out
}

func (m *Metadata) Map() map[string]string {
	out := make(map[string]string, m.Len())
	for _, t := range m.All() {
		out[t.Key] = t.Value
	}
	return out
}

// Tag formats key in the index file form, "key=value;".
func (m *Metadata) Tag(key string) (string, error) {
	return m.TagWith(key, "=", ";")
}

func (m *Metadata) TagWith(key, sep, trail string) (string, error) {
	v, err := m.Get(key)
	if err != nil {
		return "", err
	}
	return key + sep + v + trail, nil
}

// Tags joins the formatted tags for keys with a single space. With no keys
// every tag is rendered in construction order.
func (m *Metadata) Tags(keys ...string) (string, error) {
	return m.TagsSep(" ", keys...)
}

// TagsSep is Tags with a custom separator between tags. Each tag still ends
// with ';'.
func (m *Metadata) TagsSep(sep string, keys ...string) (string, error) {
	if len(keys) == 0 {
		keys = m.Keys()
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		t, err := m.Tag(k)
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, sep), nil
}

// String renders every tag, as written to an index file.
func (m *Metadata) String() string {
	s, _ := m.Tags()
	return s
}

// With returns a new Metadata with tags appended, or replaced in place when
// the key already exists.
func (m *Metadata) With(tags ...Tag) (*Metadata, error) {
	out := &Metadata{tags: m.All(), pos: make(map[string]int, m.Len()+len(tags))}
	for i, t := range out.tags {
		out.pos[t.Key] = i
	}
	for _, t := range tags {
		if t.Key == "" {
			return nil, &InvalidKeyError{Key: t.Key, Reason: "empty"}
		}
		out.set(t.Key, t.Value)
	}
	return out, nil
}

// Without returns a new Metadata lacking the given keys.
func (m *Metadata) Without(keys ...string) *Metadata {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	out := &Metadata{pos: map[string]int{}}
	for _, t := range m.All() {
		if !drop[t.Key] {
			out.set(t.Key, t.Value)
		}
	}
	return out
}

// Equal reports whether both hold the same key/value set, ignoring order.
func (m *Metadata) Equal(o *Metadata) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, t := range m.All() {
		if v, ok := o.Lookup(t.Key); !ok || v != t.Value {
			return false
		}
	}
	return true
}
