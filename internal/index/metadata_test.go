package index

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewMetadata_DuplicateKey(t *testing.T) {
	cases := [][]Tag{
		{{Key: "a", Value: "1"}, {Key: "a", Value: "2"}},
		{{Key: "id", Value: "x"}, {Key: "type", Value: "bam"}, {Key: "id", Value: "x"}},
		{{Key: "readType", Value: "2X76D"}, {Key: "readType", Value: ""}},
	}
	for _, tags := range cases {
		_, err := NewMetadata(tags...)
		var dup *DuplicateKeyError
		if !errors.As(err, &dup) {
			t.Fatalf("NewMetadata(%v): expected DuplicateKeyError, got %v", tags, err)
		}
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected errors.Is ErrDuplicateKey")
		}
		if dup.Type != "index.Metadata" {
			t.Fatalf("unexpected type in error: %q", dup.Type)
		}
	}
}

func TestNewMetadata_EmptyKey(t *testing.T) {
	_, err := NewMetadata(Tag{Key: "", Value: "v"})
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMetadataGet(t *testing.T) {
	m := MustMetadata(Tag{Key: "id", Value: "sample1"}, Tag{Key: "quality", Value: "33"})
	v, err := m.Get("quality")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "33" {
		t.Fatalf("unexpected value %q", v)
	}

	_, err = m.Get("missing")
	var nf *KeyNotFoundError
	if !errors.As(err, &nf) || nf.Key != "missing" {
		t.Fatalf("expected KeyNotFoundError for missing, got %v", err)
	}
}

func TestMetadataTagFormatting(t *testing.T) {
	m := MustMetadata(
		Tag{Key: "id", Value: "s1"},
		Tag{Key: "type", Value: "fastq"},
		Tag{Key: "view", Value: "FqRd1"},
	)

	tag, err := m.Tag("type")
	if err != nil {
		t.Fatal(err)
	}
	if tag != "type=fastq;" {
		t.Fatalf("Tag: got %q", tag)
	}

	tag, err = m.TagWith("type", ":", "|")
	if err != nil {
		t.Fatal(err)
	}
	if tag != "type:fastq|" {
		t.Fatalf("TagWith: got %q", tag)
	}

	all, err := m.Tags()
	if err != nil {
		t.Fatal(err)
	}
	if all != "id=s1; type=fastq; view=FqRd1;" {
		t.Fatalf("Tags: got %q", all)
	}

	some, err := m.TagsSep("", "view", "id")
	if err != nil {
		t.Fatal(err)
	}
	if some != "view=FqRd1;id=s1;" {
		t.Fatalf("TagsSep: got %q", some)
	}

	if _, err := m.Tags("id", "nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestParseMetadata(t *testing.T) {
	cases := []struct {
		in   string
		want []Tag
	}{
		{"k1=v1;k2=v2;", []Tag{{"k1", "v1"}, {"k2", "v2"}}},
		{"k1=v1; k2=v2;", []Tag{{"k1", "v1"}, {"k2", "v2"}}},
		{"desc=two words; size=10;", []Tag{{"desc", "two words"}, {"size", "10"}}},
		// The first '=' splits, later ones belong to the value.
		{"expr=a=b;", []Tag{{"expr", "a=b"}}},
		// Missing trailer, empty value and stray text are dropped.
		{"a=1; junk b=; c=3", []Tag{{"a", "1"}}},
		{"junk;k=v;", []Tag{{"k", "v"}}},
		{"", nil},
		// Repeated key keeps its position and takes the last value.
		{"a=1; b=2; a=3;", []Tag{{"a", "3"}, {"b", "2"}}},
	}
	for _, c := range cases {
		got := ParseMetadata(c.in).All()
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("ParseMetadata(%q) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestParseMetadataStrict(t *testing.T) {
	m, err := ParseMetadataStrict("a=1; b=2;")
	if err != nil {
		t.Fatalf("ParseMetadataStrict: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 tags, got %d", m.Len())
	}

	_, err = ParseMetadataStrict("a=1; oops b=2")
	var mt *MalformedTagError
	if !errors.As(err, &mt) {
		t.Fatalf("expected MalformedTagError, got %v", err)
	}
	if diff := cmp.Diff([]string{"oops", "b=2"}, mt.Dropped); diff != "" {
		t.Fatalf("dropped mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseMetadataStrict("a=1; a=2;"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestParseMetadata_IdempotentOnTags(t *testing.T) {
	m := MustMetadata(
		Tag{Key: "id", Value: "K562_1"},
		Tag{Key: "readType", Value: "2x76D"},
		Tag{Key: "labExpId", Value: "LID 8465"},
		Tag{Key: "md5", Value: "d41d8cd98f00b204e9800998ecf8427e"},
	)
	for _, sep := range []string{" ", ""} {
		s, err := m.TagsSep(sep)
		if err != nil {
			t.Fatal(err)
		}
		again := ParseMetadata(s)
		if !again.Equal(m) {
			t.Fatalf("round trip with sep %q changed tags: %v vs %v", sep, again.All(), m.All())
		}
		if diff := cmp.Diff(m.Keys(), again.Keys()); diff != "" {
			t.Fatalf("order changed (-want +got):\n%s", diff)
		}
	}
}

func TestMetadataFromMap(t *testing.T) {
	m, err := MetadataFromMap(map[string]any{"size": 1024, "paired": true, "id": "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"id", "paired", "size"}, m.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := m.Get("size"); v != "1024" {
		t.Fatalf("size stringified as %q", v)
	}
	if v, _ := m.Get("paired"); v != "true" {
		t.Fatalf("paired stringified as %q", v)
	}
}

func TestMetadataWithWithout(t *testing.T) {
	m := MustMetadata(Tag{Key: "a", Value: "1"}, Tag{Key: "b", Value: "2"})

	m2, err := m.With(Tag{Key: "b", Value: "3"}, Tag{Key: "c", Value: "4"})
	if err != nil {
		t.Fatal(err)
	}
	if s := m2.String(); s != "a=1; b=3; c=4;" {
		t.Fatalf("With: got %q", s)
	}
	if s := m.String(); s != "a=1; b=2;" {
		t.Fatalf("With mutated the receiver: %q", s)
	}

	m3 := m2.Without("a", "zzz")
	if s := m3.String(); s != "b=3; c=4;" {
		t.Fatalf("Without: got %q", s)
	}
	if !m3.Has("c") || m3.Has("a") {
		t.Fatalf("Has reports wrong keys")
	}
}
