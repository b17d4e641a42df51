package index

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolveType(t *testing.T) {
	cases := []struct {
		in   any
		want any
		ok   bool
	}{
		{"META", 0, true},
		{"DATA", 1, true},
		{0, "META", true},
		{1, "DATA", true},
		{Data, "DATA", true},
		{"data", nil, false},
		{2, nil, false},
		{3.5, nil, false},
	}
	for _, c := range cases {
		got, ok := ResolveType(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ResolveType(%v)=(%v,%v) want (%v,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestTypeYAML(t *testing.T) {
	var v struct {
		Type Type `yaml:"type"`
	}
	if err := yaml.Unmarshal([]byte("type: META\n"), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Type != Meta {
		t.Fatalf("expected Meta, got %v", v.Type)
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != "type: META\n" {
		t.Fatalf("unexpected YAML %q", string(b))
	}
	if err := yaml.Unmarshal([]byte("type: BOGUS\n"), &v); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
