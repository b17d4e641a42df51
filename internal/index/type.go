package index

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Type tells whether an index only stores metadata or also associates it
// with concrete files.
type Type int

const (
	// Meta indexes store dataset metadata only; the file column is not authoritative.
	Meta Type = 0
	// Data indexes associate metadata with a file path.
	Data Type = 1
)

var typeNames = map[Type]string{
	Meta: "META",
	Data: "DATA",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// TypeFromName resolves a canonical name such as "DATA".
func TypeFromName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// TypeFromCode resolves a numeric code such as 1.
func TypeFromCode(code int) (Type, bool) {
	t := Type(code)
	_, ok := typeNames[t]
	return t, ok
}

// ResolveType maps a name to its integer code and a code to its name. Any
// other token resolves to nothing.
func ResolveType(token any) (any, bool) {
	switch v := token.(type) {
	case string:
		if t, ok := TypeFromName(v); ok {
			return int(t), true
		}
	case Type:
		if n, ok := typeNames[v]; ok {
			return n, true
		}
	case int:
		if t, ok := TypeFromCode(v); ok {
			return t.String(), true
		}
	}
	return nil, false
}

func (t Type) MarshalYAML() (any, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("unknown index type %d", int(t))
	}
	return t.String(), nil
}

func (t *Type) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, ok := TypeFromName(s)
	if !ok {
		return fmt.Errorf("unknown index type %q (want META or DATA)", s)
	}
	*t = v
	return nil
}
