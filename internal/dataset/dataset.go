// Package dataset derives the properties pipelines need from a sample's
// registered read files and its metadata.
package dataset

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/grape-pipeline/grape/internal/index"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tag keys read by the attribute functions.
const (
	KeyID       = "id"
	KeyReadType = "readType"
	KeyQuality  = "quality"
)

// A read type such as "2x76D" is paired when it contains pairedMarker and
// stranded when it ends with directionalMarker, both compared upper-cased.
const (
	pairedMarker      = "2X"
	directionalMarker = "D"
)

// Attributes are the computed properties of a dataset.
type Attributes interface {
	// Primary is the lexicographically first read file as an absolute path.
	Primary() (string, bool)
	// Secondary is the second read file, if any.
	Secondary() (string, bool)
	SingleEnd() bool
	Stranded() bool
}

// Dataset is one sequencing sample: its read files and descriptive metadata.
type Dataset struct {
	Reads    []string
	Metadata *index.Metadata
}

var _ Attributes = Dataset{}

func (d Dataset) sortedRead(i int) (string, bool) {
	if len(d.Reads) <= i {
		return "", false
	}
	reads := make([]string, len(d.Reads))
	copy(reads, d.Reads)
	sort.Strings(reads)
	abs, err := filepath.Abs(reads[i])
	if err != nil {
		return reads[i], true
	}
	return abs, true
}

func (d Dataset) Primary() (string, bool) { return d.sortedRead(0) }

func (d Dataset) Secondary() (string, bool) { return d.sortedRead(1) }

// SingleEnd trusts an explicit read type and otherwise counts read files.
func (d Dataset) SingleEnd() bool {
	if rt, ok := d.readType(); ok {
		return !strings.Contains(rt, pairedMarker)
	}
	return len(d.Reads) <= 1
}

// Stranded is only known from an explicit read type.
func (d Dataset) Stranded() bool {
	if rt, ok := d.readType(); ok {
		return strings.HasSuffix(rt, directionalMarker)
	}
	return false
}

func (d Dataset) readType() (string, bool) {
	rt, ok := d.Metadata.Lookup(KeyReadType)
	if !ok || rt == "" {
		return "", false
	}
	return cases.Upper(language.Und).String(rt), true
}

// Name is the dataset id.
func (d Dataset) Name() (string, error) {
	return d.Metadata.Get(KeyID)
}

// Quality is the quality offset tag, e.g. "33".
func (d Dataset) Quality() (string, error) {
	return d.Metadata.Get(KeyQuality)
}
