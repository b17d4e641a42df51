package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

// linePattern takes everything up to the last tab as the file.
var linePattern = regexp.MustCompile(`^(.+)\t(.+)$`)

const maxLineSize = 16 << 20

// Initialize loads the backing file once, appending its entries after any
// already present. Later calls are no-ops; use Reload to re-read.
//
// A malformed line aborts the load with a *MalformedLineError and nothing is
// appended.
func (idx *Index) Initialize() error {
	if idx.loaded {
		return nil
	}
	start := time.Now()
	f, err := os.Open(idx.Path)
	if err != nil {
		return fmt.Errorf("cannot open index %s: %w", idx.Path, err)
	}
	defer f.Close()

	entries, err := ReadEntries(f, idx.Path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		idx.append(e)
	}
	idx.loaded = true
	idx.Log.Debug().
		Str("path", idx.Path).
		Int("entries", len(entries)).
		Dur("duration_ms", time.Since(start)).
		Msg("index loaded")
	return nil
}

// Reload drops all entries and reads the backing file again.
func (idx *Index) Reload() error {
	idx.reset()
	return idx.Initialize()
}

// ReadEntries parses index lines from r. name is used in error messages.
// Blank lines are skipped.
func ReadEntries(r io.Reader, name string) ([]Entry, error) {
	var out []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, &MalformedLineError{Path: name, Line: n, Content: line}
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read index %s: %w", name, err)
	}
	return out, nil
}

// ParseLine parses a single "<file>\t<tags>" line.
func ParseLine(line string) (Entry, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, ErrMalformedLine
	}
	return Entry{File: m[1], Metadata: ParseMetadata(m[2])}, nil
}

// CheckEntries reads index lines from r with strict tag parsing and returns
// every problem found, each prefixed with name and the line number. Reading
// continues past bad lines.
func CheckEntries(r io.Reader, name string) ([]error, error) {
	var problems []error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			problems = append(problems, &MalformedLineError{Path: name, Line: n, Content: line})
			continue
		}
		if _, err := ParseMetadataStrict(m[2]); err != nil {
			problems = append(problems, fmt.Errorf("%s:%d: %w", name, n, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return problems, fmt.Errorf("cannot read index %s: %w", name, err)
	}
	return problems, nil
}
