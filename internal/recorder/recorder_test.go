package recorder

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grape-pipeline/grape/internal/index"
)

type fakeSink struct {
	calls   []string
	added   []string
	saveErr error
}

func (f *fakeSink) Lock() error       { f.calls = append(f.calls, "lock"); return nil }
func (f *fakeSink) Initialize() error { f.calls = append(f.calls, "initialize"); return os.ErrNotExist }
func (f *fakeSink) Save() error       { f.calls = append(f.calls, "save"); return f.saveErr }
func (f *fakeSink) Release() error    { f.calls = append(f.calls, "release"); return nil }
func (f *fakeSink) Add(id, file string, info map[string]string) error {
	f.calls = append(f.calls, "add")
	f.added = append(f.added, id+" "+filepath.Base(file)+" "+info["type"])
	return nil
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileType(t *testing.T) {
	cases := map[string]string{
		"/x/reads_1.fastq.gz": "fastq",
		"/x/K562.bam":         "bam",
		"/x/K562.gtf":         "gtf",
		"/x/archive.gz":       "",
		"/x/.hidden":          "",
		"/x.d/noext":          "",
	}
	for in, want := range cases {
		if got := FileType(in); got != want {
			t.Fatalf("FileType(%q)=%q want %q", in, got, want)
		}
	}
}

func TestRecord_CallSequence(t *testing.T) {
	dir := t.TempDir()
	bam := writeFile(t, dir, "K562.bam", "bam")
	gtf := writeFile(t, dir, "K562.gtf.gz", "gtf")

	sink := &fakeSink{}
	r := New(sink, "K562")
	arts, err := r.Record(context.Background(), map[string]string{
		"gtf":     gtf,
		"bam":     bam,
		"missing": filepath.Join(dir, "nope.bai"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if diff := cmp.Diff([]string{"lock", "initialize", "add", "add", "save", "release"}, sink.calls); diff != "" {
		t.Fatalf("call sequence mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"K562 K562.bam bam", "K562 K562.gtf.gz gtf"}, sink.added); diff != "" {
		t.Fatalf("added mismatch (-want +got):\n%s", diff)
	}
	if want := fmt.Sprintf("%x", md5.Sum([]byte("bam"))); arts[0].MD5 != want {
		t.Fatalf("md5: got %q want %q", arts[0].MD5, want)
	}
}

func TestRecord_ReleasesOnSaveError(t *testing.T) {
	dir := t.TempDir()
	bam := writeFile(t, dir, "a.bam", "x")
	boom := errors.New("disk full")
	sink := &fakeSink{saveErr: boom}

	_, err := New(sink, "a").Record(context.Background(), map[string]string{"bam": bam})
	if !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if last := sink.calls[len(sink.calls)-1]; last != "release" {
		t.Fatalf("lock not released, calls: %v", sink.calls)
	}
}

func TestRecord_NothingToRecord(t *testing.T) {
	sink := &fakeSink{}
	arts, err := New(sink, "a").Record(context.Background(), map[string]string{"bam": "/does/not/exist.bam"})
	if err != nil || arts != nil {
		t.Fatalf("Record=%v,%v", arts, err)
	}
	if len(sink.calls) != 0 {
		t.Fatalf("sink touched without outputs: %v", sink.calls)
	}
}

func TestRecord_IntoIndex(t *testing.T) {
	dir := t.TempDir()
	bam := writeFile(t, dir, "K562.bam", "mapped reads")
	gff := writeFile(t, dir, "K562.gtf", "transcripts")
	p := filepath.Join(dir, "index.txt")

	idx := index.New(p, index.Data)
	idx.RequireLock = true
	r := New(idx, "K562")
	r.Views = map[string]string{"bam": "Alignments"}
	if _, err := r.Record(context.Background(), map[string]string{"bam": bam, "gtf": gff}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// A second run against a fresh handle appends to what is on disk.
	r2 := New(index.New(p, index.Data), "K562")
	if _, err := r2.Record(context.Background(), map[string]string{"bam": bam}); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	loaded := index.New(p, index.Data)
	if err := loaded.Initialize(); err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", loaded.Len())
	}
	e, ok := loaded.Lookup(bam)
	if !ok {
		t.Fatalf("bam not recorded")
	}
	if got := e.Metadata.Keys(); !cmp.Equal(got, []string{"id", "md5", "type"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	first := loaded.History(bam)[0]
	if v, _ := first.Metadata.Get("view"); v != "Alignments" {
		t.Fatalf("view not recorded: %q", v)
	}
	if idx.Locked() {
		t.Fatalf("lock still held")
	}
}

func TestRecord_RequiresName(t *testing.T) {
	if _, err := New(&fakeSink{}, "").Record(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
