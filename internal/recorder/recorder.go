// Package recorder registers the outputs of a successfully finished tool run
// in the project index.
package recorder

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/exascience/pargo/parallel"
	"github.com/rs/zerolog"
)

// Sink receives the outputs of a run. *index.Index satisfies it.
type Sink interface {
	Lock() error
	Initialize() error
	Add(id, file string, info map[string]string) error
	Save() error
	Release() error
}

// Artifact is one output file as it is recorded.
type Artifact struct {
	Key  string
	Path string
	Type string
	MD5  string
	View string
}

// Info returns the tags recorded next to the dataset id.
func (a Artifact) Info() map[string]string {
	info := map[string]string{"type": a.Type, "md5": a.MD5}
	if a.View != "" {
		info["view"] = a.View
	}
	return info
}

// Recorder adds run outputs to a Sink under the sink's lock.
type Recorder struct {
	sink Sink
	// Name is the dataset id the outputs are recorded under.
	Name string
	// Views maps an output key to the view tag of its file.
	Views map[string]string
	Log   zerolog.Logger
}

// New returns a Recorder writing to sink.
func New(sink Sink, name string) *Recorder {
	return &Recorder{sink: sink, Name: name, Log: zerolog.Nop()}
}

// Record checksums every output that exists and adds it to the sink in one
// lock/initialize/add/save/release cycle. Outputs are recorded in key order;
// missing files are skipped. The lock is released on every path.
func (r *Recorder) Record(ctx context.Context, outputs map[string]string) (_ []Artifact, err error) {
	if r.Name == "" {
		return nil, fmt.Errorf("run name is required")
	}
	artifacts, err := r.collect(outputs)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		r.Log.Info().Str("run", r.Name).Msg("no outputs to record")
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.sink.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := r.sink.Release(); err == nil && rerr != nil {
			err = rerr
		}
	}()

	if err := r.sink.Initialize(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, a := range artifacts {
		if err := r.sink.Add(r.Name, a.Path, a.Info()); err != nil {
			return nil, fmt.Errorf("cannot record %s: %w", a.Path, err)
		}
		r.Log.Debug().
			Str("run", r.Name).
			Str("output", a.Key).
			Str("file", a.Path).
			Str("md5", a.MD5).
			Msg("output recorded")
	}
	if err := r.sink.Save(); err != nil {
		return nil, err
	}
	r.Log.Info().Str("run", r.Name).Int("outputs", len(artifacts)).Msg("index updated")
	return artifacts, nil
}

func (r *Recorder) collect(outputs map[string]string) ([]Artifact, error) {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var artifacts []Artifact
	for _, k := range keys {
		p := outputs[k]
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				r.Log.Warn().Str("output", k).Str("file", p).Msg("output missing, not recorded")
				continue
			}
			return nil, fmt.Errorf("cannot stat output %s: %w", p, err)
		}
		if info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{Key: k, Path: abs, Type: FileType(p), View: r.Views[k]})
	}

	if len(artifacts) == 0 {
		return nil, nil
	}
	errs := make([]error, len(artifacts))
	parallel.Range(0, len(artifacts), 0, func(low, high int) {
		for i := low; i < high; i++ {
			artifacts[i].MD5, errs[i] = fileMD5(artifacts[i].Path)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// FileType is the file extension without the dot, looking through a
// trailing ".gz": "reads_1.fastq.gz" is "fastq".
func FileType(path string) string {
	name, ext := splitExt(path)
	if ext == ".gz" {
		_, ext = splitExt(name)
	}
	return strings.TrimPrefix(ext, ".")
}

// splitExt splits like filepath.Ext but treats a leading dot of the base
// name as part of the name.
func splitExt(path string) (string, string) {
	base := filepath.Base(path)
	ext := filepath.Ext(strings.TrimLeft(base, "."))
	return strings.TrimSuffix(path, ext), ext
}

// fileMD5 returns the hex-encoded MD5 digest of the file at path.
func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("md5 %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("md5 %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
