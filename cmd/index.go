package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/grape-pipeline/grape/internal/catalog"
	"github.com/grape-pipeline/grape/internal/config"
	"github.com/grape-pipeline/grape/internal/index"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and update the project index",
}

var indexShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the index entries",
	Args:  cobra.NoArgs,
	RunE:  runIndexShow,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <file> <key=value>...",
	Short: "Append an entry to the index",
	Long: `Append an entry for <file> with the given tags and save the index.

The index lock is held for the whole read-modify-write cycle.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIndexAdd,
}

var indexLookupCmd = &cobra.Command{
	Use:   "lookup <file>",
	Short: "Show the entry recorded for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexLookup,
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every index line with strict tag parsing",
	Args:  cobra.NoArgs,
	RunE:  runIndexCheck,
}

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Mirror the index into a SQLite catalog",
	Args:  cobra.NoArgs,
	RunE:  runIndexExport,
}

var (
	flagShowYAML    bool
	flagShowSelect  string
	flagShowFiles   bool
	flagLookupAll   bool
	flagExportDB    string
	flagExportQuery string
)

func init() {
	indexShowCmd.Flags().BoolVar(&flagShowYAML, "yaml", false, "Print entries as YAML")
	indexShowCmd.Flags().StringVar(&flagShowSelect, "select", "", "Only entries tagged key=value")
	indexShowCmd.Flags().BoolVar(&flagShowFiles, "files", false, "Only print the distinct file paths")
	indexLookupCmd.Flags().BoolVar(&flagLookupAll, "history", false, "Print every entry recorded for the file, oldest first")
	indexExportCmd.Flags().StringVar(&flagExportDB, "sqlite", "", "Catalog database path (default: .grape/catalog.db)")
	indexExportCmd.Flags().StringVar(&flagExportQuery, "query", "", "After export, list files tagged key=value")

	indexCmd.AddCommand(indexShowCmd, indexAddCmd, indexLookupCmd, indexCheckCmd, indexExportCmd)
	rootCmd.AddCommand(indexCmd)
}

// parseTagArgs turns "key=value" arguments into tags, keeping their order.
func parseTagArgs(args []string) ([]index.Tag, error) {
	tags := make([]index.Tag, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		tags = append(tags, index.Tag{Key: strings.TrimSpace(k), Value: strings.TrimSuffix(v, ";")})
	}
	return tags, nil
}

func runIndexShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagShowFiles {
		for _, f := range idx.Files() {
			fmt.Fprintln(out, f)
		}
		return nil
	}

	entries := idx.Entries()
	if flagShowSelect != "" {
		tags, err := parseTagArgs([]string{flagShowSelect})
		if err != nil {
			return err
		}
		entries = idx.Select(tags[0].Key, tags[0].Value)
	}
	if flagShowYAML {
		return writeEntriesYAML(out, entries)
	}
	return index.WriteEntries(out, entries)
}

// writeEntriesYAML renders entries as a YAML sequence, keeping tag order.
func writeEntriesYAML(w io.Writer, entries []index.Entry) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range entries {
		tags := &yaml.Node{Kind: yaml.MappingNode}
		for _, t := range e.Metadata.All() {
			tags.Content = append(tags.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: t.Key},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.Value},
			)
		}
		seq.Content = append(seq.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "file"},
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.File},
				{Kind: yaml.ScalarNode, Value: "tags"},
				tags,
			},
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	tags, err := parseTagArgs(args[1:])
	if err != nil {
		return err
	}
	m, err := index.NewMetadata(tags...)
	if err != nil {
		return err
	}
	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	idx, err := s.openIndex()
	if err != nil {
		return err
	}
	idx.RequireLock = true

	err = index.WithLock(idx.LockHandle(), func() error {
		if err := idx.Initialize(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := idx.Insert(index.Entry{File: file, Metadata: m}); err != nil {
			return err
		}
		return idx.Save()
	})
	if err != nil {
		return lockHint(err)
	}
	printOK("", fmt.Sprintf("Added %s (%d entries)", file, idx.Len()))
	return nil
}

func runIndexLookup(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}

	file := args[0]
	if _, ok := idx.Lookup(file); !ok {
		// Entries are usually recorded with absolute paths.
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
	}
	if flagLookupAll {
		h := idx.History(file)
		if len(h) == 0 {
			return fmt.Errorf("%s is not in the index", args[0])
		}
		return index.WriteEntries(cmd.OutOrStdout(), h)
	}
	e, ok := idx.Lookup(file)
	if !ok {
		return fmt.Errorf("%s is not in the index", args[0])
	}
	return index.WriteEntries(cmd.OutOrStdout(), []index.Entry{e})
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	p, err := s.cfg.IndexPath()
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("cannot open index %s: %w", p, err)
	}
	defer f.Close()

	problems, err := index.CheckEntries(f, p)
	if err != nil {
		return err
	}
	for _, pr := range problems {
		printErr("", pr.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) found in %s", len(problems), p)
	}
	printOK("", fmt.Sprintf("%s is well-formed", p))
	return nil
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}

	db := flagExportDB
	if db == "" {
		db = filepath.Join(config.GrapeDir(s.cfg.Project()), "catalog.db")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := catalog.Export(ctx, db, idx); err != nil {
		return fmt.Errorf("cannot export catalog: %w", err)
	}
	printOK("", fmt.Sprintf("Exported %d entries to %s", idx.Len(), db))

	if flagExportQuery == "" {
		return nil
	}
	tags, err := parseTagArgs([]string{flagExportQuery})
	if err != nil {
		return err
	}
	c, err := catalog.Open(ctx, db)
	if err != nil {
		return err
	}
	defer c.Close()
	files, err := c.FilesWithTag(ctx, tags[0].Key, tags[0].Value)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
