package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/grape-pipeline/grape/internal/recorder"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record --name <id> <output=path>...",
	Short: "Record the outputs of a finished tool run in the index",
	Long: `Checksum every output file that exists and append one entry per file to
the index under the given dataset id. The entry carries the file type (its
extension, looking through .gz), its md5 and, when configured, its view.

Views come from the "views" map of .grape/grape.yaml and can be overridden
with --view output=View.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecord,
}

var (
	flagRecordName  string
	flagRecordViews []string
)

func init() {
	recordCmd.Flags().StringVar(&flagRecordName, "name", "", "Dataset id the outputs belong to (required)")
	recordCmd.Flags().StringArrayVar(&flagRecordViews, "view", nil, "View for an output key, as key=View (repeatable)")
	_ = recordCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	outputs := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" || v == "" {
			return fmt.Errorf("expected output=path, got %q", a)
		}
		outputs[k] = v
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

	r := recorder.New(idx, flagRecordName)
	r.Log = s.log
	r.Views = map[string]string{}
	for k, v := range s.cfg.Views {
		r.Views[k] = v
	}
	for _, kv := range flagRecordViews {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("expected --view key=View, got %q", kv)
		}
		r.Views[k] = v
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	arts, err := r.Record(ctx, outputs)
	if err != nil {
		return lockHint(err)
	}
	if len(arts) == 0 {
		printSkip(flagRecordName, "no outputs found, index unchanged")
		return nil
	}
	for _, a := range arts {
		printOK(flagRecordName, fmt.Sprintf("%s  %s  %s", a.Key, a.Path, a.MD5))
	}
	return nil
}
