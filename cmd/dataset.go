package cmd

import (
	"fmt"

	"github.com/grape-pipeline/grape/internal/dataset"
	"github.com/spf13/cobra"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset [id...]",
	Short: "Show the datasets in the index and their derived attributes",
	Long: `Group index entries by their id tag and print, for each dataset, the
primary and secondary read files and whether it is single-end and stranded.

Without arguments every dataset is shown, in index order.`,
	RunE: runDataset,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
}

func runDataset(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	reg, err := dataset.FromIndex(idx, s.cfg.DatasetOptions())
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		ids = reg.IDs()
	}
	if len(ids) == 0 {
		printInfo("", "No datasets in the index.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		d, ok := reg.Get(id)
		if !ok {
			printWarn(id, "not in the index")
			continue
		}
		fmt.Fprintf(out, "\n=== %s ===\n", id)
		printAttributes(cmd, d)
	}
	return nil
}

func printAttributes(cmd *cobra.Command, d dataset.Dataset) {
	out := cmd.OutOrStdout()
	primary, _ := d.Primary()
	secondary, _ := d.Secondary()
	fmt.Fprintf(out, "  primary:    %s\n", orNone(primary))
	fmt.Fprintf(out, "  secondary:  %s\n", orNone(secondary))
	fmt.Fprintf(out, "  single_end: %t\n", d.SingleEnd())
	fmt.Fprintf(out, "  stranded:   %t\n", d.Stranded())
	if q, err := d.Quality(); err == nil {
		fmt.Fprintf(out, "  quality:    %s\n", q)
	}
	fmt.Fprintf(out, "  metadata:   %s\n", d.Metadata)
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
