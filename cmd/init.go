package cmd

import (
	"fmt"
	"os"

	"github.com/grape-pipeline/grape/internal/config"
	"github.com/grape-pipeline/grape/internal/index"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the project configuration and an empty index",
	Long: `Initialize a grape project in the project directory.

Writes .grape/grape.yaml and a .grape/.env template when they are missing
and creates the index file if it does not exist yet. Existing files are
left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	flagInitIndex string
	flagInitType  string
)

func init() {
	initCmd.Flags().StringVar(&flagInitIndex, "index", "", "Index file path, relative to the project (default: index.txt)")
	initCmd.Flags().StringVar(&flagInitType, "type", "", "Index type: META or DATA (default: DATA)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	project, err := config.ProjectDir(flagProject)
	if err != nil {
		return err
	}

	// ── 1. .grape/grape.yaml ─────────────────────────────────────────────────
	cfgPath := config.ConfigPath(project)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig(project)
		if flagInitIndex != "" {
			cfg.Index = flagInitIndex
		}
		if flagInitType != "" {
			t, ok := index.TypeFromName(flagInitType)
			if !ok {
				return fmt.Errorf("unknown index type %q (want META or DATA)", flagInitType)
			}
			cfg.Type = t
		}
		if err := config.Save(project, cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else if err != nil {
		return fmt.Errorf("cannot stat %s: %w", cfgPath, err)
	} else {
		printSkip("", fmt.Sprintf("Config exists, not overwritten: %s", cfgPath))
	}

	// ── 2. .grape/.env ───────────────────────────────────────────────────────
	if err := config.EnsureDotEnvTemplate(project); err != nil {
		return err
	}

	// ── 3. Index file ────────────────────────────────────────────────────────
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.cfg.IndexPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		printSkip("", fmt.Sprintf("Index exists: %s", p))
		return nil
	}
	idx, err := s.openIndex()
	if err != nil {
		return err
	}
	created := false
	err = index.WithLock(idx.LockHandle(), func() error {
		// Re-check under the lock, another process may have won the race.
		if _, err := os.Stat(p); err == nil {
			return nil
		}
		created = true
		return idx.Save()
	})
	if err != nil {
		return err
	}
	if created {
		printOK("", fmt.Sprintf("Index created: %s (%s)", p, idx.Type))
	}
	return nil
}
