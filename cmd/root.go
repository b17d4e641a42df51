package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/grape-pipeline/grape/internal/config"
	"github.com/grape-pipeline/grape/internal/index"
	"github.com/grape-pipeline/grape/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "grape",
	Short:        "grape: dataset index for RNA-seq pipelines",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `grape keeps an index file of datasets and the files derived from them.

Each line of the index is "<file>\t<key>=<value>; ...". The project
configuration lives in <project>/.grape/grape.yaml.`,
}

var (
	flagProject  string
	flagLogLevel string
	flagLogJSON  bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Write logs as JSON instead of console text")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session bundles what every index command needs: the project config and a
// logger built from it.
type session struct {
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

func openSession() (*session, error) {
	project, err := config.ProjectDir(flagProject)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(project)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logFile, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	log, closer := logger.New(logger.Config{
		Level:  level,
		Pretty: !flagLogJSON,
		Output: os.Stderr,
		File:   logFile,
	})
	return &session{cfg: cfg, log: log, closer: closer}, nil
}

func (s *session) Close() error { return s.closer.Close() }

// openIndex returns the project index with the session logger attached.
func (s *session) openIndex() (*index.Index, error) {
	idx, err := s.cfg.OpenIndex()
	if err != nil {
		return nil, err
	}
	idx.Log = s.log
	return idx, nil
}

// loadIndex opens and reads the project index.
func (s *session) loadIndex() (*index.Index, error) {
	idx, err := s.openIndex()
	if err != nil {
		return nil, err
	}
	if err := idx.Initialize(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w\nRun 'grape init' first.", err)
		}
		return nil, err
	}
	return idx, nil
}

// lockHint adds a hint when err means another process holds the index lock.
func lockHint(err error) error {
	if index.IsLockBusy(err) {
		printWarn("", "the index is locked by another process; retry later or raise "+config.EnvLockTimeout)
	}
	return err
}
