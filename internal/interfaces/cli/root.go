// Package cli defines the trialdossier command tree: global flags, config
// and logger initialization, and the disease/target subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// CLIContext carries the loaded configuration and logger through the command
// tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool
	outputDir  string
}

// NewRootCommand builds the root command with global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "trialdossier",
		Short: "Build disease and target dossiers from registry trials and drug annotations",
		Long: "trialdossier joins interventional clinical trials from an AACT-schema registry\n" +
			"with drug, target, and indication annotations from ChEMBL, resolving free-text\n" +
			"intervention names to canonical entities, and writes the result as dossier CSVs.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: ./trialdossier.yaml, then environment)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	pf.StringVar(&opts.outputDir, "output-dir", "", "directory for dossier CSVs (overrides config)")

	cmd.AddCommand(
		newDiseaseCmd(),
		newTargetCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		cfg.Output.Dir = opts.outputDir
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	} else if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{Config: cfg, Logger: logger}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration: explicit file, then ./trialdossier.yaml,
// then environment variables alone.
func initConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.Load(opts.configPath)
	}
	if _, err := os.Stat("trialdossier.yaml"); err == nil {
		return config.Load("trialdossier.yaml")
	}
	return config.LoadFromEnv()
}

func getCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	if cmd.Context() == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context not initialized")
	}
	return cliCtx, nil
}

// Execute runs the command tree with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		return err
	}
	return nil
}
