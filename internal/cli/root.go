// Package cli implements the flowchain command line: running chain
// definitions, resuming suspended chains from a snapshot database, and
// inspecting or validating them.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/checkpoint"
	"github.com/randalmurphal/flowchain/pkg/chain/config"
)

// NewRootCmd creates the flowchain command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "flowchain",
		Short: "Run and resume flowchain definitions",
		Long: "flowchain executes chain definitions written in YAML or JSON. A chain that\n" +
			"suspends for input is saved to a snapshot database and can be resumed later.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().String("config", "", "Engine config file (YAML or JSON)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().String("log-format", "", "Log format: text | json (default from config)")

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewResumeCmd())
	root.AddCommand(NewInspectCmd())
	root.AddCommand(NewValidateCmd())
	return root
}

// engine reads the engine config named by --config and applies flag
// overrides: --verbose, --log-format, and the command's --db and --tolerant
// when it has them.
func engine(cmd *cobra.Command) (config.EngineConfig, error) {
	e := config.DefaultEngineConfig
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.FromFile(path)
		if err != nil {
			return e, exitError(exitInputParse, "%v", err)
		}
		e = config.Engine(cfg)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		e.LogLevel = "debug"
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		e.LogFormat = format
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		e.SnapshotDB = f.Value.String()
	}
	if tolerant, err := cmd.Flags().GetBool("tolerant"); err == nil && tolerant {
		e.ErrorTolerant = true
	}
	return e, nil
}

// session is the engine wiring shared by the commands.
type session struct {
	engine config.EngineConfig
	logger *slog.Logger
	store  checkpoint.Store
}

func openSession(cmd *cobra.Command) (*session, error) {
	e, err := engine(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := e.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, exitError(exitInputParse, "%v", err)
	}
	store, err := e.OpenStore()
	if err != nil {
		return nil, exitError(exitRuntime, "opening snapshot store: %v", err)
	}
	return &session{engine: e, logger: logger, store: store}, nil
}

// options returns the chain options for this session.
func (s *session) options() []chain.Option {
	opts := s.engine.Options()
	return append(opts, chain.WithLogger(s.logger), chain.WithCheckpointStore(s.store))
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing snapshot store", slog.String("error", err.Error()))
	}
}

func requireDB(cmd *cobra.Command) error {
	if f := cmd.Flags().Lookup("db"); f == nil || f.Value.String() == "" {
		if path, _ := cmd.Flags().GetString("config"); path == "" {
			return exitError(exitInputParse, "--db is required")
		}
	}
	return nil
}

func addDBFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String("db", "", usage)
}

func addVarFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("var", nil, "Set a variable as key=value; JSON values are decoded (repeatable)")
	cmd.Flags().String("vars-file", "", "Read variables from a JSON or YAML file")
}
