package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/loader"
	"github.com/randalmurphal/flowchain/pkg/chain/nodes"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Execute a chain definition",
		Long: "Load a chain definition (YAML or JSON) and execute it. A chain that suspends\n" +
			"is saved to --db and exits with code 3; continue it with \"flowchain resume\".",
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	addVarFlags(cmd)
	addDBFlag(cmd, "Snapshot database (SQLite) for suspended chains")
	cmd.Flags().Bool("tolerant", false, "Report a node failure as an abnormal finish with the partial result instead of a run error")
	cmd.Flags().String("id", "", "Chain ID to use instead of the definition's")
	cmd.Flags().Bool("validate", true, "Validate the chain before running")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	vars, err := readVars(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	id, _ := cmd.Flags().GetString("id")
	c, err := loadDefinition(args[0], id, s.options()...)
	if err != nil {
		return loadError(err)
	}

	if validate, _ := cmd.Flags().GetBool("validate"); validate {
		if res := c.Validate(); !res.Success {
			_ = writeJSON(cmd, res)
			return exitError(exitValidation, "chain %s is invalid: %s", c.ID(), res.Message)
		}
	}

	s.logger.Debug("running chain",
		slog.String("chain_id", c.ID()),
		slog.String("definition", args[0]),
		slog.Int("vars", len(vars)),
	)
	result, runErr := c.Execute(cmd.Context(), vars, s.engine.RunOptions()...)
	return finish(cmd, c, result, runErr)
}

// loadDefinition builds the chain defined at path. A non-empty id replaces
// the definition's own.
func loadDefinition(path, id string, opts ...chain.Option) (*chain.Chain, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from command line
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	def, err := loader.Parse(data, path)
	if err != nil {
		return nil, err
	}
	if id != "" {
		def.ID = id
	}
	return loader.Build(def, nodes.Builtins(), opts...)
}

// loadError maps definition errors to exit codes: malformed files are input
// errors, structural problems are validation errors.
func loadError(err error) error {
	switch {
	case errors.Is(err, loader.ErrMissingKind),
		errors.Is(err, chain.ErrUnknownKind),
		errors.Is(err, chain.ErrDuplicateNode),
		errors.Is(err, chain.ErrNodeNotFound):
		return exitError(exitValidation, "%v", err)
	}
	return exitError(exitInputParse, "%v", err)
}
