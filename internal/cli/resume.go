package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/nodes"
)

// NewResumeCmd creates the "resume" subcommand.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <chain-id>",
		Short: "Resume a suspended chain with new input",
		Long: "Load the latest snapshot of a chain from --db, merge the given variables,\n" +
			"and continue the suspended nodes.",
		Args: cobra.ExactArgs(1),
		RunE: runResume,
	}

	addVarFlags(cmd)
	addDBFlag(cmd, "Snapshot database (SQLite)")
	cmd.Flags().Bool("tolerant", false, "Report a node failure as an abnormal finish with the partial result instead of a run error")
	return cmd
}

func runResume(cmd *cobra.Command, args []string) error {
	if err := requireDB(cmd); err != nil {
		return err
	}
	vars, err := readVars(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	c, err := chain.LoadSnapshot(s.store, args[0], nodes.Builtins(), s.options()...)
	if err != nil {
		return exitError(exitRuntime, "loading chain %s: %v", args[0], err)
	}
	if c.Status() != chain.StatusSuspend {
		return exitError(exitValidation, "chain %s is %s, not suspended", c.ID(), c.Status())
	}

	s.logger.Debug("resuming chain",
		slog.String("chain_id", c.ID()),
		slog.Any("pending", c.Pending()),
	)
	result, runErr := c.Resume(cmd.Context(), vars, s.engine.RunOptions()...)
	return finish(cmd, c, result, runErr)
}
