package cli

import "github.com/spf13/cobra"

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition>",
		Short: "Check a chain definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	c, err := loadDefinition(args[0], "")
	if err != nil {
		return loadError(err)
	}

	res := c.Validate()
	if err := writeJSON(cmd, res); err != nil {
		return exitError(exitRuntime, "writing result: %v", err)
	}
	if !res.Success {
		return exitError(exitValidation, "chain %s is invalid: %s", c.ID(), res.Message)
	}
	return nil
}
