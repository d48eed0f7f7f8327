package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowchain/pkg/chain"
)

// report is the JSON document run and resume print.
type report struct {
	ChainID  string             `json:"chain_id"`
	Status   chain.Status       `json:"status"`
	Message  string             `json:"message,omitempty"`
	Result   map[string]any     `json:"result"`
	Pending  []string           `json:"pending,omitempty"`
	Awaiting []*chain.Parameter `json:"awaiting,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func newReport(c *chain.Chain, result map[string]any, runErr error) report {
	if result == nil {
		result = c.Result()
	}
	r := report{
		ChainID:  c.ID(),
		Status:   c.Status(),
		Message:  c.Message(),
		Result:   result,
		Pending:  c.Pending(),
		Awaiting: c.AwaitingParameters(),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	} else if err := c.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

// finish prints the report and maps the outcome to an exit code.
func finish(cmd *cobra.Command, c *chain.Chain, result map[string]any, runErr error) error {
	r := newReport(c, result, runErr)
	if err := writeJSON(cmd, r); err != nil {
		return exitError(exitRuntime, "writing result: %v", err)
	}

	switch {
	case runErr != nil:
		return exitError(exitRuntime, "chain %s failed: %v", c.ID(), runErr)
	case r.Status == chain.StatusSuspend:
		return exitError(exitSuspended, "chain %s suspended awaiting input", c.ID())
	case r.Status == chain.StatusFinishedAbnormal:
		return exitError(exitRuntime, "chain %s finished abnormally: %s", c.ID(), r.Message)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
