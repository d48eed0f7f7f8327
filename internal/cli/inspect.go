package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/checkpoint"
)

// NewInspectCmd creates the "inspect" subcommand.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [chain-id]",
		Short: "Show a saved chain snapshot",
		Long: "Print the latest snapshot of a chain from --db. Without a chain ID, list the\n" +
			"chains in the database.",
		Args: cobra.MaximumNArgs(1),
		RunE: runInspect,
	}

	addDBFlag(cmd, "Snapshot database (SQLite)")
	cmd.Flags().Bool("history", false, "List every saved snapshot instead of the latest")
	return cmd
}

// inspection is the JSON document inspect prints for one chain.
type inspection struct {
	ChainID   string        `json:"chain_id"`
	Tag       string        `json:"tag"`
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Holder    *chain.Holder `json:"holder"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	if err := requireDB(cmd); err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if len(args) == 0 {
		ids, err := s.store.Chains()
		if err != nil {
			return exitError(exitRuntime, "listing chains: %v", err)
		}
		return writeJSON(cmd, ids)
	}

	if history, _ := cmd.Flags().GetBool("history"); history {
		infos, err := s.store.List(args[0])
		if err != nil {
			return exitError(exitRuntime, "listing snapshots of %s: %v", args[0], err)
		}
		return writeJSON(cmd, infos)
	}

	data, err := s.store.Load(args[0])
	if err != nil {
		return exitError(exitRuntime, "loading chain %s: %v", args[0], err)
	}
	rec, err := checkpoint.Unmarshal(data)
	if err != nil {
		return exitError(exitRuntime, "decoding snapshot of %s: %v", args[0], err)
	}
	h, err := chain.ParseHolder(rec.Snapshot)
	if err != nil {
		return exitError(exitRuntime, "decoding snapshot of %s: %v", args[0], err)
	}

	return writeJSON(cmd, inspection{
		ChainID:   rec.ChainID,
		Tag:       rec.Tag,
		Status:    rec.Status,
		Timestamp: rec.Timestamp.Format(time.RFC3339),
		Holder:    h,
	})
}
