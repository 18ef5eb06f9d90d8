package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete completed scenes from the scene database",
		Args:  cobra.NoArgs,
		RunE:  runPrune,
	}
}

func runPrune(cmd *cobra.Command, _ []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	removed, err := st.PruneCompleted(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed scenes.\n", removed)
	return nil
}
