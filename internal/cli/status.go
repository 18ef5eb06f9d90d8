package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show download completion counts from the scene database",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	has, err := st.HasSchema(ctx)
	if err != nil {
		return err
	}
	if !has {
		fmt.Fprintf(cmd.OutOrStdout(), "No scene database at %s yet.\n", cfg.AbsDBPath)
		return nil
	}

	rows, err := st.Query(ctx,
		`SELECT download_successful, COUNT(*) FROM scenes GROUP BY download_successful`)
	if err != nil {
		return err
	}

	var complete, pending int64
	for _, row := range rows {
		flag, _ := row[0].(int64)
		count, _ := row[1].(int64)
		if flag != 0 {
			complete = count
		} else {
			pending = count
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d scenes complete, %d pending (database: %s)\n",
		complete, pending, cfg.AbsDBPath)

	if pending > 0 {
		links, err := st.QueryIncomplete(ctx)
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Fprintf(cmd.OutOrStdout(), "  pending: %s\n", l.SceneID)
		}
	}
	return nil
}
