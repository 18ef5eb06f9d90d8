package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the scene database as CSV",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().String("out", "", "output file path, - for stdout (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("out")

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	if out == "-" {
		return st.ExportCSV(ctx, cmd.OutOrStdout())
	}
	if err := st.ExportCSVFile(ctx, out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported scene database to %s\n", out)
	return nil
}
