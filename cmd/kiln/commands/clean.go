package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build records and, optionally, task outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputs, _ := cmd.Flags().GetBool("outputs")
			return c.app.Clean(cmd.Context(), app.CleanOptions{Outputs: outputs})
		},
	}

	cmd.Flags().Bool("outputs", false, "Also remove every task destination")

	return cmd
}
