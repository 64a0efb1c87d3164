package commands

import "github.com/spf13/cobra"

func (c *CLI) newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [tasks...]",
		Short: "Run tasks once",
		Long:  "Run the given tasks and their dependencies once. Without arguments every task runs.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.runOptions(args)
			if err != nil {
				return err
			}
			return c.app.Build(cmd.Context(), opts)
		},
	}
}
