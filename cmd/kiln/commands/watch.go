package commands

import "github.com/spf13/cobra"

func (c *CLI) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [tasks...]",
		Short: "Run tasks, then re-run them when their sources change",
		Long: "Run the given tasks once, then watch the project and re-run the affected tasks " +
			"on every change. Serves the output with live reload when configured.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.runOptions(args)
			if err != nil {
				return err
			}
			return c.app.Watch(cmd.Context(), opts)
		},
	}
}
