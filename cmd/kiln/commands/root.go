// Package commands implements the CLI commands for kiln.
package commands

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
)

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	flags   globalFlags
}

type globalFlags struct {
	mode        string
	force       bool
	parallelism int
	logFormat   string
	output      string
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, opts app.RunOptions) error
	Watch(ctx context.Context, opts app.RunOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
	SetLogFormat(f logger.Format)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	c := &CLI{app: a}

	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "An incremental asset pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			f, err := logger.ParseFormat(c.flags.logFormat)
			if err != nil {
				return err
			}
			c.app.SetLogFormat(f)
			return nil
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.flags.mode, "mode", "m", string(domain.ModeDevelopment), "Build mode: development or production")
	pf.BoolVarP(&c.flags.force, "force", "f", false, "Treat every source file as changed")
	pf.IntVarP(&c.flags.parallelism, "parallelism", "j", runtime.NumCPU(), "Maximum number of tasks running at once")
	pf.StringVar(&c.flags.logFormat, "log-format", string(logger.FormatPretty), "Log format: pretty or json")
	pf.StringVarP(&c.flags.output, "output", "o", "auto", "Output mode: auto, color, ci or plain")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// runOptions converts the global flags into app.RunOptions.
func (c *CLI) runOptions(targets []string) (app.RunOptions, error) {
	mode, err := domain.ParseMode(c.flags.mode)
	if err != nil {
		return app.RunOptions{}, err
	}
	return app.RunOptions{
		Targets:     targets,
		Mode:        mode,
		Force:       c.flags.force,
		Parallelism: c.flags.parallelism,
		OutputMode:  c.flags.output,
	}, nil
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
