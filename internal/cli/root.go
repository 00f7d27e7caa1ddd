package cli

import (
	"context"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fieldsync/internal/app"
	"github.com/dmitrijs2005/fieldsync/internal/config"
)

// IO bundles the streams the commands read from and write to. Logs go to
// Err so that Out carries only command output.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewRootCmd builds the fieldsync command tree.
func NewRootCmd(streams IO) *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldsync",
		Short: "Discover, configure and analyze membership custom fields",
		Long: `fieldsync reads members from the membership API, keeps a field
configuration file in step with the fields it finds and reports on how
well that configuration is labelled and used.

Settings come from built-in defaults, an optional JSON file (-c) and flags,
in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored API token",
	}
	tokenCmd.AddCommand(newTokenSetCmd(streams), newTokenCheckCmd(streams))

	root.AddCommand(
		newSyncCmd(streams),
		newReportCmd(streams),
		newLabelsCmd(streams),
		tokenCmd,
	)
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, streams IO) error {
	root := NewRootCmd(streams)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runFunc is the body of a command that needs the wired application.
type runFunc func(ctx context.Context, a *app.App, streams IO) error

// withApp adapts fn to cobra. Flag parsing is left to config.LoadConfig.
func withApp(streams IO, fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if slices.Contains(args, "-h") || slices.Contains(args, "--help") {
			return cmd.Help()
		}
		cfg, err := config.LoadConfig(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, streams.Err)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, streams)
	}
}
