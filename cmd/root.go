package cmd

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "forkaudit",
		Short: "Find CircleCI projects that pass secrets to forked pull requests",
		Long: heredoc.Doc(`
			forkaudit checks whether a CircleCI project hands its secret
			environment variables to builds of pull requests opened from forks.

			It reads the commit statuses of recent forked pull requests on
			GitHub, finds the CircleCI builds behind them, and looks for
			redacted project variables in each build's environment report.
			Secret values are never read; only variable names are reported.

			Tokens are read from GITHUB_TOKEN and CIRCLE_TOKEN.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(NewCmdCheck(opts))
	rootCmd.AddCommand(NewCmdRepos())
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())
	rootCmd.AddCommand(NewCmdRateLimit())

	return rootCmd
}
