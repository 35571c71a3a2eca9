package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	app := &app{}
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:           "pt",
		Short:         "PowerTrack CLI (pt): consume Gnip streams and manage PowerTrack rules",
		Long:          "pt connects to Gnip PowerTrack, Replay, Compliance and Search endpoints, emits classified activities as JSON lines, and keeps the rules of a stream in sync with a local rule file.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return app.close(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (default: ~/.powertrack/config.toml)")
	flags.StringVar(&opts.profile, "profile", "default", "Profile name")
	flags.StringVar(&opts.user, "user", "", "Override the profile user")
	flags.StringVar(&opts.password, "password", "", "Override the stored password (or PT_PASSWORD)")
	flags.BoolVar(&opts.debug, "debug", false, "Log decoded activities and rule batches")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newProfileCmd(app),
		newStreamCmd(app),
		newSearchCmd(app),
		newRulesCmd(app),
	)

	return rootCmd
}
