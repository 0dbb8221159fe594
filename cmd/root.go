package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/log"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "gqlc",
		Short: "GraphQL client for the command line",
		Long: `A CLI for GraphQL endpoints. It runs queries, mutations, uploads and
subscriptions, watches query results as the local cache changes, and
authenticates with a bearer token from the environment or OAuth2 client
credentials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(opts.Verbosity, cmd.ErrOrStderr())
			return nil
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addGlobalFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdQuery(opts))
	rootCmd.AddCommand(NewCmdMutate(opts))
	rootCmd.AddCommand(NewCmdUpload(opts))
	rootCmd.AddCommand(NewCmdSubscribe(opts))
	rootCmd.AddCommand(NewCmdWatch(opts))
	rootCmd.AddCommand(NewCmdCache(opts))
	rootCmd.AddCommand(NewCmdAuth(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdRateLimit(opts))
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command, opts *Options) {
	flags := cmd.PersistentFlags()

	flags.StringVarP(&opts.Endpoint, "endpoint", "e", "", "GraphQL endpoint URL (overrides config)")
	flags.StringVar(&opts.SubscriptionEndpoint, "ws-endpoint", "", "Websocket URL for subscriptions (default: endpoint with ws scheme)")
	flags.StringArrayVarP(&opts.Headers, "header", "H", nil, "Extra request header as \"Name: value\" (repeatable)")
	flags.StringVarP(&opts.Output, "output", "o", "", "Output format: json, raw, yaml")
	flags.StringVar(&opts.Timeout, "timeout", "", "HTTP timeout (e.g. 30s, 2m)")
	flags.StringVar(&opts.CacheBackend, "cache", "", "Response store: memory, file, badger")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "Directory of the file and badger stores")
	flags.StringVar(&opts.TokenEnv, "token-env", "", "Environment variable holding the bearer token")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	// Profiling flags
	flags.StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flags.StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	flags.StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
}

// profiled runs fn with the profiles requested on the command line.
func profiled(opts *Options, fn func() error) error {
	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile, opts.Trace)
	if err := profiler.Start(); err != nil {
		return err
	}
	defer profiler.Stop()

	return fn()
}
