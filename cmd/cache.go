package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/output"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read, write and clear the response store",
		Long: `Operates on the response store without touching the network. Entries
are keyed by document, operation name and variables, so pass the same
document and variables the query uses. Only the file and badger backends
keep entries between runs.`,
	}

	cmd.AddCommand(newCmdCacheRead(opts))
	cmd.AddCommand(newCmdCacheWrite(opts))
	cmd.AddCommand(newCmdCacheClear(opts))
	cmd.AddCommand(newCmdCacheStats(opts))

	return cmd
}

// newCmdCacheRead creates the cache read subcommand.
func newCmdCacheRead(opts *Options) *cobra.Command {
	var flags operationFlags

	cmd := &cobra.Command{
		Use:   "read <file|->",
		Short: "Print the stored data of an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheRead(cmd, opts, &flags, args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

// newCmdCacheWrite creates the cache write subcommand.
func newCmdCacheWrite(opts *Options) *cobra.Command {
	var (
		flags operationFlags
		data  string
	)

	cmd := &cobra.Command{
		Use:   "write <file|-> --data <json>",
		Short: "Replace the stored data of a query",
		Long: `Replaces the stored data of a query. Running watches of the same query
see the new data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheWrite(cmd, opts, &flags, data, args[0])
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&data, "data", "", "New data as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd, opts)
		},
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStats(cmd, opts)
		},
	}
}

// cachedOperation builds the operation whose key addresses the store.
func cachedOperation(cmd *cobra.Command, flags *operationFlags, path string) (operation.Operation[json.RawMessage], error) {
	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return operation.Operation[json.RawMessage]{}, err
	}
	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return operation.Operation[json.RawMessage]{}, err
	}
	return operation.New[json.RawMessage](doc, vars, flags.options()...)
}

func runCacheRead(cmd *cobra.Command, opts *Options, flags *operationFlags, path string) error {
	ctx := cmd.Context()

	op, err := cachedOperation(cmd, flags, path)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := awaitData(ctx, client.ReadFromCache(ctx, s.client, anyKind[json.RawMessage]{op}))
	if err != nil {
		return err
	}
	if data == nil {
		output.PrintWarning(cmd.ErrOrStderr(), "No stored data for this operation.")
	}
	return s.formatter.Format(data, cmd.OutOrStdout())
}

func runCacheWrite(cmd *cobra.Command, opts *Options, flags *operationFlags, data, path string) error {
	ctx := cmd.Context()

	if !json.Valid([]byte(data)) {
		return fmt.Errorf("--data is not valid JSON")
	}
	op, err := cachedOperation(cmd, flags, path)
	if err != nil {
		return err
	}
	if op.Kind() != operation.KindQuery {
		return fmt.Errorf("only query data can be written, document declares a %s", op.Kind())
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	err = client.WriteToCache(ctx, s.client, operation.Query[json.RawMessage]{Operation: op}, func(stored *json.RawMessage) error {
		*stored = json.RawMessage(data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache entry written.")
	return nil
}

func runCacheClear(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := client.ClearCache(ctx, s.client).Await(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	ttl, _ := s.cfg.GetCacheTTL()
	t := output.NewTable("Cache statistics:").
		Add("Backend", stats.Backend).
		Add("Location", stats.Location).
		Add("TTL", ttl).
		Add("Total", stats.Total).
		AddTone("Valid", stats.Valid, output.ToneOK)
	if expired := stats.Total - stats.Valid; expired > 0 {
		t.AddTone("Expired", expired, output.ToneWarn)
	} else {
		t.Add("Expired", 0)
	}
	return t.Render(cmd.OutOrStdout())
}
