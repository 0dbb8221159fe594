package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/output"
)

// operationFlags are shared by every command that sends a document.
type operationFlags struct {
	varsJSON string
	vars     []string
	name     string
}

func (f *operationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.varsJSON, "vars", "", "Variables as a JSON object")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Variable as key=value; JSON values are parsed (repeatable)")
	cmd.Flags().StringVar(&f.name, "operation-name", "", "Operation to run when the document holds several")
}

func (f *operationFlags) options() []operation.Option {
	if f.name == "" {
		return nil
	}
	return []operation.Option{operation.WithName(f.name)}
}

// NewCmdQuery creates the query command.
func NewCmdQuery(opts *Options) *cobra.Command {
	var (
		flags  operationFlags
		policy string
	)

	cmd := &cobra.Command{
		Use:   "query <file|-> [file...]",
		Short: "Run one or more queries",
		Long: `Runs the query in each document and prints its data. Several documents
run concurrently and print in argument order. Use - to read from stdin.`,
		Example: `  gqlc query hero.graphql --var episode=JEDI
  echo '{ __typename }' | gqlc query -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := engine.ParseCachePolicy(policy)
			if err != nil {
				return err
			}
			return profiled(opts, func() error {
				return runQuery(cmd, opts, &flags, p, args)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&policy, "policy", engine.ReturnCacheDataElseFetch.String(),
		"Cache policy: cache-first, network-only, no-cache, cache-only, cache-and-network")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *Options, flags *operationFlags, policy engine.CachePolicy, paths []string) error {
	ctx := cmd.Context()

	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return err
	}

	queries := make([]operation.Query[json.RawMessage], len(paths))
	for i, path := range paths {
		doc, err := readDocument(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		queries[i], err = operation.NewQuery[json.RawMessage](doc, vars, flags.options()...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	results := make([]*json.RawMessage, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			data, err := client.Fetch(gctx, s.client, q, client.Identity[json.RawMessage](),
				client.WithCachePolicy(policy)).Await(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", paths[i], err)
			}
			log.Info("query complete", "document", paths[i], "operation", q.Name)
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, data := range results {
		if err := writeData(s.formatter, cmd.OutOrStdout(), data); err != nil {
			return err
		}
	}
	return nil
}

// writeData prints a possibly nil result as null.
func writeData(f output.Formatter, w io.Writer, data *json.RawMessage) error {
	var raw json.RawMessage
	if data != nil {
		raw = *data
	}
	return f.Format(raw, w)
}

// awaitData is Await for callers that only need the raw data.
func awaitData(ctx context.Context, f *client.Future[json.RawMessage]) (json.RawMessage, error) {
	data, err := f.Await(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	return *data, nil
}
