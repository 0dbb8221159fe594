package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
)

// NewCmdMutate creates the mutate command.
func NewCmdMutate(opts *Options) *cobra.Command {
	var (
		flags     operationFlags
		noPublish bool
	)

	cmd := &cobra.Command{
		Use:   "mutate <file|->",
		Short: "Run a mutation",
		Long: `Runs the mutation in the document and prints its data. The result is
written to the response store unless --no-publish is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return profiled(opts, func() error {
				return runMutate(cmd, opts, &flags, !noPublish, args[0])
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "Keep the result out of the response store")

	return cmd
}

func runMutate(cmd *cobra.Command, opts *Options, flags *operationFlags, publish bool, path string) error {
	ctx := cmd.Context()

	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return err
	}
	m, err := operation.NewMutation[json.RawMessage](doc, vars, flags.options()...)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	var callOpts []client.CallOption
	if !publish {
		callOpts = append(callOpts, client.WithoutPublishToStore())
	}
	data, err := awaitData(ctx, client.Perform(ctx, s.client, m, client.Identity[json.RawMessage](), callOpts...))
	if err != nil {
		return err
	}
	log.Info("mutation complete", "operation", m.Name, "published", publish)

	return s.formatter.Format(data, cmd.OutOrStdout())
}
