package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
)

// NewCmdUpload creates the upload command.
func NewCmdUpload(opts *Options) *cobra.Command {
	var (
		flags operationFlags
		files []string
	)

	cmd := &cobra.Command{
		Use:   "upload <file|-> --file field=path [--file field=path...]",
		Short: "Send an operation with file uploads",
		Long: `Sends the operation as a GraphQL multipart request. Each --file binds a
local file to a variable of type Upload; repeat a field name to fill a list.`,
		Example: `  gqlc upload avatar.graphql --file image=./me.png
  gqlc upload attach.graphql --file docs=a.pdf --file docs=b.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return profiled(opts, func() error {
				return runUpload(cmd, opts, &flags, files, args[0])
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVar(&files, "file", nil, "Upload as field=path (repeatable)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *Options, flags *operationFlags, filePairs []string, path string) error {
	ctx := cmd.Context()

	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return err
	}
	op, err := operation.New[json.RawMessage](doc, vars, flags.options()...)
	if err != nil {
		return err
	}
	if op.Kind() == operation.KindSubscription {
		return fmt.Errorf("cannot upload with a subscription")
	}
	files, err := readFiles(filePairs)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := awaitData(ctx, client.Upload(ctx, s.client, anyKind[json.RawMessage]{op}, files, client.Identity[json.RawMessage]()))
	if err != nil {
		return err
	}
	log.Info("upload complete", "operation", op.Name, "files", len(files))

	return s.formatter.Format(data, cmd.OutOrStdout())
}

// anyKind passes an operation of whatever kind its document declares to
// calls accepting operation.Any.
type anyKind[D any] struct {
	op operation.Operation[D]
}

func (u anyKind[D]) Base() operation.Operation[D] { return u.op }
