package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/output"
	"github.com/spiffcs/gqlc/internal/tui"
)

// NewCmdSubscribe creates the subscribe command.
func NewCmdSubscribe(opts *Options) *cobra.Command {
	var (
		flags operationFlags
		count int
	)

	cmd := &cobra.Command{
		Use:   "subscribe <file|->",
		Short: "Stream the events of a subscription",
		Long: `Opens a websocket subscription and prints each event's data as it
arrives. Events that carry GraphQL errors are reported and the stream
continues; a transport failure ends it.`,
		Example: `  gqlc subscribe reviews.graphql -o raw | jq .
  gqlc subscribe ticks.graphql --count 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			return profiled(opts, func() error {
				return runSubscribe(cmd, opts, &flags, count, args[0])
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many events (0 = until the server ends the stream)")
	cmd.Flags().Var(newTUIFlag(opts), "tui", "Enable/disable the live display (default: auto-detect)")

	return cmd
}

func runSubscribe(cmd *cobra.Command, opts *Options, flags *operationFlags, count int, path string) error {
	ctx := cmd.Context()

	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return err
	}
	sub, err := operation.NewSubscription[json.RawMessage](doc, vars, flags.options()...)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	useTUI := shouldUseTUI(opts, cmd.OutOrStdout())
	title := sub.Name
	if title == "" {
		title = path
	}

	return runLive(ctx, useTUI, func(ctx context.Context, events chan<- tui.Event) error {
		reportAuth(s, events)
		tui.SendTaskEvent(events, tui.TaskConnect, tui.StatusRunning, tui.WithMessage(s.cfg.Endpoint))

		stream := client.Subscribe(ctx, s.client, sub, client.Identity[json.RawMessage]())
		defer stream.Cancel()

		received := 0
		for r := range stream.Results() {
			if r.Err != nil {
				if !isGraphQLError(r.Err) {
					tui.SendTaskEvent(events, tui.TaskConnect, tui.StatusError, tui.WithError(r.Err))
					return r.Err
				}
				log.Debug("subscription event carried errors", "error", r.Err)
				if events == nil {
					output.PrintWarning(cmd.ErrOrStderr(), r.Err.Error())
				}
				publish(ctx, events, tui.UpdateEvent{Err: r.Err})
				continue
			}

			received++
			var data json.RawMessage
			if r.Value != nil {
				data = *r.Value
			}
			if events == nil {
				if err := s.formatter.Format(data, cmd.OutOrStdout()); err != nil {
					return err
				}
			} else {
				publish(ctx, events, updateEvent(s.formatter, data, "event"))
				reportRateLimit(ctx, s, events)
			}

			if count > 0 && received >= count {
				log.Info("subscription reached event count", "count", count)
				stream.Cancel()
				break
			}
		}
		tui.SendTaskEvent(events, tui.TaskReceive, tui.StatusComplete, tui.WithCount(received))
		return nil
	}, tui.WithTasks(tui.SubscribeTasks()), tui.WithTitle(title))
}

// isGraphQLError reports whether err came from the server's errors list
// rather than from the transport.
func isGraphQLError(err error) bool {
	var gqlErr *gqlerror.Error
	return errors.As(err, &gqlErr)
}
