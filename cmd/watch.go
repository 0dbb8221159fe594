package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/duration"
	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/output"
	"github.com/spiffcs/gqlc/internal/tui"
)

// NewCmdWatch creates the watch command.
func NewCmdWatch(opts *Options) *cobra.Command {
	var (
		flags  operationFlags
		policy string
		poll   string
	)

	cmd := &cobra.Command{
		Use:   "watch <file|->",
		Short: "Follow a query's data as it changes",
		Long: `Runs the query and shows its data again every time it changes in the
response store, whether from a refetch, a mutation or a cache write. With
--poll the query is refetched from the network on an interval. In the live
display, press r to refetch now and q to quit.`,
		Example: `  gqlc watch hero.graphql --poll 30s
  gqlc watch hero.graphql --tui=false -o raw`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := engine.ParseCachePolicy(policy)
			if err != nil {
				return err
			}
			interval, err := duration.ParseOr(poll, 0)
			if err != nil {
				return fmt.Errorf("invalid --poll: %w", err)
			}
			if interval > 0 && interval < constants.MinPollInterval {
				return fmt.Errorf("--poll must be at least %s", constants.MinPollInterval)
			}
			return profiled(opts, func() error {
				return runWatch(cmd, opts, &flags, p, interval, args[0])
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&policy, "policy", engine.ReturnCacheDataElseFetch.String(),
		"Cache policy of the first delivery: cache-first, network-only, cache-only, cache-and-network")
	cmd.Flags().StringVar(&poll, "poll", "", "Refetch on this interval (e.g. 30s, 5m)")
	cmd.Flags().Var(newTUIFlag(opts), "tui", "Enable/disable the live display (default: auto-detect)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *Options, flags *operationFlags, policy engine.CachePolicy, poll time.Duration, path string) error {
	ctx := cmd.Context()

	doc, err := readDocument(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	vars, err := parseVariables(flags.varsJSON, flags.vars)
	if err != nil {
		return err
	}
	q, err := operation.NewQuery[json.RawMessage](doc, vars, flags.options()...)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	useTUI := shouldUseTUI(opts, cmd.OutOrStdout())
	title := q.Name
	if title == "" {
		title = path
	}

	// The model needs the watcher before it exists; refetch goes through here.
	refetch := make(chan struct{}, 1)
	tuiOpts := []tui.ModelOption{
		tui.WithTasks(tui.WatchTasks()),
		tui.WithTitle(title),
		tui.WithPollInterval(poll),
		tui.WithRefetch(func() {
			select {
			case refetch <- struct{}{}:
			default:
			}
		}),
	}

	return runLive(ctx, useTUI, func(ctx context.Context, events chan<- tui.Event) error {
		reportAuth(s, events)
		tui.SendTaskEvent(events, tui.TaskConnect, tui.StatusRunning, tui.WithMessage(s.cfg.Endpoint))

		w := client.Watch(ctx, s.client, q, func(data *json.RawMessage) {
			if events == nil {
				printUpdate(cmd, s.formatter, data)
				return
			}
			if data == nil {
				publish(ctx, events, tui.UpdateEvent{Err: errNoData, At: time.Now()})
			} else {
				publish(ctx, events, updateEvent(s.formatter, *data, ""))
			}
			reportRateLimit(ctx, s, events)
		}, client.WithCachePolicy(policy))
		defer w.Cancel()

		var tick <-chan time.Time
		if poll > 0 {
			ticker := time.NewTicker(poll)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
				log.Debug("poll refetch", "operation", q.Name)
				w.Refetch()
			case <-refetch:
				log.Debug("manual refetch", "operation", q.Name)
				w.Refetch()
			}
		}
	}, tuiOpts...)
}

func printUpdate(cmd *cobra.Command, f output.Formatter, data *json.RawMessage) {
	if data == nil {
		output.PrintWarning(cmd.ErrOrStderr(), errNoData.Error())
		return
	}
	if err := f.Format(*data, cmd.OutOrStdout()); err != nil {
		log.Warn("failed to print update", "error", err)
	}
}
