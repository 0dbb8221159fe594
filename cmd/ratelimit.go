package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiffcs/gqlc/internal/client"
	"github.com/spiffcs/gqlc/internal/engine"
	"github.com/spiffcs/gqlc/internal/format"
	"github.com/spiffcs/gqlc/internal/operation"
	"github.com/spiffcs/gqlc/internal/output"
)

// probeQuery is the cheapest query every GraphQL server answers.
var probeQuery = operation.MustQuery[json.RawMessage](`query RateLimitProbe { __typename }`, nil)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Check the endpoint's rate limit status",
		Long: `Sends a minimal query and displays the X-RateLimit-* headers of the
response: remaining quota, limit and reset time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRateLimit(cmd, opts)
		},
	}
}

func runRateLimit(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = client.Fetch(ctx, s.client, probeQuery, client.Identity[json.RawMessage](),
		client.WithCachePolicy(engine.FetchIgnoringCacheCompletely)).Await(ctx)
	if err != nil && !isGraphQLError(err) {
		return fmt.Errorf("failed to reach %s: %w", s.cfg.Endpoint, err)
	}

	st := s.rateLimit.Status()
	t := output.NewTable("Rate limit for " + s.cfg.Endpoint + ":")
	if !st.Known {
		t.Add("Status", "the server sent no rate limit headers")
		return t.Render(cmd.OutOrStdout())
	}

	tone := output.ToneOK
	if st.Limited {
		tone = output.ToneError
	} else if st.Limit > 0 && st.Remaining*10 < st.Limit {
		tone = output.ToneWarn
	}
	t.AddTone("Remaining", fmt.Sprintf("%d/%d", st.Remaining, st.Limit), tone)
	if !st.ResetAt.IsZero() {
		t.Add("Resets", format.FormatUntil(st.ResetAt))
	}
	return t.Render(cmd.OutOrStdout())
}
