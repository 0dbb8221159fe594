package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spiffcs/gqlc/internal/auth"
	"github.com/spiffcs/gqlc/internal/log"
	"github.com/spiffcs/gqlc/internal/output"
	"github.com/spiffcs/gqlc/internal/tui"
)

// errNoData is shown when a watch delivery carried nothing to display.
var errNoData = errors.New("update carried no data")

// runLive runs produce while rendering its events. With the TUI, produce
// runs in the background and is cancelled when the user quits; without it,
// produce runs on the calling goroutine and events are discarded.
func runLive(ctx context.Context, useTUI bool, produce func(ctx context.Context, events chan<- tui.Event) error, opts ...tui.ModelOption) error {
	if !useTUI {
		return produce(ctx, nil)
	}

	// Logs would tear the display
	log.Initialize(log.Verbosity(), io.Discard)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tui.Event, 16)
	errc := make(chan error, 1)
	go func() {
		defer close(events)
		errc <- produce(ctx, events)
	}()

	tuiErr := tui.Run(events, opts...)
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return tuiErr
}

// publish delivers e unless ctx ends first. A nil channel drops e.
func publish(ctx context.Context, events chan<- tui.Event, e tui.Event) {
	if events == nil {
		return
	}
	select {
	case events <- e:
	case <-ctx.Done():
	}
}

// reportAuth fills the auth task from the session's token provider.
func reportAuth(s *session, events chan<- tui.Event) {
	token, ok := s.client.AuthorizationToken()
	if !ok {
		tui.SendTaskEvent(events, tui.TaskAuth, tui.StatusSkipped, tui.WithMessage("no token from "+s.source))
		return
	}
	msg := s.source
	if info, err := auth.Inspect(token); err == nil && info.Subject != "" {
		msg = info.Subject
	}
	tui.SendTaskEvent(events, tui.TaskAuth, tui.StatusComplete, tui.WithMessage(msg))
}

// reportRateLimit forwards the last seen rate limit headers.
func reportRateLimit(ctx context.Context, s *session, events chan<- tui.Event) {
	st := s.rateLimit.Status()
	if !st.Known {
		return
	}
	publish(ctx, events, tui.RateLimitEvent{
		Limited:   st.Limited,
		Remaining: st.Remaining,
		Limit:     st.Limit,
		ResetAt:   st.ResetAt,
	})
}

// render formats data for the TUI body.
func render(f output.Formatter, data []byte) (string, error) {
	var buf bytes.Buffer
	if err := f.Format(data, &buf); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// updateEvent turns one delivery into a TUI update.
func updateEvent(f output.Formatter, data []byte, source string) tui.UpdateEvent {
	body, err := render(f, data)
	return tui.UpdateEvent{Body: body, Source: source, At: time.Now(), Err: err}
}
