package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
)

// consumer drains one session through a router. The error returned by run is
// the one emitted right before end, or the first handler failure.
type consumer struct {
	session *application.Session
	router  *domain.Router
	logger  *slog.Logger

	pending  error
	terminal error
	failed   error
}

func newConsumer(session *application.Session, logger *slog.Logger) *consumer {
	c := &consumer{
		session: session,
		router:  domain.NewRouter(),
		logger:  logger,
	}

	c.router.OnKind(domain.ChannelError, func(ev domain.Event) {
		c.logger.Warn("stream error", "session_id", session.ID(), "error", ev.Err)
	})
	c.router.OnAny(func(ev domain.Event) {
		switch ev.Channel.Kind {
		case domain.ChannelError:
			c.pending = ev.Err
		case domain.ChannelEnd:
			c.terminal = c.pending
		default:
			c.pending = nil
		}
	})

	return c
}

// stop ends the session from inside a handler with err as the result.
func (c *consumer) stop(err error) {
	if c.failed == nil {
		c.failed = err
	}
	c.session.End()
}

func (c *consumer) run(ctx context.Context) error {
	events, err := c.session.Start(ctx)
	if err != nil {
		return err
	}
	defer c.session.End()

	if err := c.router.Run(ctx, events); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if c.failed != nil {
		return c.failed
	}
	return c.terminal
}
