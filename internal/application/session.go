package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
)

const (
	DefaultEventBuffer = 64
	statusSnippetBytes = 512
)

var errSessionEnded = errors.New("session ended")

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionConnecting
	SessionStreaming
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionConnecting:
		return "connecting"
	case SessionStreaming:
		return "streaming"
	case SessionEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type SessionOptions struct {
	// IdleTimeout ends the connection when no bytes arrive for this long.
	// Zero disables stall detection.
	IdleTimeout time.Duration
	BufferSize  int
	Metrics     ports.StreamMetrics
	Logger      *slog.Logger
}

// Session owns one streaming connection at a time. Events are delivered on
// the channel returned by Start, which is closed after the final end event.
type Session struct {
	transport   ports.Transport
	decoder     ports.StreamDecoder
	descriptor  domain.ConnectionDescriptor
	idleTimeout time.Duration
	bufferSize  int
	metrics     ports.StreamMetrics
	logger      *slog.Logger

	mu     sync.Mutex
	state  SessionState
	id     string
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func NewSession(transport ports.Transport, decoder ports.StreamDecoder, descriptor domain.ConnectionDescriptor, opts SessionOptions) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultEventBuffer
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Session{
		transport:   transport,
		decoder:     decoder,
		descriptor:  descriptor,
		idleTimeout: opts.IdleTimeout,
		bufferSize:  opts.BufferSize,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID is the identifier of the current or most recent connection.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Start validates the descriptor and opens the connection in the background.
// Configuration errors are returned before any network activity. A session
// that has ended may be started again.
func (s *Session) Start(ctx context.Context) (<-chan domain.Event, error) {
	if err := s.descriptor.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionConnecting || s.state == SessionStreaming {
		return nil, domain.ErrAlreadyActive
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	events := make(chan domain.Event, s.bufferSize)
	done := make(chan struct{})

	s.id = ulid.Make().String()
	s.state = SessionConnecting
	s.cancel = cancel
	s.done = done

	go s.run(runCtx, cancel, s.id, events, done)

	return events, nil
}

// End stops the connection and blocks until the end event has been queued
// and the channel closed. Events still queued are discarded, so end is the
// only event received after End returns. It may be called from the goroutine
// consuming the events and is a no-op when the session is not active.
func (s *Session) End() {
	s.mu.Lock()
	done := s.done
	cancel := s.cancel
	active := s.state == SessionConnecting || s.state == SessionStreaming
	if active {
		s.state = SessionEnded
	}
	s.mu.Unlock()

	if active {
		cancel(errSessionEnded)
	}
	if done != nil {
		<-done
	}
}

func (s *Session) run(ctx context.Context, cancel context.CancelCauseFunc, id string, events chan domain.Event, done chan struct{}) {
	product := s.descriptor.Product
	logger := s.logger.With("session_id", id, "product", string(product))

	s.metrics.SessionStarted(product)
	logger.Debug("stream session starting", "url", s.descriptor.URL)

	emit := func(ev domain.Event) bool {
		select {
		case events <- ev:
			s.metrics.Emitted(product, ev.Channel.Kind)
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := s.stream(ctx, logger, emit)
	if err != nil && ctx.Err() == nil {
		err = s.classifyFailure(err)
		s.metrics.StreamError(product, err)
		logger.Warn("stream session failed", "error", err)
		emit(domain.ErrorEvent(err))
	}

	s.mu.Lock()
	if s.done == done {
		s.state = SessionEnded
	}
	s.mu.Unlock()

	if errors.Is(context.Cause(ctx), errSessionEnded) {
		discardPending(events)
	}
	deliverEnd(ctx, events)
	close(events)
	cancel(nil)

	s.metrics.SessionEnded(product)
	s.metrics.Emitted(product, domain.ChannelEnd)
	logger.Debug("stream session ended")
	close(done)
}

func (s *Session) stream(ctx context.Context, logger *slog.Logger, emit func(domain.Event) bool) error {
	header := http.Header{}
	header.Set("Accept-Encoding", s.descriptor.AcceptEncoding)
	if s.descriptor.KeepAlive {
		header.Set("Connection", "keep-alive")
	}

	resp, err := s.transport.Open(ctx, ports.Request{
		Method:      s.descriptor.Method,
		URL:         s.descriptor.URL,
		Credentials: s.descriptor.Credentials,
		Header:      header,
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp)
	}

	s.mu.Lock()
	if s.state == SessionConnecting {
		s.state = SessionStreaming
	}
	s.mu.Unlock()
	logger.Debug("stream connected", "status", resp.StatusCode, "content_encoding", resp.Header.Get("Content-Encoding"))

	body := newIdleReader(resp.Body, s.idleTimeout)
	defer func() { _ = body.Close() }()

	reader, err := s.decoder.NewReader(body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	defer func() { _ = reader.Close() }()

	for {
		activity, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if !isFatalStreamError(err) {
				logger.Debug("skipping malformed value", "error", err)
				s.metrics.StreamError(s.descriptor.Product, err)
				if !emit(domain.ErrorEvent(err)) {
					return nil
				}
				continue
			}
			return err
		}

		s.metrics.ActivityDecoded(s.descriptor.Product, len(activity.Raw))
		for _, ev := range domain.Classify(activity) {
			if !emit(ev) {
				return nil
			}
		}
	}
}

// classifyFailure maps bare read failures onto the connection error type.
func (s *Session) classifyFailure(err error) error {
	var (
		connErr      *domain.ConnectionError
		statusErr    *domain.StatusError
		encodingErr  *domain.UnsupportedEncodingError
		malformedErr *domain.MalformedStreamError
	)
	switch {
	case errors.As(err, &connErr), errors.As(err, &statusErr), errors.As(err, &encodingErr), errors.As(err, &malformedErr):
		return err
	default:
		return &domain.ConnectionError{Op: "read", URL: s.descriptor.URL, Err: err}
	}
}

func statusError(resp ports.StreamResponse) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, statusSnippetBytes))
	message := fmt.Sprintf("Status is not 200. Returned %d", resp.StatusCode)
	if text := strings.TrimSpace(string(snippet)); text != "" {
		message += ": " + text
	}
	return &domain.StatusError{Code: resp.StatusCode, Message: message}
}

func isFatalStreamError(err error) bool {
	var malformed *domain.MalformedStreamError
	if errors.As(err, &malformed) {
		return malformed.Fatal
	}
	return true
}

// discardPending drops events queued but not yet received, so that nothing
// but end reaches the consumer once End has returned.
func discardPending(events chan domain.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

// deliverEnd queues the end event. Once the session context is cancelled the
// consumer may have stopped reading, so stale events are dropped to make room.
func deliverEnd(ctx context.Context, events chan domain.Event) {
	end := domain.Event{Channel: domain.EndChannel}

	select {
	case events <- end:
		return
	case <-ctx.Done():
	}

	for {
		select {
		case events <- end:
			return
		default:
		}
		select {
		case <-events:
		default:
		}
	}
}
