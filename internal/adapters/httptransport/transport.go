package httptransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
	"github.com/bnema/powertrack-cli/internal/version"
)

const maxResponseBytes = 64 << 20

var ErrConnectTimeout = errors.New("timed out waiting for response headers")

var _ ports.Transport = (*Client)(nil)

type Client struct {
	HTTPClient *http.Client
	// RequestTimeout bounds Do calls when the caller context has no deadline.
	RequestTimeout time.Duration
	// ConnectTimeout bounds Open until response headers arrive. The body
	// read afterwards is not bounded.
	ConnectTimeout time.Duration
	UserAgent      string
}

func (c *Client) Open(ctx context.Context, req ports.Request) (ports.StreamResponse, error) {
	streamCtx, cancel := context.WithCancelCause(ctx)

	var timer *time.Timer
	if c.ConnectTimeout > 0 {
		timer = time.AfterFunc(c.ConnectTimeout, func() { cancel(ErrConnectTimeout) })
	}

	httpReq, err := c.newRequest(streamCtx, req)
	if err != nil {
		cancel(nil)
		return ports.StreamResponse{}, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		cause := context.Cause(streamCtx)
		cancel(nil)
		if errors.Is(cause, ErrConnectTimeout) {
			err = cause
		}
		return ports.StreamResponse{}, &domain.ConnectionError{Op: req.Method, URL: req.URL, Err: err}
	}

	return ports.StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }},
	}, nil
}

func (c *Client) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := c.newRequest(requestCtx, req)
	if err != nil {
		return ports.Response{}, err
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return ports.Response{}, &domain.ConnectionError{Op: req.Method, URL: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.Response{}, &domain.ConnectionError{Op: req.Method, URL: req.URL, Err: fmt.Errorf("read response body: %w", err)}
	}

	return ports.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, req ports.Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Method, err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if req.Credentials.User != "" || req.Credentials.Password != "" {
		httpReq.SetBasicAuth(req.Credentials.User, req.Credentials.Password)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent())
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return version.UserAgent()
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return context.WithTimeout(ctx, requestTimeout)
}

type cancelOnClose struct {
	io.ReadCloser
	once   sync.Once
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}
