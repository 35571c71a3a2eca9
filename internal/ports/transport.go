package ports

import (
	"context"
	"io"
	"net/http"

	"github.com/bnema/powertrack-cli/internal/domain"
)

// Request is one HTTP call against a Gnip endpoint.
type Request struct {
	Method      string
	URL         string
	Credentials domain.Credentials
	Header      http.Header
	Body        []byte
}

// Response is a fully buffered reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StreamResponse hands the body over unread. The caller owns Body and must
// close it.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport executes requests without interpreting bodies. Failures before a
// response arrives are reported as *domain.ConnectionError.
type Transport interface {
	Open(ctx context.Context, req Request) (StreamResponse, error)
	Do(ctx context.Context, req Request) (Response, error)
}
