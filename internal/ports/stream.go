package ports

import (
	"io"

	"github.com/bnema/powertrack-cli/internal/domain"
)

// ActivityReader yields decoded values one at a time. Next returns io.EOF
// after the last complete value.
type ActivityReader interface {
	Next() (domain.Activity, error)
	Close() error
}

// StreamDecoder turns a response body into activities, undoing the declared
// content encoding first.
type StreamDecoder interface {
	NewReader(body io.Reader, contentEncoding string) (ActivityReader, error)
}

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
