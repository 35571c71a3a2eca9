package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/bnema/powertrack-cli/internal/domain"
)

const EncodingGzip = "gzip"

// Normalize lower-cases and trims a Content-Encoding value.
func Normalize(encoding string) string {
	return strings.ToLower(strings.TrimSpace(encoding))
}

// NewReader undoes the declared content encoding. Gnip always answers with
// gzip; any other value, including none, is rejected with
// *domain.UnsupportedEncodingError.
func NewReader(body io.Reader, encoding string) (io.ReadCloser, error) {
	switch Normalize(encoding) {
	case EncodingGzip:
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, nil
	default:
		return nil, &domain.UnsupportedEncodingError{Encoding: encoding}
	}
}
