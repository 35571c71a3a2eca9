package framing

import (
	"io"

	"github.com/bnema/powertrack-cli/internal/adapters/compression"
	"github.com/bnema/powertrack-cli/internal/adapters/jsoncodec"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
)

var _ ports.StreamDecoder = Decoder{}

// Decoder chains decompression, framing and JSON decoding.
type Decoder struct {
	Codec        ports.Codec
	MaxValueSize int
}

func (d Decoder) NewReader(body io.Reader, contentEncoding string) (ports.ActivityReader, error) {
	decompressed, err := compression.NewReader(body, contentEncoding)
	if err != nil {
		return nil, err
	}

	codec := d.Codec
	if codec == nil {
		codec = jsoncodec.ActivityCodec{}
	}

	return &activityReader{
		framer: NewFramer(decompressed, d.MaxValueSize),
		codec:  codec,
		closer: decompressed,
	}, nil
}

type activityReader struct {
	framer *Framer
	codec  ports.Codec
	closer io.Closer
}

// Next returns a non-fatal *domain.MalformedStreamError, together with the
// raw bytes, when a framed value is not valid JSON. The reader stays usable.
func (r *activityReader) Next() (domain.Activity, error) {
	raw, err := r.framer.Next()
	if err != nil {
		return domain.Activity{}, err
	}

	var value any
	if err := r.codec.Unmarshal(raw, &value); err != nil {
		return domain.Activity{Raw: raw}, &domain.MalformedStreamError{
			Offset: r.framer.Offset(),
			Reason: "invalid JSON value",
			Err:    err,
		}
	}
	return domain.Activity{Raw: raw, Value: value}, nil
}

func (r *activityReader) Close() error {
	return r.closer.Close()
}
