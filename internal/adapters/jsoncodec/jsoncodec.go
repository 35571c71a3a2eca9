package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"

	"github.com/bnema/powertrack-cli/internal/ports"
)

var (
	defaultConfig = sonic.ConfigStd
	// activityConfig keeps numbers as json.Number so 64-bit activity ids survive decoding.
	activityConfig = sonic.Config{UseNumber: true, EscapeHTML: true, SortMapKeys: true, ValidateString: true}.Froze()
)

var (
	_ ports.Codec = Codec{}
	_ ports.Codec = ActivityCodec{}
)

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// ActivityCodec decodes raw activities without losing numeric precision.
type ActivityCodec struct{}

func (ActivityCodec) Marshal(v any) ([]byte, error) {
	return activityConfig.Marshal(v)
}

func (ActivityCodec) Unmarshal(data []byte, v any) error {
	return activityConfig.Unmarshal(data, v)
}

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}
