package framing

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/powertrack-cli/internal/domain"
)

func frameAll(t *testing.T, r io.Reader) ([]string, error) {
	t.Helper()

	framer := NewFramer(r, 0)
	var values []string
	for {
		value, err := framer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return values, nil
			}
			return values, err
		}
		values = append(values, string(value))
	}
}

// chunked yields input in pieces of size bytes.
type chunked struct {
	data string
	size int
}

func (c *chunked) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := min(c.size, len(c.data), len(p))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

const sampleStream = "{\"id\":1,\"body\":\"a } brace and a \\\" quote {\"}\r\n\r\n" +
	"[{\"nested\":[1,2,{\"x\":\"]\"}]}]\n" +
	"  {\"verb\":\"post\",\"esc\":\"\\\\\"}\r\n"

func TestFramerSplitsValues(t *testing.T) {
	t.Parallel()

	values, err := frameAll(t, strings.NewReader(sampleStream))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"{\"id\":1,\"body\":\"a } brace and a \\\" quote {\"}",
		"[{\"nested\":[1,2,{\"x\":\"]\"}]}]",
		"{\"verb\":\"post\",\"esc\":\"\\\\\"}",
	}, values)
}

func TestFramerIsChunkingInvariant(t *testing.T) {
	t.Parallel()

	want, err := frameAll(t, strings.NewReader(sampleStream))
	require.NoError(t, err)

	for size := 1; size <= len(sampleStream); size++ {
		got, err := frameAll(t, &chunked{data: sampleStream, size: size})
		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, want, got, "chunk size %d", size)
	}

	got, err := frameAll(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFramerHeartbeatsOnly(t *testing.T) {
	t.Parallel()

	values, err := frameAll(t, strings.NewReader("\r\n\r\n\r\n"))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestFramerFatalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantValues int
		wantReason string
		wantOffset int64
	}{
		{name: "stray byte", input: "{\"a\":1}\r\nx{\"b\":2}", wantValues: 1, wantReason: "unexpected byte", wantOffset: 9},
		{name: "mismatched closer", input: "{\"a\":[1}", wantReason: "expected ']'", wantOffset: 7},
		{name: "eof inside value", input: "{\"a\":1}{\"b\":", wantValues: 1, wantReason: "stream ended inside a value", wantOffset: 7},
		{name: "top level scalar", input: "42", wantReason: "unexpected byte"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			values, err := frameAll(t, strings.NewReader(tt.input))
			assert.Len(t, values, tt.wantValues)

			var malformed *domain.MalformedStreamError
			require.True(t, errors.As(err, &malformed))
			assert.True(t, malformed.Fatal)
			assert.Contains(t, malformed.Reason, tt.wantReason)
			assert.Equal(t, tt.wantOffset, malformed.Offset)
		})
	}
}

func TestFramerErrorsAreSticky(t *testing.T) {
	t.Parallel()

	framer := NewFramer(strings.NewReader("x{\"a\":1}"), 0)
	_, first := framer.Next()
	_, second := framer.Next()
	require.Error(t, first)
	assert.Same(t, first, second)
}

func TestFramerRejectsOversizedValue(t *testing.T) {
	t.Parallel()

	framer := NewFramer(&chunked{data: `{"body":"` + strings.Repeat("a", 64) + `"}`, size: 8}, 16)
	_, err := framer.Next()

	var malformed *domain.MalformedStreamError
	require.True(t, errors.As(err, &malformed))
	assert.True(t, malformed.Fatal)
	assert.Contains(t, malformed.Reason, "exceeds 16 bytes")
}

func TestFramerReportsValueOffsets(t *testing.T) {
	t.Parallel()

	framer := NewFramer(strings.NewReader("\r\n{}\r\n[1]"), 0)

	_, err := framer.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), framer.Offset())

	_, err = framer.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(6), framer.Offset())
}

func TestFramerPropagatesReadErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	framer := NewFramer(io.MultiReader(strings.NewReader(`{"a":1}`), iotest.ErrReader(boom)), 0)

	_, err := framer.Next()
	require.NoError(t, err)
	_, err = framer.Next()
	assert.ErrorIs(t, err, boom)
}
