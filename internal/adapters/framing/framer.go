package framing

import (
	"errors"
	"fmt"
	"io"

	"github.com/bnema/powertrack-cli/internal/domain"
)

const (
	DefaultMaxValueSize = 16 << 20
	readChunkSize       = 32 << 10
)

// Framer splits a byte stream into complete top-level JSON objects or
// arrays. Any chunking of the same input produces the same values.
type Framer struct {
	r            io.Reader
	maxValueSize int

	chunk   []byte
	buf     []byte
	pos     int
	start   int
	offset  int64
	closers []byte
	inStr   bool
	escaped bool

	lastOffset int64
	err        error
}

func NewFramer(r io.Reader, maxValueSize int) *Framer {
	if maxValueSize <= 0 {
		maxValueSize = DefaultMaxValueSize
	}
	return &Framer{r: r, maxValueSize: maxValueSize, start: -1}
}

// Offset is the stream position of the value most recently returned by Next.
func (f *Framer) Offset() int64 {
	return f.lastOffset
}

// Next returns the raw bytes of the next value. It returns io.EOF at a clean
// end of input and a fatal *domain.MalformedStreamError when the stream can
// no longer be framed. Errors are sticky.
func (f *Framer) Next() ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}

	for {
		if value, ok, err := f.scan(); err != nil {
			f.err = err
			return nil, err
		} else if ok {
			return value, nil
		}

		if err := f.fill(); err != nil {
			f.err = err
			return nil, err
		}
	}
}

func (f *Framer) scan() ([]byte, bool, error) {
	for ; f.pos < len(f.buf); f.pos++ {
		c := f.buf[f.pos]

		if f.start < 0 {
			switch c {
			case ' ', '\t', '\r', '\n':
				continue
			case '{':
				f.begin('}')
			case '[':
				f.begin(']')
			default:
				return nil, false, f.fatal(f.pos, fmt.Sprintf("unexpected byte %q between values", c))
			}
			continue
		}

		if f.inStr {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inStr = false
			}
			continue
		}

		switch c {
		case '"':
			f.inStr = true
		case '{':
			f.closers = append(f.closers, '}')
		case '[':
			f.closers = append(f.closers, ']')
		case '}', ']':
			want := f.closers[len(f.closers)-1]
			if c != want {
				return nil, false, f.fatal(f.pos, fmt.Sprintf("expected %q, found %q", want, c))
			}
			f.closers = f.closers[:len(f.closers)-1]
			if len(f.closers) == 0 {
				return f.complete(), true, nil
			}
		}
	}

	switch {
	case f.start < 0:
		f.discard(len(f.buf))
	case f.start > 0:
		f.discard(f.start)
		f.start = 0
	}
	return nil, false, nil
}

func (f *Framer) begin(closer byte) {
	f.start = f.pos
	f.closers = append(f.closers[:0], closer)
}

func (f *Framer) complete() []byte {
	end := f.pos + 1
	value := make([]byte, end-f.start)
	copy(value, f.buf[f.start:end])

	f.lastOffset = f.offset + int64(f.start)
	f.start = -1
	f.pos = end
	f.discard(end)
	return value
}

// discard drops the first n buffered bytes.
func (f *Framer) discard(n int) {
	remaining := copy(f.buf, f.buf[n:])
	f.buf = f.buf[:remaining]
	f.offset += int64(n)
	f.pos -= n
}

func (f *Framer) fill() error {
	if f.start >= 0 && len(f.buf)-f.start > f.maxValueSize {
		return f.fatal(f.start, fmt.Sprintf("value exceeds %d bytes", f.maxValueSize))
	}

	if f.chunk == nil {
		f.chunk = make([]byte, readChunkSize)
	}
	for {
		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
			return nil
		}
		if errors.Is(err, io.EOF) {
			if f.start >= 0 {
				return f.fatal(f.start, "stream ended inside a value")
			}
			return io.EOF
		}
		if err != nil {
			return err
		}
	}
}

func (f *Framer) fatal(at int, reason string) error {
	return &domain.MalformedStreamError{Offset: f.offset + int64(at), Reason: reason, Fatal: true}
}
