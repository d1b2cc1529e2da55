package proto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Protocol limits. Anything beyond these is treated as a malformed frame
// rather than an allocation request.
const (
	// MaxArrayLen limits the number of elements in an array frame.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512 KiB).
	MaxBulkLen = 512 * 1024
)

var (
	// ErrIncomplete reports that the byte window ends before a full frame.
	// The caller should read more bytes and retry from the window start.
	ErrIncomplete = errors.New("proto: incomplete frame")

	// ErrProtocol reports a malformed frame encoding. It is fatal to the
	// connection: the stream position cannot be trusted afterwards.
	ErrProtocol = errors.New("proto: protocol error")

	// ErrNestedArray reports an attempt to encode an array inside an array
	// element. The encoder supports one level of nesting only.
	ErrNestedArray = errors.New("proto: nested array frames are not supported")
)

// Frame is one unit of the wire protocol's type system.
//
// The concrete types are Simple, Error, Integer, Bulk, Null and Array.
type Frame interface {
	fmt.Stringer

	// frameType restricts implementations to this package.
	frameType() string
}

// Simple is a CRLF terminated line string ("+OK\r\n").
type Simple string

// Error is an error reply ("-message\r\n"). It is a wire value, not a Go
// error: receiving one is a successful read.
type Error string

// Integer is a non-negative 64-bit integer (":42\r\n").
type Integer uint64

// Bulk is a length-prefixed, binary-safe byte string ("$3\r\nfoo\r\n").
// The Bulk/Null distinction lets "no value" be represented without
// ambiguity with "empty string".
type Bulk []byte

// Null is the null frame ("$-1\r\n").
type Null struct{}

// Array is an ordered sequence of frames ("*2\r\n...").
type Array []Frame

func (Simple) frameType() string  { return "simple string" }
func (Error) frameType() string   { return "error" }
func (Integer) frameType() string { return "integer" }
func (Bulk) frameType() string    { return "bulk bytes" }
func (Null) frameType() string    { return "null" }
func (Array) frameType() string   { return "array" }

func (f Simple) String() string  { return string(f) }
func (f Error) String() string   { return "error: " + string(f) }
func (f Integer) String() string { return strconv.FormatUint(uint64(f), 10) }

func (f Bulk) String() string {
	if utf8.Valid(f) {
		return string(f)
	}
	return fmt.Sprintf("%q", []byte(f))
}

func (Null) String() string { return "(nil)" }

func (f Array) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range f {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(item.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Cursor tracks a position inside a byte window. Check and Parse advance it
// as they consume bytes; Rewind resets it so Parse can re-walk the bytes
// Check verified.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int { return c.pos }

// Rewind moves the cursor back to the start of the window.
func (c *Cursor) Rewind() { c.pos = 0 }

func (c *Cursor) remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) peekByte() (byte, error) {
	if c.remaining() == 0 {
		return 0, ErrIncomplete
	}
	return c.buf[c.pos], nil
}

func (c *Cursor) readByte() (byte, error) {
	if c.remaining() == 0 {
		return 0, ErrIncomplete
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *Cursor) skip(n int) error {
	if c.remaining() < n {
		return ErrIncomplete
	}
	c.pos += n
	return nil
}

// readLine returns the bytes up to the next CRLF, consuming the terminator.
func (c *Cursor) readLine() ([]byte, error) {
	rest := c.buf[c.pos:]
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] == '\r' && rest[i+1] == '\n' {
			c.pos += i + 2
			return rest[:i], nil
		}
	}
	return nil, ErrIncomplete
}

// readDecimal reads a CRLF terminated unsigned decimal.
func (c *Cursor) readDecimal() (uint64, error) {
	line, err := c.readLine()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: invalid frame format", ErrProtocol)
	}
	var n uint64
	for _, b := range line {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: invalid frame format", ErrProtocol)
		}
		d := uint64(b - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, fmt.Errorf("%w: invalid frame format", ErrProtocol)
		}
		n = n*10 + d
	}
	return n, nil
}

// readLength reads a decimal length field and bounds it by max. A length
// that does not fit the platform's int is a protocol error, not a panic.
func (c *Cursor) readLength(max int) (int, error) {
	n, err := c.readDecimal()
	if err != nil {
		return 0, err
	}
	if n > uint64(max) {
		return 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrProtocol, n, max)
	}
	return int(n), nil
}

// Check scans forward verifying a complete, well-formed frame is present in
// the window, without allocating the parsed value. It returns ErrIncomplete
// if the window ends before a full frame is seen, or a protocol error for
// malformed input.
func Check(c *Cursor) error {
	tag, err := c.readByte()
	if err != nil {
		return err
	}
	switch tag {
	case '+', '-':
		_, err := c.readLine()
		return err
	case ':':
		_, err := c.readDecimal()
		return err
	case '$':
		b, err := c.peekByte()
		if err != nil {
			return err
		}
		if b == '-' {
			// "$-1\r\n"; the exact bytes are verified by Parse.
			return c.skip(4)
		}
		n, err := c.readLength(MaxBulkLen)
		if err != nil {
			return err
		}
		return c.skipBulkBody(n)
	case '*':
		b, err := c.peekByte()
		if err != nil {
			return err
		}
		if b == '-' {
			return c.skip(4)
		}
		n, err := c.readLength(MaxArrayLen)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := Check(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, tag)
	}
}

func (c *Cursor) skipBulkBody(n int) error {
	if c.remaining() < n+2 {
		return ErrIncomplete
	}
	if c.buf[c.pos+n] != '\r' || c.buf[c.pos+n+1] != '\n' {
		return fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	c.pos += n + 2
	return nil
}

// Parse decodes one frame from the window, consuming exactly the bytes
// Check would have consumed. It assumes Check already succeeded over the
// same window, but still reports ErrIncomplete rather than reading past
// the end if it did not.
func Parse(c *Cursor) (Frame, error) {
	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case '+':
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(line) {
			return nil, fmt.Errorf("%w: invalid frame format", ErrProtocol)
		}
		return Simple(line), nil
	case '-':
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(line) {
			return nil, fmt.Errorf("%w: invalid frame format", ErrProtocol)
		}
		return Error(line), nil
	case ':':
		n, err := c.readDecimal()
		if err != nil {
			return nil, err
		}
		return Integer(n), nil
	case '$':
		b, err := c.peekByte()
		if err != nil {
			return nil, err
		}
		if b == '-' {
			return c.parseNull()
		}
		n, err := c.readLength(MaxBulkLen)
		if err != nil {
			return nil, err
		}
		if c.remaining() < n+2 {
			return nil, ErrIncomplete
		}
		data := make([]byte, n)
		copy(data, c.buf[c.pos:c.pos+n])
		if err := c.skipBulkBody(n); err != nil {
			return nil, err
		}
		return Bulk(data), nil
	case '*':
		b, err := c.peekByte()
		if err != nil {
			return nil, err
		}
		if b == '-' {
			return c.parseNull()
		}
		n, err := c.readLength(MaxArrayLen)
		if err != nil {
			return nil, err
		}
		out := make(Array, 0, n)
		for i := 0; i < n; i++ {
			item, err := Parse(c)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, tag)
	}
}

// parseNull consumes a "-1\r\n" suffix after a '$' or '*' tag. Any other
// negative-looking length is a protocol error.
func (c *Cursor) parseNull() (Frame, error) {
	line, err := c.readLine()
	if err != nil {
		return nil, err
	}
	if string(line) != "-1" {
		return nil, fmt.Errorf("%w: invalid frame format", ErrProtocol)
	}
	return Null{}, nil
}

// ArrayBuilder accumulates elements for an array frame under construction.
// The builder only ever holds an array, so "push into a non-array frame"
// is unrepresentable rather than a runtime fault.
type ArrayBuilder struct {
	frames Array
}

// NewArray returns a builder for an empty array frame.
func NewArray() *ArrayBuilder {
	return &ArrayBuilder{}
}

// AppendSimple appends a simple string element.
func (b *ArrayBuilder) AppendSimple(s string) {
	b.frames = append(b.frames, Simple(s))
}

// AppendBulk appends a bulk bytes element.
func (b *ArrayBuilder) AppendBulk(data []byte) {
	b.frames = append(b.frames, Bulk(data))
}

// AppendInt appends an integer element.
func (b *ArrayBuilder) AppendInt(n uint64) {
	b.frames = append(b.frames, Integer(n))
}

// Frame returns the built array frame.
func (b *ArrayBuilder) Frame() Frame {
	return b.frames
}
