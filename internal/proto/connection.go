package proto

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
)

// DefaultReadBufferSize is the initial capacity of the receive buffer.
const DefaultReadBufferSize = 16 * 1024

// minReadChunk is the smallest amount of free space kept available for a
// single socket read.
const minReadChunk = 512

// ErrConnReset reports that the peer closed the stream while a partial
// frame was still buffered.
var ErrConnReset = errors.New("proto: connection reset by peer")

// Conn sends and receives frames over a byte stream.
//
// Incoming bytes are accumulated in a growable receive buffer until a full
// frame is present; outgoing frames are encoded into a buffered writer and
// flushed once per WriteFrame.
type Conn struct {
	nc  net.Conn
	bw  *bufio.Writer
	buf []byte
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithReadBufferSize overrides the initial receive buffer capacity.
func WithReadBufferSize(n int) ConnOption {
	return func(c *Conn) {
		if n > 0 {
			c.buf = make([]byte, 0, n)
		}
	}
}

// NewConn wraps nc in a frame-level connection.
func NewConn(nc net.Conn, opts ...ConnOption) *Conn {
	c := &Conn{
		nc:  nc,
		bw:  bufio.NewWriter(nc),
		buf: make([]byte, 0, DefaultReadBufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the underlying stream.
func (c *Conn) Close() error { return c.nc.Close() }

// ReadFrame reads the next frame from the stream.
//
// A nil frame with a nil error means the peer closed the connection
// cleanly at a frame boundary. ErrConnReset is returned when the stream
// ends mid-frame.
func (c *Conn) ReadFrame() (Frame, error) {
	for {
		frame, ok, err := c.parseFrame()
		if err != nil {
			return nil, err
		}
		if ok {
			return frame, nil
		}

		// Not enough buffered data for a full frame; read more from the
		// stream.
		n, err := c.fill()
		if n > 0 {
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(c.buf) == 0 {
				return nil, nil
			}
			return nil, ErrConnReset
		}
		return nil, err
	}
}

// parseFrame attempts to decode one frame from the buffered bytes. The
// consumed bytes are removed from the front of the buffer on success.
func (c *Conn) parseFrame() (Frame, bool, error) {
	cur := NewCursor(c.buf)
	if err := Check(cur); err != nil {
		if errors.Is(err, ErrIncomplete) {
			return nil, false, nil
		}
		return nil, false, err
	}

	// Check advanced the cursor to the end of the frame; re-walk the same
	// bytes to build the value, then discard them from the buffer.
	consumed := cur.Pos()
	cur.Rewind()
	frame, err := Parse(cur)
	if err != nil {
		return nil, false, err
	}
	c.buf = c.buf[:copy(c.buf, c.buf[consumed:])]
	return frame, true, nil
}

// fill reads more bytes from the stream into the receive buffer, growing
// it when nearly full.
func (c *Conn) fill() (int, error) {
	if cap(c.buf)-len(c.buf) < minReadChunk {
		grown := make([]byte, len(c.buf), cap(c.buf)*2)
		copy(grown, c.buf)
		c.buf = grown
	}
	n, err := c.nc.Read(c.buf[len(c.buf):cap(c.buf)])
	c.buf = c.buf[:len(c.buf)+n]
	return n, err
}

// WriteFrame encodes frame to the stream and flushes it.
//
// A top-level array is written as its header followed by each element's
// literal encoding; an array nested inside an array element yields
// ErrNestedArray.
func (c *Conn) WriteFrame(frame Frame) error {
	if arr, ok := frame.(Array); ok {
		if err := writeArrayHeader(c.bw, len(arr)); err != nil {
			return err
		}
		for _, item := range arr {
			if err := writeValue(c.bw, item); err != nil {
				return err
			}
		}
	} else if err := writeValue(c.bw, frame); err != nil {
		return err
	}
	return c.bw.Flush()
}

// writeValue encodes a single non-array frame literal.
func writeValue(w *bufio.Writer, frame Frame) error {
	switch f := frame.(type) {
	case Simple:
		return writeLine(w, '+', []byte(f))
	case Error:
		return writeLine(w, '-', []byte(f))
	case Integer:
		if err := w.WriteByte(':'); err != nil {
			return err
		}
		return writeDecimal(w, uint64(f))
	case Null:
		_, err := w.WriteString("$-1\r\n")
		return err
	case Bulk:
		if err := w.WriteByte('$'); err != nil {
			return err
		}
		if err := writeDecimal(w, uint64(len(f))); err != nil {
			return err
		}
		if _, err := w.Write(f); err != nil {
			return err
		}
		_, err := w.WriteString("\r\n")
		return err
	case Array:
		return ErrNestedArray
	default:
		return ErrProtocol
	}
}

func writeLine(w *bufio.Writer, tag byte, body []byte) error {
	if err := w.WriteByte(tag); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func writeDecimal(w *bufio.Writer, n uint64) error {
	var scratch [20]byte
	if _, err := w.Write(strconv.AppendUint(scratch[:0], n, 10)); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// writeArrayHeader writes "*<n>\r\n".
func writeArrayHeader(w *bufio.Writer, n int) error {
	if err := w.WriteByte('*'); err != nil {
		return err
	}
	return writeDecimal(w, uint64(n))
}
