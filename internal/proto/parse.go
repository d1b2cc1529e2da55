package proto

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ErrEndOfStream reports that every element of the array has been
// consumed. It is the only parse condition callers may recover from:
// commands use it to detect an absent optional trailing argument. Any
// other parse error terminates the connection.
var ErrEndOfStream = errors.New("proto: unexpected end of stream")

// Parser is a forward-only cursor over the elements of a decoded array
// frame. Commands are transmitted as arrays; each Next* call consumes
// exactly one element and converts it to the requested type.
type Parser struct {
	frames Array
	pos    int
}

// NewParser wraps a decoded frame for element-wise consumption. The frame
// must be an array.
func NewParser(frame Frame) (*Parser, error) {
	arr, ok := frame.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrProtocol, frame.frameType())
	}
	return &Parser{frames: arr}, nil
}

// next consumes the next element, or reports ErrEndOfStream.
func (p *Parser) next() (Frame, error) {
	if p.pos >= len(p.frames) {
		return nil, ErrEndOfStream
	}
	frame := p.frames[p.pos]
	p.pos++
	return frame, nil
}

// NextBytes consumes the next element as raw bytes. Simple string and bulk
// bytes elements qualify; anything else is a type error.
func (p *Parser) NextBytes() ([]byte, error) {
	frame, err := p.next()
	if err != nil {
		return nil, err
	}
	switch f := frame.(type) {
	case Simple:
		return []byte(f), nil
	case Bulk:
		return f, nil
	default:
		return nil, fmt.Errorf("%w: expected simple or bulk string frame, got %s", ErrProtocol, frame.frameType())
	}
}

// NextString consumes the next element as text. Bulk bytes must be valid
// UTF-8.
func (p *Parser) NextString() (string, error) {
	frame, err := p.next()
	if err != nil {
		return "", err
	}
	switch f := frame.(type) {
	case Simple:
		return string(f), nil
	case Bulk:
		if !utf8.Valid(f) {
			return "", fmt.Errorf("%w: invalid string", ErrProtocol)
		}
		return string(f), nil
	default:
		return "", fmt.Errorf("%w: expected simple or bulk string frame, got %s", ErrProtocol, frame.frameType())
	}
}

// NextInt consumes the next element as an unsigned 64-bit integer. Simple
// and bulk elements are parsed as decimal text.
func (p *Parser) NextInt() (uint64, error) {
	frame, err := p.next()
	if err != nil {
		return 0, err
	}
	switch f := frame.(type) {
	case Simple:
		return parseUint([]byte(f))
	case Bulk:
		return parseUint(f)
	case Integer:
		return uint64(f), nil
	default:
		return 0, fmt.Errorf("%w: expected integer frame, got %s", ErrProtocol, frame.frameType())
	}
}

// NextList consumes the remaining elements as a list. Every element must
// be a simple string, bulk bytes or integer.
func (p *Parser) NextList() ([]Frame, error) {
	if p.pos >= len(p.frames) {
		return nil, ErrEndOfStream
	}
	rest := p.frames[p.pos:]
	for _, frame := range rest {
		switch frame.(type) {
		case Simple, Bulk, Integer:
		default:
			return nil, fmt.Errorf("%w: expected simple, bulk or integer frame, got %s", ErrProtocol, frame.frameType())
		}
	}
	p.pos = len(p.frames)
	return rest, nil
}

func parseUint(b []byte) (uint64, error) {
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number", ErrProtocol)
	}
	return n, nil
}
