package command

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// Set stores a value under a key, unconditionally overwriting any previous
// value regardless of its type.
type Set struct {
	Key   string
	Value []byte

	// Expire is the time-to-live; zero means the key never expires.
	Expire time.Duration
}

// parseSet consumes "key value [EX seconds | PX milliseconds]". The option
// token is case-insensitive; an absent option (EndOfStream) means no
// expiration, while any unsupported trailing token is fatal.
func parseSet(parse *proto.Parser) (*Set, error) {
	key, err := parse.NextString()
	if err != nil {
		return nil, err
	}
	value, err := parse.NextBytes()
	if err != nil {
		return nil, err
	}

	cmd := &Set{Key: key, Value: value}

	opt, err := parse.NextString()
	switch {
	case errors.Is(err, proto.ErrEndOfStream):
		return cmd, nil
	case err != nil:
		return nil, err
	}

	switch strings.ToUpper(opt) {
	case "EX":
		secs, err := parse.NextInt()
		if err != nil {
			return nil, err
		}
		cmd.Expire, err = ttlDuration(secs, time.Second)
		if err != nil {
			return nil, err
		}
	case "PX":
		ms, err := parse.NextInt()
		if err != nil {
			return nil, err
		}
		cmd.Expire, err = ttlDuration(ms, time.Millisecond)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: walrus only supports the expiration option for SET", proto.ErrProtocol)
	}
	return cmd, nil
}

// ttlDuration converts a wire TTL count to a duration. The wire carries
// unsigned 64-bit counts, so a large value can exceed what time.Duration
// represents; wrapping it would silently expire the key early, so such a
// TTL is rejected instead.
func ttlDuration(n uint64, unit time.Duration) (time.Duration, error) {
	if n > uint64(math.MaxInt64/unit) {
		return 0, fmt.Errorf("%w: expiration overflows", proto.ErrProtocol)
	}
	return time.Duration(n) * unit, nil
}

func (c *Set) Name() string { return "set" }

// Execute inserts the pair and replies OK.
func (c *Set) Execute(db *store.Store, conn *proto.Conn) error {
	db.Set(c.Key, store.Bytes(c.Value), c.Expire)
	return conn.WriteFrame(proto.Simple("OK"))
}

// Frame converts the command to its request frame. An expiration is
// always transmitted as PX for millisecond precision.
func (c *Set) Frame() proto.Frame {
	b := proto.NewArray()
	b.AppendSimple("set")
	b.AppendSimple(c.Key)
	b.AppendBulk(c.Value)
	if c.Expire > 0 {
		b.AppendSimple("px")
		b.AppendInt(uint64(c.Expire.Milliseconds()))
	}
	return b.Frame()
}
