package command

import (
	"errors"

	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// Ping checks that the connection is alive. With no message the server
// replies PONG; otherwise the message is echoed back as bulk bytes.
type Ping struct {
	// Msg is the optional message to echo. Nil means no message.
	Msg []byte
}

// parsePing consumes the optional message. EndOfStream here just means
// the message was omitted.
func parsePing(parse *proto.Parser) (*Ping, error) {
	msg, err := parse.NextBytes()
	switch {
	case err == nil:
		return &Ping{Msg: msg}, nil
	case errors.Is(err, proto.ErrEndOfStream):
		return &Ping{}, nil
	default:
		return nil, err
	}
}

func (c *Ping) Name() string { return "ping" }

// Execute writes the PONG (or echo) reply. The store is not touched.
func (c *Ping) Execute(_ *store.Store, conn *proto.Conn) error {
	if c.Msg == nil {
		return conn.WriteFrame(proto.Simple("PONG"))
	}
	return conn.WriteFrame(proto.Bulk(c.Msg))
}

// Frame converts the command to its request frame.
func (c *Ping) Frame() proto.Frame {
	b := proto.NewArray()
	b.AppendSimple("ping")
	if c.Msg != nil {
		b.AppendBulk(c.Msg)
	}
	return b.Frame()
}
