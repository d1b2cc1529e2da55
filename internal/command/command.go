// Package command turns decoded protocol frames into typed operations and
// executes them against the storage engine.
//
// A request arrives as an array frame whose first element is the
// case-insensitive command name. FromFrame routes it to one of the
// concrete command types; Execute runs the command and writes the reply
// through the connection framer. The same types build their own request
// frames for the client side.
package command

import (
	"fmt"
	"strings"

	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// Command is one typed client operation.
type Command interface {
	// Name returns the lower-case wire name of the command.
	Name() string

	// Execute runs the command against db and writes the reply to conn.
	// A returned error is fatal to the connection.
	Execute(db *store.Store, conn *proto.Conn) error
}

// FromFrame decodes a command from a received frame. The frame must be an
// array whose first element is the command name; unrecognized names yield
// an Unknown command rather than an error, so the reply can tell the peer.
func FromFrame(frame proto.Frame) (Command, error) {
	parse, err := proto.NewParser(frame)
	if err != nil {
		return nil, err
	}

	name, err := parse.NextString()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(name) {
	case "ping":
		return parsePing(parse)
	case "get":
		return parseGet(parse)
	case "set":
		return parseSet(parse)
	case "rpush":
		return parseRPush(parse)
	default:
		return &Unknown{name: strings.ToLower(name)}, nil
	}
}

// Unknown is a command whose name matched nothing. Executing it reports
// the name back to the peer; the connection stays usable.
type Unknown struct {
	name string
}

// Name returns the lower-cased name of the unrecognized command.
func (c *Unknown) Name() string { return c.name }

// Execute replies with an error frame naming the command.
func (c *Unknown) Execute(_ *store.Store, conn *proto.Conn) error {
	return conn.WriteFrame(proto.Error("unknown command " + c.name))
}

// frameToData converts a wire element to its stored representation.
func frameToData(frame proto.Frame) (store.Data, error) {
	switch f := frame.(type) {
	case proto.Bulk:
		return store.Bytes(f), nil
	case proto.Simple:
		return store.String(f), nil
	case proto.Integer:
		return store.Integer(f), nil
	default:
		return nil, fmt.Errorf("%w: expected simple, bulk or integer frame, got %s", proto.ErrProtocol, frame)
	}
}
