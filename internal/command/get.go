package command

import (
	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// Get fetches the value of a key.
type Get struct {
	Key string
}

func parseGet(parse *proto.Parser) (*Get, error) {
	key, err := parse.NextString()
	if err != nil {
		return nil, err
	}
	return &Get{Key: key}, nil
}

func (c *Get) Name() string { return "get" }

// Execute looks the key up and writes the reply. An absent key replies
// null. A list-typed key is not representable as a single reply value,
// so it replies a wire error; the connection stays open.
func (c *Get) Execute(db *store.Store, conn *proto.Conn) error {
	data, ok := db.Get(c.Key)
	if !ok {
		return conn.WriteFrame(proto.Null{})
	}

	var reply proto.Frame
	switch d := data.(type) {
	case store.Bytes:
		reply = proto.Bulk(d)
	case store.String:
		reply = proto.Bulk(d)
	case store.Integer:
		reply = proto.Integer(d)
	case store.List:
		reply = proto.Error("operation against a key holding the wrong kind of value")
	}
	return conn.WriteFrame(reply)
}

// Frame converts the command to its request frame.
func (c *Get) Frame() proto.Frame {
	b := proto.NewArray()
	b.AppendSimple("get")
	b.AppendSimple(c.Key)
	return b.Frame()
}
