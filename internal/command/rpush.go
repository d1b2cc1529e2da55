package command

import (
	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// RPush appends items to the list stored at a key, creating the list when
// the key is absent.
type RPush struct {
	Key   string
	Items []store.Data
}

// parseRPush consumes the key and the remainder of the frame as the items
// to push.
func parseRPush(parse *proto.Parser) (*RPush, error) {
	key, err := parse.NextString()
	if err != nil {
		return nil, err
	}
	frames, err := parse.NextList()
	if err != nil {
		return nil, err
	}

	items := make([]store.Data, 0, len(frames))
	for _, frame := range frames {
		data, err := frameToData(frame)
		if err != nil {
			return nil, err
		}
		items = append(items, data)
	}
	return &RPush{Key: key, Items: items}, nil
}

func (c *RPush) Name() string { return "rpush" }

// Execute appends the items and replies with the resulting list length.
// When the key holds a non-list value the reply is integer zero and the
// existing value is left untouched: a conflict signal, not an overwrite.
func (c *RPush) Execute(db *store.Store, conn *proto.Conn) error {
	length, ok := db.Push(c.Key, c.Items)
	if !ok {
		return conn.WriteFrame(proto.Integer(0))
	}
	return conn.WriteFrame(proto.Integer(length))
}

// Frame converts the command to its request frame. Only flat items are
// representable on the wire; a nested list yields ErrNestedArray.
func (c *RPush) Frame() (proto.Frame, error) {
	b := proto.NewArray()
	b.AppendSimple("rpush")
	b.AppendSimple(c.Key)
	for _, item := range c.Items {
		switch d := item.(type) {
		case store.Bytes:
			b.AppendBulk(d)
		case store.String:
			b.AppendSimple(string(d))
		case store.Integer:
			b.AppendInt(uint64(d))
		case store.List:
			return nil, proto.ErrNestedArray
		}
	}
	return b.Frame(), nil
}
