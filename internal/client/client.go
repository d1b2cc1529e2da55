// Package client is a minimal walrus client.
//
// It covers the wire commands the server understands. One Client owns one
// connection; requests on a Client must not be issued concurrently. Open
// more connections for parallelism.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/walrusdb/walrus/internal/command"
	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
)

// ErrClosed is returned when the server closed the connection between
// requests.
var ErrClosed = errors.New("client: connection closed by server")

// Client is a connection to a walrus server.
type Client struct {
	nc   net.Conn
	conn *proto.Conn
}

// Connect opens a TCP connection to the server at addr.
func Connect(addr string) (*Client, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{nc: nc, conn: proto.NewConn(nc)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.nc.Close()
}

// Ping checks the connection. With a nil message the server answers PONG;
// otherwise the message is echoed back.
func (c *Client) Ping(msg []byte) ([]byte, error) {
	cmd := &command.Ping{Msg: msg}
	if err := c.conn.WriteFrame(cmd.Frame()); err != nil {
		return nil, err
	}

	reply, err := c.readReply()
	if err != nil {
		return nil, err
	}
	switch f := reply.(type) {
	case proto.Simple:
		return []byte(f), nil
	case proto.Bulk:
		return f, nil
	default:
		return nil, unexpectedReply(reply)
	}
}

// Get fetches the value of key. An absent key yields a nil slice and no
// error.
func (c *Client) Get(key string) ([]byte, error) {
	cmd := &command.Get{Key: key}
	if err := c.conn.WriteFrame(cmd.Frame()); err != nil {
		return nil, err
	}

	reply, err := c.readReply()
	if err != nil {
		return nil, err
	}
	switch f := reply.(type) {
	case proto.Simple:
		return []byte(f), nil
	case proto.Bulk:
		return f, nil
	case proto.Null:
		return nil, nil
	default:
		return nil, unexpectedReply(reply)
	}
}

// Set stores value under key. The key never expires.
func (c *Client) Set(key string, value []byte) error {
	return c.set(&command.Set{Key: key, Value: value})
}

// SetExpires stores value under key with a time-to-live. After the
// duration elapses the key reads as absent.
func (c *Client) SetExpires(key string, value []byte, ttl time.Duration) error {
	return c.set(&command.Set{Key: key, Value: value, Expire: ttl})
}

func (c *Client) set(cmd *command.Set) error {
	if err := c.conn.WriteFrame(cmd.Frame()); err != nil {
		return err
	}

	reply, err := c.readReply()
	if err != nil {
		return err
	}
	if f, ok := reply.(proto.Simple); ok && f == "OK" {
		return nil
	}
	return unexpectedReply(reply)
}

// RPush appends items to the list stored at key, creating it when absent.
// It returns the resulting list length. A key holding a non-list value is
// left untouched and the returned length is zero.
func (c *Client) RPush(key string, items ...[]byte) (uint64, error) {
	cmd := &command.RPush{Key: key, Items: make([]store.Data, 0, len(items))}
	for _, item := range items {
		cmd.Items = append(cmd.Items, store.Bytes(item))
	}

	frame, err := cmd.Frame()
	if err != nil {
		return 0, err
	}
	if err := c.conn.WriteFrame(frame); err != nil {
		return 0, err
	}

	reply, err := c.readReply()
	if err != nil {
		return 0, err
	}
	if f, ok := reply.(proto.Integer); ok {
		return uint64(f), nil
	}
	return 0, unexpectedReply(reply)
}

// readReply reads one reply frame, converting server-reported errors into
// Go errors.
func (c *Client) readReply() (proto.Frame, error) {
	frame, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, ErrClosed
	}
	if e, ok := frame.(proto.Error); ok {
		return nil, errors.New(string(e))
	}
	return frame, nil
}

func unexpectedReply(frame proto.Frame) error {
	return fmt.Errorf("client: unexpected reply %s", frame)
}
