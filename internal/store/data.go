package store

// Data is a value held in the store for one key. It is the server-side
// payload type, distinct from the wire frame type: the wire layer decides
// how (or whether) each variant is representable in a reply.
type Data interface {
	dataType() string
}

// Bytes is an opaque byte string value.
type Bytes []byte

// String is a UTF-8 text value.
type String string

// Integer is an unsigned 64-bit integer value.
type Integer uint64

// List is an ordered sequence of values.
type List []Data

func (Bytes) dataType() string   { return "bytes" }
func (String) dataType() string  { return "string" }
func (Integer) dataType() string { return "integer" }
func (List) dataType() string    { return "list" }
