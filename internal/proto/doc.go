// Package proto implements the RESP wire protocol used by walrus.
//
// It provides three layers:
//
//   - Frame: a typed representation of one protocol frame (simple string,
//     error, integer, bulk bytes, null, array), plus Check/Parse which
//     decode a frame from a byte window. Check scans without allocating so
//     a partially received frame can be detected cheaply; Parse performs
//     the actual decode and consumes exactly the bytes Check consumed.
//   - Conn: a buffered framer over a net.Conn exposing ReadFrame and
//     WriteFrame. Reads are batched into a growable receive buffer; each
//     WriteFrame is flushed once so a reply is never left half-sent.
//   - Parser: a forward-only cursor over the elements of a decoded array
//     frame, used to build typed commands.
//
// The protocol is implemented directly on the standard library: the codec
// itself is the product here, so no third-party RESP implementation is
// pulled in.
package proto
