// Package segment implements the wire format spoken between the chat server and
// its clients. Every segment is a one byte type tag followed by a big endian
// uint16 body length and the body itself:
//
//	byte    : segment type (0 = none, 1 = message, 2 = status)
//	uint16  : body length in bytes (N)
//	N bytes : body, interpreted per type
//
// Text fields inside a body are length prefixed with a uint16 and are never
// terminated on the wire.
package segment

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type is the tag identifying the kind of segment carried in a body.
type Type byte

const (
	TypeNone Type = iota
	TypeMessage
	TypeStatus
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeMessage:
		return "MESSAGE"
	case TypeStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(t))
	}
}

const (
	// HeaderSize is the length of the tag plus the body length prefix.
	HeaderSize = 3
	// MaxLength is the largest body or text field representable on the wire.
	MaxLength = math.MaxUint16
)

// Segment is one complete protocol message. The concrete types are Message,
// Status and Unrecognized.
type Segment interface {
	Type() Type
	isSegment()
}

// Message is a line of chat sent by Sender.
type Message struct {
	Sender   string
	Contents string
}

func (Message) Type() Type { return TypeMessage }
func (Message) isSegment() {}

// Status is informational text generated by the server.
type Status struct {
	Text string
}

func (Status) Type() Type { return TypeStatus }
func (Status) isSegment() {}

// Unrecognized is produced when a peer sends a tag this implementation does
// not know about. The body is discarded.
type Unrecognized struct {
	Tag Type
}

func (u Unrecognized) Type() Type { return u.Tag }
func (Unrecognized) isSegment()   {}

// Header is the fixed size prefix of every segment.
type Header struct {
	Type   Type
	Length uint16
}

// ParseHeader reads a Header from the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformedSegment, HeaderSize, len(b))
	}
	return Header{
		Type:   Type(b[0]),
		Length: binary.BigEndian.Uint16(b[1:HeaderSize]),
	}, nil
}
