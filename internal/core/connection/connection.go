// Package connection implements the per-socket receive state machine and send
// path shared by the server's poll loop and the client session.
package connection

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dcrodman/wirechat/internal/core/segment"
	"github.com/dcrodman/wirechat/internal/core/transport"
)

// DefaultReceiveCapacity is the largest segment body accepted unless the
// caller asks for something else.
const DefaultReceiveCapacity = 1024

var (
	// ErrTransportClosed means the peer went away or the socket failed.
	ErrTransportClosed = errors.New("connection: transport closed")
	// ErrSendFailed wraps every error returned from Send.
	ErrSendFailed = errors.New("connection: send failed")
)

// State is the position of a Connection's receive state machine.
type State int

const (
	AwaitingHeader State = iota
	AwaitingBody
	SegmentReady
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "AwaitingHeader"
	case AwaitingBody:
		return "AwaitingBody"
	case SegmentReady:
		return "SegmentReady"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Connection owns one Transport along with the partially received segment.
// It is not safe for concurrent use; the owner drives Update, Acknowledge and
// Send from a single goroutine.
type Connection struct {
	transport transport.Transport
	state     State

	header  [segment.HeaderSize]byte
	body    []byte
	filled  int
	pending segment.Header

	segment segment.Segment
	err     error

	closeOnce sync.Once
	closeErr  error
}

// New wraps t. Segments whose declared body exceeds capacity bytes are treated
// as protocol violations.
func New(t transport.Transport, capacity int) *Connection {
	if capacity <= 0 {
		capacity = DefaultReceiveCapacity
	}
	if capacity > segment.MaxLength {
		capacity = segment.MaxLength
	}
	return &Connection{
		transport: t,
		state:     AwaitingHeader,
		body:      make([]byte, capacity),
	}
}

func (c *Connection) State() State                   { return c.state }
func (c *Connection) Transport() transport.Transport { return c.transport }
func (c *Connection) RemoteAddr() string             { return c.transport.RemoteAddr() }

// Segment returns the decoded segment while the connection is SegmentReady.
func (c *Connection) Segment() segment.Segment { return c.segment }

// Err returns the reason the connection entered Closed, if it has.
func (c *Connection) Err() error { return c.err }

// Partial reports whether part of a segment has been read but not yet
// completed.
func (c *Connection) Partial() bool {
	switch c.state {
	case AwaitingHeader:
		return c.filled > 0
	case AwaitingBody:
		return true
	}
	return false
}

// Update reads whatever the transport has available and advances the state
// machine. Each read asks only for the bytes the current phase is missing, so
// bytes of a following segment stay queued in the transport until the current
// one is acknowledged. Update returns once a segment is ready, the connection
// closes, or the transport has nothing more to give.
func (c *Connection) Update() State {
	for c.state == AwaitingHeader || c.state == AwaitingBody {
		want := c.missing()

		if len(want) > 0 {
			n, err := c.transport.Recv(want)
			switch {
			case errors.Is(err, transport.ErrWouldBlock):
				return c.state
			case err != nil:
				c.Fail(fmt.Errorf("%w: %w", ErrTransportClosed, err))
				return c.state
			case n == 0:
				c.Fail(fmt.Errorf("%w: %w", ErrTransportClosed, io.EOF))
				return c.state
			}

			c.filled += n
			if n < len(want) {
				continue
			}
		}

		c.advance()
	}
	return c.state
}

// missing returns the unfilled part of the buffer for the current phase.
func (c *Connection) missing() []byte {
	if c.state == AwaitingHeader {
		return c.header[c.filled:]
	}
	return c.body[c.filled:c.pending.Length]
}

// advance is called once the current phase's buffer is full.
func (c *Connection) advance() {
	switch c.state {
	case AwaitingHeader:
		header, err := segment.ParseHeader(c.header[:])
		if err != nil {
			c.Fail(err)
			return
		}
		if int(header.Length) > len(c.body) {
			c.Fail(fmt.Errorf("%w: declared body of %d bytes exceeds receive capacity of %d",
				segment.ErrMalformedSegment, header.Length, len(c.body)))
			return
		}
		c.pending = header
		c.filled = 0
		c.state = AwaitingBody

	case AwaitingBody:
		seg, err := segment.Decode(c.pending.Type, c.body[:c.pending.Length])
		if err != nil {
			c.Fail(err)
			return
		}
		c.segment = seg
		c.state = SegmentReady
	}
}

// Acknowledge releases the ready segment and re-arms the state machine. It
// does nothing unless the connection is SegmentReady.
func (c *Connection) Acknowledge() {
	if c.state != SegmentReady {
		return
	}
	c.segment = nil
	c.pending = segment.Header{}
	c.filled = 0
	c.state = AwaitingHeader
}

// Fail moves the connection to Closed, recording err as the reason. The
// transport stays open until Close is called by whoever removes the connection.
func (c *Connection) Fail(err error) {
	if c.state == Closed {
		return
	}
	c.state = Closed
	c.err = err
	c.segment = nil
}

// Close marks the connection Closed and releases its transport. Only the first
// call has any effect.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.Fail(ErrTransportClosed)
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}

// Send encodes seg and writes it to the transport in full.
func (c *Connection) Send(seg segment.Segment) error {
	data, err := segment.Encode(seg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return c.SendEncoded(data)
}

// SendEncoded writes an already encoded segment. A transport failure moves the
// connection to Closed.
func (c *Connection) SendEncoded(data []byte) error {
	if err := c.transport.Send(data); err != nil {
		err = fmt.Errorf("%w: %w", ErrSendFailed, err)
		c.Fail(err)
		return err
	}
	return nil
}
