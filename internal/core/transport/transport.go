// Package transport wraps the sockets used by the chat server and client. Reads
// never block: a Recv with nothing buffered reports ErrWouldBlock and callers
// use Wait to find out when to try again. Sends write every byte before
// returning.
package transport

import "errors"

var (
	// ErrWouldBlock is returned by Recv when no bytes are currently available.
	ErrWouldBlock = errors.New("transport: operation would block")
	// ErrClosed is returned when using a transport after Close.
	ErrClosed = errors.New("transport: use of closed transport")
)

// Transport is one duplex byte stream.
type Transport interface {
	// Recv reads up to len(p) bytes without blocking. It returns io.EOF once
	// the peer has closed its side and ErrWouldBlock when nothing is buffered.
	Recv(p []byte) (int, error)

	// Send writes all of p, retrying short writes, or returns the first hard error.
	Send(p []byte) error

	// Close releases the underlying handle. Calling it more than once is safe.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// Fd returns the descriptor watched by Wait. Transports without one
	// return NoFd.
	Fd() uintptr
}

// NoFd is reported by transports that have no pollable descriptor. Wait skips it.
const NoFd = ^uintptr(0)
