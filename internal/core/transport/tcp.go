//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// TCP is a Transport over a TCP socket. Recv bypasses the runtime poller and
// issues a single read(2) on the already non-blocking descriptor.
type TCP struct {
	conn *net.TCPConn
	raw  syscall.RawConn
	fd   uintptr

	closeOnce sync.Once
	closeErr  error
}

// NewTCP wraps an established connection.
func NewTCP(conn *net.TCPConn) (*TCP, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("error accessing raw connection: %w", err)
	}

	var fd uintptr
	if err := raw.Control(func(descriptor uintptr) { fd = descriptor }); err != nil {
		return nil, fmt.Errorf("error reading descriptor: %w", err)
	}

	return &TCP{conn: conn, raw: raw, fd: fd}, nil
}

// Dial connects to address and wraps the resulting socket.
func Dial(ctx context.Context, address string) (*TCP, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", address, err)
	}

	t, err := NewTCP(conn.(*net.TCPConn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *TCP) Recv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	var readErr error
	err := t.raw.Read(func(fd uintptr) bool {
		n, readErr = unix.Read(int(fd), p)
		// Never park in the runtime poller; readiness is the caller's business.
		return true
	})
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, err
	}

	switch {
	case errors.Is(readErr, unix.EAGAIN), errors.Is(readErr, unix.EWOULDBLOCK), errors.Is(readErr, unix.EINTR):
		return 0, ErrWouldBlock
	case readErr != nil:
		return 0, readErr
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

func (t *TCP) Send(p []byte) error {
	bytesSent := 0

	for bytesSent < len(p) {
		n, err := t.conn.Write(p[bytesSent:])
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("failed to send to %s: %w", t.RemoteAddr(), err)
		}
		bytesSent += n
	}

	return nil
}

func (t *TCP) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *TCP) RemoteAddr() string { return t.conn.RemoteAddr().String() }
func (t *TCP) Fd() uintptr        { return t.fd }
