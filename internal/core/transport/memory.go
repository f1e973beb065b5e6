package transport

import (
	"io"
	"sync"
)

// Memory is a Transport backed by in-process buffers. Bytes handed to Feed are
// returned by Recv; bytes passed to Send are recorded and available from Sent.
type Memory struct {
	// MaxRead caps the number of bytes a single Recv returns. Zero means no cap.
	MaxRead int
	// Addr is reported by RemoteAddr.
	Addr string

	mu       sync.Mutex
	incoming []byte
	hungUp   bool
	recvErr  error
	sendErr  error
	sent     [][]byte
	closed   bool
}

func NewMemory(addr string) *Memory {
	return &Memory{Addr: addr}
}

// Feed queues p to be returned by later calls to Recv.
func (m *Memory) Feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incoming = append(m.incoming, p...)
}

// HangUp makes Recv report io.EOF once the queued bytes are drained.
func (m *Memory) HangUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hungUp = true
}

// FailRecv makes Recv return err once the queued bytes are drained.
func (m *Memory) FailRecv(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recvErr = err
}

// FailSend makes every following Send return err.
func (m *Memory) FailSend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sent returns a copy of every buffer passed to Send, in order.
func (m *Memory) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := make([][]byte, len(m.sent))
	copy(sent, m.sent)
	return sent
}

// Closed reports whether Close has been called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Memory) Recv(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return 0, ErrClosed
	case len(p) == 0:
		return 0, nil
	case len(m.incoming) > 0:
		want := p
		if m.MaxRead > 0 && len(want) > m.MaxRead {
			want = want[:m.MaxRead]
		}
		n := copy(want, m.incoming)
		m.incoming = m.incoming[n:]
		return n, nil
	case m.recvErr != nil:
		return 0, m.recvErr
	case m.hungUp:
		return 0, io.EOF
	default:
		return 0, ErrWouldBlock
	}
}

func (m *Memory) Send(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), p...))
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) RemoteAddr() string { return m.Addr }
func (m *Memory) Fd() uintptr        { return NoFd }
