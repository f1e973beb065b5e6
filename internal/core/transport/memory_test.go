package transport

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemory_Recv(t *testing.T) {
	m := NewMemory("peer")
	m.MaxRead = 2
	buf := make([]byte, 8)

	if _, err := m.Recv(buf); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("Recv() on an empty buffer error = %v, want %v", err, ErrWouldBlock)
	}

	m.Feed([]byte("abc"))
	m.HangUp()

	var got []byte
	for {
		n, err := m.Recv(buf)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("Recv() returned an unexpected error: %v", err)
		}
		if n > m.MaxRead {
			t.Fatalf("Recv() returned %d bytes, MaxRead is %d", n, m.MaxRead)
		}
		got = append(got, buf[:n]...)
	}

	if diff := cmp.Diff([]byte("abc"), got); diff != "" {
		t.Errorf("Recv() returned the wrong bytes; diff:\n%s", diff)
	}
}

func TestMemory_Send(t *testing.T) {
	m := NewMemory("peer")

	payload := []byte("one")
	if err := m.Send(payload); err != nil {
		t.Fatalf("Send() returned an unexpected error: %v", err)
	}
	payload[0] = 'X'

	if diff := cmp.Diff([][]byte{[]byte("one")}, m.Sent()); diff != "" {
		t.Errorf("Sent() did not match expected; diff:\n%s", diff)
	}

	sendErr := errors.New("broken pipe")
	m.FailSend(sendErr)
	if err := m.Send(payload); !errors.Is(err, sendErr) {
		t.Errorf("Send() error = %v, want %v", err, sendErr)
	}

	m.Close()
	if !m.Closed() {
		t.Error("Closed() = false after Close()")
	}
	if err := m.Send(payload); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want %v", err, ErrClosed)
	}
}
