package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcrodman/wirechat/internal/core"
	"github.com/dcrodman/wirechat/internal/core/segment"
	"github.com/dcrodman/wirechat/internal/core/transport"
)

func newTestServer(t *testing.T, configure func(cfg *core.Config)) (*Server, *test.Hook) {
	t.Helper()

	cfg := &core.Config{LogLevel: "debug"}
	cfg.Server.PollTimeout = 10 * time.Millisecond
	cfg.Server.ReceiveBufferSize = 1024
	if configure != nil {
		configure(cfg)
	}

	logger, hook := test.NewNullLogger()
	logger.Level = logrus.DebugLevel
	return New(cfg, logger), hook
}

func registerMemory(t *testing.T, s *Server, n int) []*transport.Memory {
	t.Helper()

	peers := make([]*transport.Memory, n)
	for i := range peers {
		peers[i] = transport.NewMemory("peer")
		_, err := s.register(peers[i])
		require.NoError(t, err)
	}
	return peers
}

func encode(t *testing.T, seg segment.Segment) []byte {
	t.Helper()
	data, err := segment.Encode(seg)
	require.NoError(t, err)
	return data
}

func TestServer_Broadcast(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 3)

	msg := encode(t, segment.Message{Sender: "alice", Contents: "hi"})
	peers[1].Feed(msg)
	s.tick(nil)

	for i, p := range peers {
		if diff := deep.Equal(p.Sent(), [][]byte{msg}); diff != nil {
			t.Errorf("peer %d did not receive exactly one copy of the message: %v", i, diff)
		}
	}
	assert.Equal(t, 3, s.Connections())
}

func TestServer_BroadcastSendFailure(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 3)
	peers[0].FailSend(io.ErrClosedPipe)

	msg := encode(t, segment.Message{Sender: "bob", Contents: "anyone there?"})
	peers[2].Feed(msg)
	s.tick(nil)

	assert.Empty(t, peers[0].Sent())
	assert.True(t, peers[0].Closed(), "failed peer should be closed")
	assert.Equal(t, [][]byte{msg}, peers[1].Sent())
	assert.Equal(t, [][]byte{msg}, peers[2].Sent())
	assert.Equal(t, 2, s.Connections())
}

func TestServer_MultipleSegmentsInOneTick(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 2)

	first := encode(t, segment.Message{Sender: "alice", Contents: "one"})
	second := encode(t, segment.Message{Sender: "alice", Contents: "two"})
	peers[0].Feed(append(append([]byte{}, first...), second...))
	s.tick(nil)

	assert.Equal(t, [][]byte{first, second}, peers[1].Sent())
}

func TestServer_IgnoredSegments(t *testing.T) {
	s, hook := newTestServer(t, nil)
	peers := registerMemory(t, s, 2)

	peers[0].Feed(encode(t, segment.Status{Text: "hello?"}))
	peers[0].Feed([]byte{0x09, 0x00, 0x01, 0xff})
	s.tick(nil)

	for _, p := range peers {
		assert.Empty(t, p.Sent())
	}
	assert.Equal(t, 2, s.Connections())

	var warnings []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message)
		}
	}
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "unexpected status")
	assert.Contains(t, warnings[1], "unrecognized type")
}

func TestServer_RemovesClosedConnections(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 4)

	peers[0].HangUp()
	// Declares more than the receive buffer holds.
	peers[2].Feed([]byte{byte(segment.TypeMessage), 0xff, 0xff})
	stream := encode(t, segment.Message{Sender: "carol", Contents: "cut off"})
	peers[3].Feed(stream[:5])
	peers[3].HangUp()

	s.tick(nil)

	require.Equal(t, 1, s.Connections())
	assert.Same(t, peers[1], s.registry.members[0].conn.Transport())
	for _, i := range []int{0, 2, 3} {
		assert.True(t, peers[i].Closed(), "peer %d should be closed", i)
	}
	for _, p := range peers {
		assert.Empty(t, p.Sent(), "no segment should have been dispatched")
	}
}

func TestServer_Readiness(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 2)
	msg := encode(t, segment.Message{Sender: "alice", Contents: "hi"})
	peers[0].Feed(msg)

	s.tick(map[*member]bool{s.registry.members[0]: false, s.registry.members[1]: false})
	assert.Empty(t, peers[1].Sent())

	s.tick(map[*member]bool{s.registry.members[0]: true, s.registry.members[1]: false})
	assert.Equal(t, [][]byte{msg}, peers[1].Sent())
}

func TestServer_CloseCommand(t *testing.T) {
	s, _ := newTestServer(t, nil)
	peers := registerMemory(t, s, 2)

	cancelled := false
	s.cancel = func() { cancelled = true }

	msg := encode(t, segment.Message{Sender: "alice", Contents: "close"})
	peers[0].Feed(msg)
	s.tick(nil)

	assert.True(t, cancelled, "close command should cancel the server")
	assert.Equal(t, [][]byte{msg}, peers[1].Sent(), "close is still broadcast")
}

func TestServer_Departures(t *testing.T) {
	tests := []struct {
		name     string
		announce bool
		want     []segment.Segment
	}{
		{
			name:     "announced",
			announce: true,
			want: []segment.Segment{
				segment.Message{Sender: "alice", Contents: "bye"},
				segment.Status{Text: "alice has left."},
			},
		},
		{
			name: "silent",
			want: []segment.Segment{segment.Message{Sender: "alice", Contents: "bye"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, func(cfg *core.Config) {
				cfg.Server.AnnounceDepartures = tt.announce
			})
			peers := registerMemory(t, s, 2)

			peers[0].Feed(encode(t, segment.Message{Sender: "alice", Contents: "bye"}))
			peers[0].HangUp()
			s.tick(nil)

			var want [][]byte
			for _, seg := range tt.want {
				want = append(want, encode(t, seg))
			}
			assert.Equal(t, want, peers[1].Sent())
			assert.Equal(t, 1, s.Connections())
		})
	}
}

func TestServer_MaxConnections(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *core.Config) {
		cfg.Server.MaxConnections = 2
	})
	registerMemory(t, s, 2)

	_, err := s.register(transport.NewMemory("peer"))
	assert.ErrorIs(t, err, ErrServerFull)
	assert.Equal(t, 2, s.Connections())
}

func TestServer_RunBeforeListen(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.Error(t, s.Run(context.Background()))
}

// runningServer is a Server listening on a loopback port with Run executing
// in the background.
type runningServer struct {
	*Server
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startTestServer(t *testing.T) *runningServer {
	t.Helper()

	s, _ := newTestServer(t, nil)
	require.NoError(t, s.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	r := &runningServer{Server: s, cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = s.Run(ctx)
		close(r.done)
	}()

	t.Cleanup(func() {
		r.cancel()
		<-r.done
	})
	return r
}

func (r *runningServer) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
		return nil
	}
}

func dialTestServer(t *testing.T, r *runningServer) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", r.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSegment(t *testing.T, conn net.Conn) segment.Segment {
	t.Helper()

	header := make([]byte, segment.HeaderSize)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)
	h, err := segment.ParseHeader(header)
	require.NoError(t, err)

	body := make([]byte, h.Length)
	_, err = io.ReadFull(conn, body)
	require.NoError(t, err)
	seg, err := segment.Decode(h.Type, body)
	require.NoError(t, err)
	return seg
}

func TestServer_EchoesToAll(t *testing.T) {
	r := startTestServer(t)
	alice := dialTestServer(t, r)
	bob := dialTestServer(t, r)
	require.Eventually(t, func() bool { return r.Connections() == 2 }, 5*time.Second, 10*time.Millisecond)

	msg := segment.Message{Sender: "alice", Contents: "hi"}
	_, err := alice.Write(encode(t, msg))
	require.NoError(t, err)

	assert.Equal(t, segment.Segment(msg), readSegment(t, alice))
	assert.Equal(t, segment.Segment(msg), readSegment(t, bob))
}

func TestServer_CloseShutsDown(t *testing.T) {
	r := startTestServer(t)
	alice := dialTestServer(t, r)
	bob := dialTestServer(t, r)
	require.Eventually(t, func() bool { return r.Connections() == 2 }, 5*time.Second, 10*time.Millisecond)

	msg := segment.Message{Sender: "alice", Contents: "close"}
	_, err := alice.Write(encode(t, msg))
	require.NoError(t, err)

	for _, conn := range []net.Conn{alice, bob} {
		assert.Equal(t, segment.Segment(msg), readSegment(t, conn))
		assert.Equal(t, segment.Segment(segment.Status{Text: shutdownNotice}), readSegment(t, conn))

		_, err := conn.Read(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
	}
	require.NoError(t, r.wait(t))
	assert.Equal(t, 0, r.Connections())
}

func TestServer_ShutdownOnCancel(t *testing.T) {
	r := startTestServer(t)
	conn := dialTestServer(t, r)
	require.Eventually(t, func() bool { return r.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)

	r.cancel()

	assert.Equal(t, segment.Segment(segment.Status{Text: shutdownNotice}), readSegment(t, conn))
	require.NoError(t, r.wait(t))
}
