// Package server implements the chat relay: an accept goroutine that registers
// new connections and a poll loop that decodes segments from every registered
// connection and broadcasts messages back out to all of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/wirechat/internal/core"
	"github.com/dcrodman/wirechat/internal/core/connection"
	"github.com/dcrodman/wirechat/internal/core/debug"
	"github.com/dcrodman/wirechat/internal/core/segment"
	"github.com/dcrodman/wirechat/internal/core/transport"
)

const (
	// closeCommand sent as the contents of a message shuts the server down.
	closeCommand   = "close"
	shutdownNotice = "Server has shut down."
)

var (
	ErrServerFull   = errors.New("server: connection limit reached")
	ErrShuttingDown = errors.New("server: shutting down")
)

// Server relays chat segments between every connected client.
type Server struct {
	Config *core.Config
	Logger *logrus.Logger

	listener *net.TCPListener
	registry registry
	// shuttingDown is guarded by the registry lock.
	shuttingDown bool
	nextID       atomic.Uint64
	senders      *senderCache
	packets      debug.PacketLogger
	cancel       context.CancelFunc
}

func New(cfg *core.Config, logger *logrus.Logger) *Server {
	return &Server{
		Config:  cfg,
		Logger:  logger,
		senders: newSenderCache(),
		packets: debug.PacketLogger{Logger: logger, Enabled: cfg.Debugging.PacketLoggingEnabled},
		cancel:  func() {},
	}
}

// Listen opens the TCP socket the server accepts connections on.
func (s *Server) Listen(address string) error {
	hostAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return fmt.Errorf("error resolving address %s: %w", address, err)
	}

	s.listener, err = net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return fmt.Errorf("error listening on socket: %w", err)
	}
	return nil
}

// Addr returns the address of the listening socket, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Connections returns the number of registered connections.
func (s *Server) Connections() int {
	s.registry.Lock()
	defer s.registry.Unlock()
	return s.registry.len()
}

// Run serves clients until ctx is cancelled or a client sends the close
// command, then notifies and disconnects everyone. Listen must be called first.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Run called before Listen")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	if s.Config.Debugging.PprofEnabled {
		pprofServer := debug.StartPprofServer(s.Logger, s.Config.PprofAddress())
		defer pprofServer.Close()
	}

	s.Logger.Infof("waiting for connections on %s", s.listener.Addr())

	var wg sync.WaitGroup
	wg.Add(1)
	go s.acceptLoop(ctx, &wg)

	err := s.pollLoop(ctx)
	s.shutdown(&wg)
	return err
}

// acceptLoop blocks in Accept and registers each new connection. It exits once
// the listener is closed during shutdown.
func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.Logger.Warnf("failed to accept connection: %s", err)
			continue
		}

		t, err := transport.NewTCP(conn)
		if err != nil {
			s.Logger.Warnf("failed to set up connection from %s: %s", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		if _, err := s.register(t); err != nil {
			s.Logger.Infof("rejected connection from %s: %s", t.RemoteAddr(), err)
			_ = t.Close()
		}
	}
}

// register wraps t in a Connection and adds it to the registry.
func (s *Server) register(t transport.Transport) (*member, error) {
	m := &member{
		id:      s.nextID.Add(1),
		session: uuid.New(),
		conn:    connection.New(t, s.Config.Server.ReceiveBufferSize),
	}

	s.registry.Lock()
	defer s.registry.Unlock()

	if s.shuttingDown {
		return nil, ErrShuttingDown
	}
	if limit := s.Config.Server.MaxConnections; limit > 0 && s.registry.len() >= limit {
		return nil, ErrServerFull
	}

	s.registry.insert(m)
	s.Logger.WithFields(m.fields()).Info("accepted connection")
	return m, nil
}

// pollLoop waits for readable connections and services them until ctx is done.
// The timeout on the wait only bounds how long shutdown can go unnoticed.
func (s *Server) pollLoop(ctx context.Context) error {
	var (
		generation = ^uint64(0)
		polled     []*member
		transports []transport.Transport
	)

	for ctx.Err() == nil {
		s.registry.Lock()
		if s.registry.generation != generation {
			generation = s.registry.generation
			polled = append(polled[:0], s.registry.members...)
			transports = transports[:0]
			for _, m := range polled {
				transports = append(transports, m.conn.Transport())
			}
		}
		s.registry.Unlock()

		ready, err := transport.Wait(transports, s.Config.Server.PollTimeout)
		if err != nil {
			return fmt.Errorf("error waiting for connections: %w", err)
		}

		readiness := make(map[*member]bool, len(polled))
		for i, m := range polled {
			readiness[m] = ready[i]
		}
		s.tick(readiness)
	}
	return nil
}

// tick services every ready connection and then removes the closed ones.
// Members missing from readiness joined after the wait and are always serviced.
func (s *Server) tick(readiness map[*member]bool) {
	s.registry.Lock()
	defer s.registry.Unlock()

	s.registry.each(func(_ int, m *member) {
		if ready, polled := readiness[m]; polled && !ready {
			return
		}
		s.service(m)
	})

	// A broadcast can fail a member that was visited earlier in the tick, so
	// closed members are collected only after every visit.
	var closed []int
	s.registry.each(func(i int, m *member) {
		if m.conn.State() == connection.Closed {
			closed = append(closed, i)
		}
	})
	for i := len(closed) - 1; i >= 0; i-- {
		s.remove(closed[i])
	}
}

// service drains every segment the connection has buffered.
func (s *Server) service(m *member) {
	for m.conn.Update() == connection.SegmentReady {
		s.dispatch(m, m.conn.Segment())
		m.conn.Acknowledge()
	}
}

func (s *Server) dispatch(m *member, seg segment.Segment) {
	logger := s.Logger.WithFields(m.fields())
	s.packets.Received(m.fields(), seg)

	switch seg := seg.(type) {
	case segment.Message:
		logger.Infof("%s: %s", seg.Sender, seg.Contents)
		s.senders.put(m.id, seg.Sender)
		s.broadcast(seg)

		if seg.Contents == closeCommand {
			logger.Infof("close requested by %s", seg.Sender)
			s.cancel()
		}
	case segment.Status:
		logger.Warnf("ignoring unexpected status from client: %q", seg.Text)
	case segment.Unrecognized:
		logger.Warnf("discarding segment with unrecognized type %s", seg.Tag)
	}
}

// broadcast sends seg to every open connection, including the one it came
// from. A failed send closes only that connection.
func (s *Server) broadcast(seg segment.Segment) {
	data, err := segment.Encode(seg)
	if err != nil {
		s.Logger.Errorf("failed to encode %s segment for broadcast: %s", seg.Type(), err)
		return
	}

	s.registry.each(func(_ int, m *member) {
		if m.conn.State() == connection.Closed {
			return
		}
		if err := m.conn.SendEncoded(data); err != nil {
			s.Logger.WithFields(m.fields()).Warnf("failed to send to client: %s", err)
			return
		}
		s.packets.Sent(m.fields(), data)
	})
}

// remove takes the member at index i out of the registry and releases it.
func (s *Server) remove(i int) {
	m := s.registry.removeAt(i)
	logger := s.Logger.WithFields(m.fields())

	if err := m.conn.Err(); err != nil && !errors.Is(err, connection.ErrTransportClosed) {
		logger.Warnf("dropping client: %s", err)
	}
	if err := m.conn.Close(); err != nil {
		logger.Warnf("failed to close client connection: %s", err)
	}
	logger.Info("disconnected client")

	sender, ok := s.senders.take(m.id)
	if ok && s.Config.Server.AnnounceDepartures {
		s.broadcast(segment.Status{Text: sender + " has left."})
	}
}

// shutdown stops the accept loop, tells every client the server is going away
// and closes all of their connections.
func (s *Server) shutdown(acceptLoop *sync.WaitGroup) {
	s.Logger.Info("shutting down")

	s.registry.Lock()
	s.shuttingDown = true
	s.registry.Unlock()

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.Logger.Warnf("failed to close listener: %s", err)
	}
	acceptLoop.Wait()

	s.registry.Lock()
	defer s.registry.Unlock()

	s.broadcast(segment.Status{Text: shutdownNotice})
	for _, m := range s.registry.drain() {
		if err := m.conn.Close(); err != nil {
			s.Logger.WithFields(m.fields()).Warnf("failed to close client connection: %s", err)
		}
	}
	s.Logger.Info("exited")
}
