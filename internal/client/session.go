// Package client implements the interactive side of wirechat: lines typed by
// the user are sent to the server as messages while everything the server
// broadcasts is rendered to a Display.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/user"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/wirechat/internal/core"
	"github.com/dcrodman/wirechat/internal/core/connection"
	"github.com/dcrodman/wirechat/internal/core/debug"
	"github.com/dcrodman/wirechat/internal/core/segment"
	"github.com/dcrodman/wirechat/internal/core/transport"
)

const (
	exitCommand    = "exit"
	historyCommand = "/history"
)

// Session is a single client connection to a server.
type Session struct {
	Config *core.Config
	Logger *logrus.Logger

	// Identity is sent as the sender of every message.
	Identity string
	Input    io.Reader
	Display  Display
}

// Connect dials address and runs the session over the new connection.
func (s *Session) Connect(ctx context.Context, address string) error {
	t, err := transport.Dial(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	s.Logger.Infof("connected to %s as %s", t.RemoteAddr(), s.Identity)
	return s.Run(ctx, t)
}

// Run exchanges segments over t until the user exits, input ends, ctx is
// cancelled or the server goes away. A server disconnect is not an error.
func (s *Session) Run(ctx context.Context, t transport.Transport) error {
	// The server may relay anything that fits on the wire, so accept up to the
	// protocol maximum rather than its own receive limit.
	conn := connection.New(t, segment.MaxLength)
	defer conn.Close()

	packets := debug.PacketLogger{Logger: s.Logger, Enabled: s.Config.Debugging.PacketLoggingEnabled}
	fields := logrus.Fields{"remote": conn.RemoteAddr()}

	inputCtx, stopInput := context.WithCancel(ctx)
	defer stopInput()

	// The input goroutine may stay blocked reading from Input after Run returns
	// since a pending read cannot be interrupted.
	lines := make(chan string)
	go readInput(inputCtx, s.Input, s.Config.Client.MaxLineLength, lines)

	watched := []transport.Transport{t}
	for ctx.Err() == nil {
		if _, err := transport.Wait(watched, s.Config.Client.PollInterval); err != nil {
			return fmt.Errorf("error waiting for server: %w", err)
		}

		for conn.Update() == connection.SegmentReady {
			packets.Received(fields, conn.Segment())
			s.Display.Show(conn.Segment())
			conn.Acknowledge()
		}

		if conn.State() == connection.Closed {
			if err := conn.Err(); !errors.Is(err, connection.ErrTransportClosed) {
				return fmt.Errorf("connection to server failed: %w", err)
			}
			s.Logger.Info("server closed the connection")
			return nil
		}

		select {
		case line, ok := <-lines:
			if !ok || line == exitCommand {
				return nil
			}
			if err := s.handleLine(conn, line); err != nil {
				return err
			}
		default:
		}
	}
	return nil
}

func (s *Session) handleLine(conn *connection.Connection, line string) error {
	switch line {
	case "":
		return nil
	case historyCommand:
		s.Display.ShowHistory()
		return nil
	}

	if err := conn.Send(segment.Message{Sender: s.Identity, Contents: line}); err != nil {
		if errors.Is(err, segment.ErrLengthOverflow) {
			s.Logger.Warnf("message not sent: %s", err)
			return nil
		}
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// DefaultIdentity picks the sender name when none is configured.
func DefaultIdentity() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "anonymous"
}
