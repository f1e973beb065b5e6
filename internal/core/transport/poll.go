//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Wait blocks until at least one of the transports is readable, hung up or in
// error, or until timeout elapses. The returned slice reports readiness by index.
// An interrupted wait is reported as a timeout.
func Wait(transports []Transport, timeout time.Duration) ([]bool, error) {
	ready := make([]bool, len(transports))
	if len(transports) == 0 {
		time.Sleep(timeout)
		return ready, nil
	}

	fds := make([]unix.PollFd, len(transports))
	for i, t := range transports {
		fds[i] = unix.PollFd{Fd: -1}
		if fd := t.Fd(); fd != NoFd {
			fds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
		}
	}

	if _, err := unix.Poll(fds, int(timeout.Milliseconds())); err != nil {
		if errors.Is(err, unix.EINTR) {
			return ready, nil
		}
		return nil, fmt.Errorf("error polling %d descriptors: %w", len(fds), err)
	}

	for i := range fds {
		ready[i] = fds[i].Revents != 0
	}
	return ready, nil
}
