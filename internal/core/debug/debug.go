// Package debug holds the optional diagnostics enabled under the debugging
// section of the config: a pprof server and per-segment packet logging.
package debug

import (
	"errors"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/wirechat/internal/core/segment"
)

// StartPprofServer starts the default pprof HTTP server on addr so runtime
// information can be pulled from a running server. See
// https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger logrus.FieldLogger, addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: http.DefaultServeMux}
	logger.Infof("starting pprof server on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("error starting pprof server: %s", err)
		}
	}()
	return srv
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// PacketLogger writes a structural dump of every segment crossing a
// connection. The zero value logs nothing.
type PacketLogger struct {
	Logger  logrus.FieldLogger
	Enabled bool
}

// Received logs a segment decoded from a peer.
func (p PacketLogger) Received(fields logrus.Fields, seg segment.Segment) {
	if !p.Enabled || p.Logger == nil {
		return
	}
	p.Logger.WithFields(fields).Debugf("received %s segment\n%s", seg.Type(), dumpConfig.Sdump(seg))
}

// Sent logs the encoded bytes of a segment written to a peer.
func (p PacketLogger) Sent(fields logrus.Fields, data []byte) {
	if !p.Enabled || p.Logger == nil {
		return
	}
	var t segment.Type
	if len(data) > 0 {
		t = segment.Type(data[0])
	}
	p.Logger.WithFields(fields).Debugf("sent %s segment (%d bytes)\n%s", t, len(data), dumpConfig.Sdump(data))
}
