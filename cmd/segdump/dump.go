package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/dcrodman/wirechat/internal/core/connection"
	"github.com/dcrodman/wirechat/internal/core/segment"
	"github.com/dcrodman/wirechat/internal/core/transport"
)

// dumper feeds the payload of each captured TCP stream through the same
// receive state machine the server uses and prints every decoded segment.
// Payloads are taken in capture order; retransmitted or reordered segments
// are not reassembled.
type dumper struct {
	// Port limits decoding to streams with this source or destination port.
	Port    uint16
	MaxBody int
	Out     io.Writer

	streams map[string]*stream
	order   []string
}

type stream struct {
	name   string
	buffer *transport.Memory
	conn   *connection.Connection
}

func (d *dumper) Dump(r io.Reader) error {
	pcapReader, err := pcapgo.NewReader(r)
	if err != nil {
		return fmt.Errorf("error reading capture: %w", err)
	}
	d.streams = make(map[string]*stream)
	d.order = nil

	source := gopacket.NewPacketSource(pcapReader, pcapReader.LinkType())
	for packet := range source.Packets() {
		network := packet.NetworkLayer()
		tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if network == nil || !ok || len(tcp.Payload) == 0 {
			continue
		}
		if d.Port != 0 && uint16(tcp.SrcPort) != d.Port && uint16(tcp.DstPort) != d.Port {
			continue
		}

		s := d.stream(fmt.Sprintf("%s:%d -> %s:%d",
			network.NetworkFlow().Src(), uint16(tcp.SrcPort),
			network.NetworkFlow().Dst(), uint16(tcp.DstPort)))
		if s.conn.State() == connection.Closed {
			continue
		}

		s.buffer.Feed(tcp.Payload)
		d.drain(s)
	}

	for _, name := range d.order {
		if s := d.streams[name]; s.conn.Partial() {
			fmt.Fprintf(d.Out, "%s  capture ended mid-segment\n", name)
		}
	}
	return nil
}

func (d *dumper) stream(name string) *stream {
	if s, ok := d.streams[name]; ok {
		return s
	}

	buffer := transport.NewMemory(name)
	s := &stream{
		name:   name,
		buffer: buffer,
		conn:   connection.New(buffer, d.MaxBody),
	}
	d.streams[name] = s
	d.order = append(d.order, name)
	return s
}

func (d *dumper) drain(s *stream) {
	for s.conn.Update() == connection.SegmentReady {
		fmt.Fprintf(d.Out, "%s  %s\n", s.name, describe(s.conn.Segment()))
		s.conn.Acknowledge()
	}

	if s.conn.State() == connection.Closed {
		err := s.conn.Err()
		if errors.Is(err, segment.ErrMalformedSegment) {
			fmt.Fprintf(d.Out, "%s  stream abandoned: %v\n", s.name, err)
		}
	}
}

func describe(seg segment.Segment) string {
	switch seg := seg.(type) {
	case segment.Message:
		return fmt.Sprintf("MESSAGE sender=%q contents=%q", seg.Sender, seg.Contents)
	case segment.Status:
		return fmt.Sprintf("STATUS text=%q", seg.Text)
	default:
		return seg.Type().String()
	}
}
