package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/wirechat/internal/core/connection"
)

// member is a registered connection plus the identifiers used in its logs.
type member struct {
	id      uint64
	session uuid.UUID
	conn    *connection.Connection
}

func (m *member) fields() logrus.Fields {
	return logrus.Fields{
		"conn":    m.id,
		"session": m.session,
		"remote":  m.conn.RemoteAddr(),
	}
}

// registry is the insertion-ordered set of live connections shared by the
// accept loop and the poll loop. Every method requires the caller to hold the
// embedded lock.
type registry struct {
	sync.Mutex

	members []*member
	// generation changes whenever membership does so the poll loop knows when
	// to rebuild its readiness set.
	generation uint64
}

func (r *registry) insert(m *member) {
	r.members = append(r.members, m)
	r.generation++
}

// each calls visit for every member in insertion order.
func (r *registry) each(visit func(i int, m *member)) {
	for i, m := range r.members {
		visit(i, m)
	}
}

// removeAt removes and returns the member at index i, preserving the order of
// the rest. Indices below i are unaffected, so removals applied from the back
// of a list of ascending indices stay valid.
func (r *registry) removeAt(i int) *member {
	m := r.members[i]
	copy(r.members[i:], r.members[i+1:])
	r.members[len(r.members)-1] = nil
	r.members = r.members[:len(r.members)-1]
	r.generation++
	return m
}

// drain empties the registry and returns what it held.
func (r *registry) drain() []*member {
	members := r.members
	r.members = nil
	r.generation++
	return members
}

func (r *registry) len() int {
	return len(r.members)
}
