package ws

import "sync"

// Registry maps user identities to their live connections. It is the source
// of truth for "is this user currently reachable": a user with zero live
// connections is indistinguishable from a user who never connected, no
// tombstones are kept. Anonymous connections are tracked for cleanup and
// global broadcast only and never surface through LivesOf.
//
// Register and Unregister hold the lock for their whole body, so first- and
// last-connection edge detection cannot race with interleaved events.
type Registry struct {
	mu        sync.RWMutex
	lives     map[int]map[*Conn]struct{}
	anonymous map[*Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lives:     make(map[int]map[*Conn]struct{}),
		anonymous: make(map[*Conn]struct{}),
	}
}

// Register adds the connection to its owner's live set, or to the anonymous
// pool when the connection has no identity. Reports whether this was the
// user's first live connection (the 0->1 presence edge).
func (r *Registry) Register(conn *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.Anonymous() {
		r.anonymous[conn] = struct{}{}
		return false
	}

	set, ok := r.lives[conn.UserID]
	if !ok {
		set = make(map[*Conn]struct{})
		r.lives[conn.UserID] = set
	}
	set[conn] = struct{}{}
	return len(set) == 1
}

// Unregister removes the connection. Reports the owning user and whether the
// user's live set became empty (the 1->0 presence edge); the empty entry is
// deleted. Anonymous and unknown connections report no edge.
func (r *Registry) Unregister(conn *Conn) (userID int, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.Anonymous() {
		delete(r.anonymous, conn)
		return 0, false
	}

	set, ok := r.lives[conn.UserID]
	if !ok {
		return conn.UserID, false
	}
	if _, ok := set[conn]; !ok {
		return conn.UserID, false
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.lives, conn.UserID)
		return conn.UserID, true
	}
	return conn.UserID, false
}

// LivesOf returns a snapshot of the user's live connections; empty when the
// user has no entry, never an error.
func (r *Registry) LivesOf(userID int) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.lives[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]*Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// All returns a snapshot of every live connection, anonymous ones included.
// Used by the global presence fan-out.
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.anonymous))
	for _, set := range r.lives {
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	for conn := range r.anonymous {
		conns = append(conns, conn)
	}
	return conns
}
