package session

import "sort"

// Registry tracks every live session, keyed by its stable NodeID. Per
// the spec's §9 design note, cross-session references (snoop links) are
// non-owning NodeID indexes resolved
// through this registry at dereference time, not raw pointers, so a
// session that has gone away is simply absent from a lookup rather than
// a dangling pointer.
type Registry struct {
	sessions map[int]*Session
	nextID   int
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*Session)}
}

// Register adds s to the registry under its NodeID.
func (r *Registry) Register(s *Session) {
	r.sessions[s.NodeID] = s
}

// Unregister removes the session with the given NodeID.
func (r *Registry) Unregister(nodeID int) {
	delete(r.sessions, nodeID)
}

// Get returns the session with the given NodeID, or nil if it is not
// (or no longer) registered.
func (r *Registry) Get(nodeID int) *Session {
	return r.sessions[nodeID]
}

// NextNodeID returns a fresh, never-before-used NodeID.
func (r *Registry) NextNodeID() int {
	r.nextID++
	return r.nextID
}

// ReserveNodeID advances the internal counter so a restored (copyover)
// session's original NodeID is never reissued to a new connection.
func (r *Registry) ReserveNodeID(id int) {
	if id > r.nextID {
		r.nextID = id
	}
}

// ListActive returns every registered session ordered by NodeID, the
// order the admin `protocols`/`who`-style commands iterate in.
func (r *Registry) ListActive() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// SnoopTarget resolves s's snoop target, if any and if it is still live.
func (r *Registry) SnoopTarget(s *Session) *Session {
	if s.SnoopTargetID == 0 {
		return nil
	}
	return r.sessions[s.SnoopTargetID]
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
