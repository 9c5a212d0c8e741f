package room

import "github.com/mgarridos/babel/internal/core"

type entry struct {
	id   core.ConnID
	role core.Role
	conn core.SignalConn
}

// Registry tracks the live sockets of one room. It carries no locking of
// its own: every mutation happens under the owning Room's mutex, and the
// registry is rebuilt empty whenever the process starts.
type Registry struct {
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Admit(id core.ConnID, role core.Role, conn core.SignalConn) {
	r.entries = append(r.entries, entry{id: id, role: role, conn: conn})
}

func (r *Registry) Remove(id core.ConnID) {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *Registry) Size() int {
	return len(r.entries)
}

func (r *Registry) RoleOccupied(role core.Role) bool {
	for _, e := range r.entries {
		if e.role == role {
			return true
		}
	}
	return false
}

// ForEach visits connections in admission order.
func (r *Registry) ForEach(fn func(id core.ConnID, role core.Role, conn core.SignalConn)) {
	for _, e := range r.entries {
		fn(e.id, e.role, e.conn)
	}
}
