package room

import (
	"sync"

	"github.com/mgarridos/babel/internal/store"
)

// Manager maps room names to room instances, creating them lazily on first
// reference. Rooms are never torn down: an empty room keeps its name so a
// returning participant finds the same durable records.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	store store.Store
	opts  Options
}

func NewManager(st store.Store, opts Options) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		store: st,
		opts:  opts,
	}
}

func (m *Manager) GetOrCreate(name string) *Room {
	m.mu.RLock()
	r, ok := m.rooms[name]
	m.mu.RUnlock()
	if ok {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.rooms[name]; ok {
		return r
	}
	r = New(name, m.store, m.opts)
	m.rooms[name] = r
	return r
}

// Info is a point-in-time view of one room for the listing endpoint.
type Info struct {
	Name  string `json:"name"`
	Peers int    `json:"peers"`
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, Info{Name: name, Peers: r.Peers()})
	}
	return out
}
