// Package store persists the two named records a room owns: its RoomState
// and its AgentState. Records survive connection churn and process
// restarts; a missing record reads back as the zero value, never an error.
package store

import (
	"context"
	"sync"

	"github.com/mgarridos/babel/internal/core"
)

// Store is the durable backend for per-room records.
type Store interface {
	RoomState(ctx context.Context, room string) (core.RoomState, error)
	PutRoomState(ctx context.Context, room string, s core.RoomState) error
	AgentState(ctx context.Context, room string) (core.AgentState, error)
	PutAgentState(ctx context.Context, room string, a core.AgentState) error
	Ping(ctx context.Context) error
	Close()
}

// Memory keeps records in process memory. Used when no database is
// configured and in tests; rooms still behave identically, they just
// forget their configuration on restart.
type Memory struct {
	mu          sync.RWMutex
	roomStates  map[string]core.RoomState
	agentStates map[string]core.AgentState
}

func NewMemory() *Memory {
	return &Memory{
		roomStates:  make(map[string]core.RoomState),
		agentStates: make(map[string]core.AgentState),
	}
}

func (m *Memory) RoomState(_ context.Context, room string) (core.RoomState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomStates[room], nil
}

func (m *Memory) PutRoomState(_ context.Context, room string, s core.RoomState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomStates[room] = s
	return nil
}

func (m *Memory) AgentState(_ context.Context, room string) (core.AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agentStates[room], nil
}

func (m *Memory) PutAgentState(_ context.Context, room string, a core.AgentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentStates[room] = a
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
