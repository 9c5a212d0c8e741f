// Package room owns the per-room aggregate: the connection registry, role
// assignment, the broadcast fan-out and every read-modify-write against the
// durable room records. One mutex per room serializes all of it, including
// the store round-trips, so handlers for the same room never interleave.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/store"
)

// ErrRoomFull rejects admissions beyond the configured participant cap.
var ErrRoomFull = errors.New("room full")

// Options apply to every room a Manager creates.
type Options struct {
	// ServerID identifies this process in hello events.
	ServerID string

	// MaxPeers caps concurrent participants; 0 means no cap.
	MaxPeers int

	// ResetRoomStateOnEmpty also wipes the profile record when the room
	// empties; AgentState is always reset then.
	ResetRoomStateOnEmpty bool
}

// Room is the single-writer aggregate for one room name.
type Room struct {
	name  string
	opts  Options
	store store.Store

	mu  sync.Mutex
	reg *Registry

	// dropped counts frames swallowed by best-effort delivery.
	dropped atomic.Uint64
}

func New(name string, st store.Store, opts Options) *Room {
	return &Room{
		name:  name,
		opts:  opts,
		store: st,
		reg:   NewRegistry(),
	}
}

func (r *Room) Name() string { return r.name }

func (r *Room) Peers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.Size()
}

// Dropped reports how many frames best-effort delivery has swallowed.
func (r *Room) Dropped() uint64 { return r.dropped.Load() }

// Admission is what the transport needs to run a connection's read loop.
type Admission struct {
	ID   core.ConnID
	Role core.Role
}

// Admit registers a new connection, picks its role, sends it a hello with
// the current room records and announces the new participant count.
//
// Role policy: the first connection with no live primary becomes primary.
// Closing removes a connection from the registry before the next role
// lookup, so a refreshed primary reclaims its role as long as no other
// primary is currently connected. Everyone else is secondary.
func (r *Room) Admit(ctx context.Context, conn core.SignalConn) (Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.MaxPeers > 0 && r.reg.Size() >= r.opts.MaxPeers {
		return Admission{}, ErrRoomFull
	}

	role := core.RoleSecondary
	if !r.reg.RoleOccupied(core.RolePrimary) {
		role = core.RolePrimary
	}
	id := core.ConnID(uuid.NewString())
	r.reg.Admit(id, role, conn)

	hello := core.HelloEvent{
		Type:       "hello",
		ServerID:   r.opts.ServerID,
		ClientID:   id,
		Role:       role,
		RoomState:  r.roomState(ctx),
		AgentState: r.agentState(ctx),
	}
	r.send(conn, hello)
	r.broadcastPeers()

	log.Info().Str("module", "room").Str("room", r.name).
		Str("cid", string(id)).Str("role", string(role)).
		Int("peers", r.reg.Size()).Msg("admitted")
	return Admission{ID: id, Role: role}, nil
}

// Leave removes a connection and re-announces the participant count. When
// the room empties the agent record is reset; the profile record survives
// unless the reset-on-empty policy is enabled.
func (r *Room) Leave(ctx context.Context, id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reg.Remove(id)
	r.broadcastPeers()
	log.Info().Str("module", "room").Str("room", r.name).
		Str("cid", string(id)).Int("peers", r.reg.Size()).Msg("left")

	if r.reg.Size() > 0 {
		return
	}
	if err := r.store.PutAgentState(ctx, r.name, core.AgentState{}); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("agent state reset failed")
	}
	if r.opts.ResetRoomStateOnEmpty {
		if err := r.store.PutRoomState(ctx, r.name, core.RoomState{}); err != nil {
			log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("room state reset failed")
		}
	}
}

// AnnouncePeers re-broadcasts the current participant count.
func (r *Room) AnnouncePeers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastPeers()
}

// InitRoom applies the one-time room initialization. Only the primary may
// initialize, and an already-initialized record is never overwritten; in
// every accepted case the resulting state is re-broadcast so late joiners
// resynchronize.
func (r *Room) InitRoom(ctx context.Context, role core.Role, proposed core.RoomState) {
	if role != core.RolePrimary {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.roomState(ctx)
	if !state.Initialized() {
		state = proposed.Trimmed()
		if err := r.store.PutRoomState(ctx, r.name, state); err != nil {
			log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("room state write failed")
		}
	}
	r.broadcast(core.RoomStateEvent{Type: "room_state", RoomState: state}, "")
}

// PatchProfile updates the caller's own half of the room state and
// broadcasts the result.
func (r *Room) PatchProfile(ctx context.Context, role core.Role, patch core.ProfilePatch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.roomState(ctx)
	state.Apply(role, patch)
	if err := r.store.PutRoomState(ctx, r.name, state); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("room state write failed")
	}
	r.broadcast(core.RoomStateEvent{Type: "room_state", RoomState: state}, "")
}

// SetAgentSpeaking flips the agent flag for the named role and broadcasts
// the result. An invalid target role is ignored.
func (r *Room) SetAgentSpeaking(ctx context.Context, target core.Role, speaking bool) {
	if !target.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.agentState(ctx)
	state.Set(target, speaking)
	if err := r.store.PutAgentState(ctx, r.name, state); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("agent state write failed")
	}
	r.broadcast(core.AgentStateEvent{Type: "agent_state", AgentState: state}, "")
}

// Relay bounces an opaque payload to every participant except the sender.
// The payload is forwarded verbatim and never persisted.
func (r *Room) Relay(event string, payload json.RawMessage, from core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast(core.RelayEvent{Type: event, Payload: payload}, from)
}

// roomState reads the profile record, falling back to the zero value on a
// store failure. Callers hold r.mu.
func (r *Room) roomState(ctx context.Context) core.RoomState {
	s, err := r.store.RoomState(ctx, r.name)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("room state read failed")
	}
	return s
}

func (r *Room) agentState(ctx context.Context) core.AgentState {
	a, err := r.store.AgentState(ctx, r.name)
	if err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", r.name).Msg("agent state read failed")
	}
	return a
}

func (r *Room) broadcastPeers() {
	r.broadcast(core.PeersEvent{Type: "peers", Count: r.reg.Size()}, "")
}

// broadcast serializes once and fans out in admission order. Delivery is
// best effort: a failed send is counted and skipped, never retried.
func (r *Room) broadcast(v any, except core.ConnID) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("room", r.name).Msg("broadcast marshal")
		return
	}
	r.reg.ForEach(func(id core.ConnID, _ core.Role, conn core.SignalConn) {
		if except != "" && id == except {
			return
		}
		if err := conn.TrySend(b); err != nil {
			r.dropped.Add(1)
			log.Debug().Err(err).Str("module", "room").Str("room", r.name).
				Str("cid", string(id)).Uint64("dropped_total", r.dropped.Load()).Msg("frame dropped")
		}
	})
}

func (r *Room) send(conn core.SignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("room", r.name).Msg("send marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		r.dropped.Add(1)
		log.Debug().Err(err).Str("module", "room").Str("room", r.name).Msg("frame dropped")
	}
}
