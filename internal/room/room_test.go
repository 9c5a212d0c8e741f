package room

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/store"
)

type fakeConn struct {
	frames []core.Frame
	fail   bool
	closed bool
}

func (f *fakeConn) TrySend(b core.Frame) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func (f *fakeConn) lastHello(t *testing.T) core.HelloEvent {
	t.Helper()
	for i := len(f.frames) - 1; i >= 0; i-- {
		var h core.HelloEvent
		require.NoError(t, json.Unmarshal(f.frames[i], &h))
		if h.Type == "hello" {
			return h
		}
	}
	t.Fatal("no hello frame received")
	return core.HelloEvent{}
}

func (f *fakeConn) lastRoomState(t *testing.T) core.RoomState {
	t.Helper()
	for i := len(f.frames) - 1; i >= 0; i-- {
		var ev core.RoomStateEvent
		require.NoError(t, json.Unmarshal(f.frames[i], &ev))
		if ev.Type == "room_state" {
			return ev.RoomState
		}
	}
	t.Fatal("no room_state frame received")
	return core.RoomState{}
}

func newTestRoom(opts Options) *Room {
	if opts.ServerID == "" {
		opts.ServerID = "srv-test"
	}
	return New("X", store.NewMemory(), opts)
}

func TestAdmitAssignsRoles(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})

	a, b := &fakeConn{}, &fakeConn{}
	admA, err := r.Admit(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, core.RolePrimary, admA.Role)

	admB, err := r.Admit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, core.RoleSecondary, admB.Role)
	assert.NotEqual(t, admA.ID, admB.ID)

	hello := a.lastHello(t)
	assert.Equal(t, "srv-test", hello.ServerID)
	assert.Equal(t, admA.ID, hello.ClientID)
	assert.Equal(t, core.RoomState{}, hello.RoomState)
	assert.Equal(t, core.AgentState{}, hello.AgentState)
}

func TestRoleRecoveryAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})

	admA, err := r.Admit(ctx, &fakeConn{})
	require.NoError(t, err)
	require.Equal(t, core.RolePrimary, admA.Role)

	r.Leave(ctx, admA.ID)

	admB, err := r.Admit(ctx, &fakeConn{})
	require.NoError(t, err)
	assert.Equal(t, core.RolePrimary, admB.Role, "vacant primary slot must be reclaimed")
}

func TestSinglePrimaryExclusivity(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 0}) // uncapped to observe pure role policy

	_, err := r.Admit(ctx, &fakeConn{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		adm, err := r.Admit(ctx, &fakeConn{})
		require.NoError(t, err)
		assert.Equal(t, core.RoleSecondary, adm.Role)
	}
}

func TestAdmitRejectsBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})

	_, err := r.Admit(ctx, &fakeConn{})
	require.NoError(t, err)
	_, err = r.Admit(ctx, &fakeConn{})
	require.NoError(t, err)

	third := &fakeConn{}
	_, err = r.Admit(ctx, third)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Empty(t, third.frames, "rejected connection must not receive hello")
	assert.Equal(t, 2, r.Peers())
}

func TestInitRoomIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a := &fakeConn{}
	adm, err := r.Admit(ctx, a)
	require.NoError(t, err)

	first := core.RoomState{
		Primary:   core.Profile{Name: "Ann", Lang: "es"},
		Secondary: core.Profile{Name: "Bo", Lang: "hu"},
	}
	r.InitRoom(ctx, adm.Role, first)
	assert.Equal(t, first, a.lastRoomState(t))

	frames := len(a.frames)
	second := core.RoomState{
		Primary:   core.Profile{Name: "Zed", Lang: "de"},
		Secondary: core.Profile{Name: "Yana", Lang: "fi"},
	}
	r.InitRoom(ctx, adm.Role, second)

	// stored state unchanged, but a room_state broadcast still went out
	assert.Equal(t, first, a.lastRoomState(t))
	assert.Len(t, a.frames, frames+1)
}

func TestInitRoomTrimsFields(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a := &fakeConn{}
	adm, _ := r.Admit(ctx, a)

	r.InitRoom(ctx, adm.Role, core.RoomState{
		Primary:   core.Profile{Name: " Ann ", Lang: " es "},
		Secondary: core.Profile{Name: "Bo", Lang: "hu"},
	})
	got := a.lastRoomState(t)
	assert.Equal(t, "Ann", got.Primary.Name)
	assert.Equal(t, "es", got.Primary.Lang)
}

func TestInitRoomIgnoresNonPrimary(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a := &fakeConn{}
	_, err := r.Admit(ctx, a)
	require.NoError(t, err)

	frames := len(a.frames)
	r.InitRoom(ctx, core.RoleSecondary, core.RoomState{
		Primary:   core.Profile{Lang: "es"},
		Secondary: core.Profile{Lang: "hu"},
	})
	assert.Len(t, a.frames, frames, "non-primary init must neither store nor broadcast")
}

func TestPatchProfileIsolation(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a, b := &fakeConn{}, &fakeConn{}
	admA, _ := r.Admit(ctx, a)
	admB, _ := r.Admit(ctx, b)

	r.InitRoom(ctx, admA.Role, core.RoomState{
		Primary:   core.Profile{Name: "Ann", Lang: "es"},
		Secondary: core.Profile{Name: "Bo", Lang: "hu"},
	})

	name := "Borislav"
	r.PatchProfile(ctx, admB.Role, core.ProfilePatch{Name: &name})

	got := a.lastRoomState(t)
	assert.Equal(t, "Ann", got.Primary.Name, "secondary patch must not touch primary half")
	assert.Equal(t, "Borislav", got.Secondary.Name)
	assert.Equal(t, "hu", got.Secondary.Lang, "absent field must stay")
}

func TestRelayExcludesSender(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 0})
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	admA, _ := r.Admit(ctx, a)
	_, _ = r.Admit(ctx, b)
	_, _ = r.Admit(ctx, c)

	framesA := len(a.frames)
	payload := json.RawMessage(`{"sdp":"v=0 opaque blob"}`)
	r.Relay("signal", payload, admA.ID)

	assert.Len(t, a.frames, framesA, "sender must not receive its own signal")

	var ev core.RelayEvent
	require.NoError(t, json.Unmarshal(b.frames[len(b.frames)-1], &ev))
	assert.Equal(t, "signal", ev.Type)
	assert.JSONEq(t, string(payload), string(ev.Payload))

	require.NoError(t, json.Unmarshal(c.frames[len(c.frames)-1], &ev))
	assert.Equal(t, "signal", ev.Type)
}

func TestAgentStateResetOnEmptyRoom(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a, b := &fakeConn{}, &fakeConn{}
	admA, _ := r.Admit(ctx, a)
	admB, _ := r.Admit(ctx, b)

	r.SetAgentSpeaking(ctx, core.RolePrimary, true)

	var ev core.AgentStateEvent
	require.NoError(t, json.Unmarshal(a.frames[len(a.frames)-1], &ev))
	require.True(t, ev.AgentState.Primary)

	r.Leave(ctx, admA.ID)
	r.Leave(ctx, admB.ID)

	c := &fakeConn{}
	_, err := r.Admit(ctx, c)
	require.NoError(t, err)
	hello := c.lastHello(t)
	assert.Equal(t, core.AgentState{}, hello.AgentState, "agent state must reset when the room empties")
}

func TestRoomStateSurvivesEmptyRoom(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a := &fakeConn{}
	admA, _ := r.Admit(ctx, a)

	state := core.RoomState{
		Primary:   core.Profile{Name: "Ann", Lang: "es"},
		Secondary: core.Profile{Name: "Bo", Lang: "hu"},
	}
	r.InitRoom(ctx, admA.Role, state)
	r.Leave(ctx, admA.ID)

	b := &fakeConn{}
	_, err := r.Admit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, state, b.lastHello(t).RoomState)
}

func TestRoomStateResetOnEmptyWhenConfigured(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2, ResetRoomStateOnEmpty: true})
	a := &fakeConn{}
	admA, _ := r.Admit(ctx, a)

	r.InitRoom(ctx, admA.Role, core.RoomState{
		Primary:   core.Profile{Lang: "es"},
		Secondary: core.Profile{Lang: "hu"},
	})
	r.Leave(ctx, admA.ID)

	b := &fakeConn{}
	_, err := r.Admit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, core.RoomState{}, b.lastHello(t).RoomState)
}

func TestSetAgentSpeakingIgnoresInvalidRole(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a := &fakeConn{}
	_, _ = r.Admit(ctx, a)

	frames := len(a.frames)
	r.SetAgentSpeaking(ctx, core.Role("narrator"), true)
	assert.Len(t, a.frames, frames)
}

func TestBroadcastBestEffort(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 0})
	dead := &fakeConn{fail: true}
	alive := &fakeConn{}
	_, _ = r.Admit(ctx, dead)
	_, _ = r.Admit(ctx, alive)

	before := r.Dropped()
	r.AnnouncePeers()

	assert.Greater(t, r.Dropped(), before, "swallowed sends must be counted")
	var ev core.PeersEvent
	require.NoError(t, json.Unmarshal(alive.frames[len(alive.frames)-1], &ev))
	assert.Equal(t, "peers", ev.Type)
	assert.Equal(t, 2, ev.Count)
}

func TestPeersCountFollowsChurn(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(Options{MaxPeers: 2})
	a, b := &fakeConn{}, &fakeConn{}
	_, _ = r.Admit(ctx, a)
	admB, _ := r.Admit(ctx, b)
	r.Leave(ctx, admB.ID)

	var ev core.PeersEvent
	require.NoError(t, json.Unmarshal(a.frames[len(a.frames)-1], &ev))
	assert.Equal(t, 1, ev.Count)
}
