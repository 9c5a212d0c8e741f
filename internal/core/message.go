package core

import "encoding/json"

// MessageType is the closed set of inbound message kinds. The dispatch
// switch in the signal adapter enumerates every constant; anything else
// is ignored on the floor.
type MessageType string

const (
	MsgJoin          MessageType = "join"
	MsgInitRoom      MessageType = "init_room"
	MsgProfile       MessageType = "profile"
	MsgSignal        MessageType = "signal"
	MsgTranscript    MessageType = "transcript"
	MsgAgentSpeaking MessageType = "agent_speaking"
)

// Envelope is the outer shape of every inbound frame. Payload stays raw
// until the per-type handler decodes it.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AgentSpeakingPayload names the role the agent is speaking for.
type AgentSpeakingPayload struct {
	TargetRole Role `json:"targetRole"`
	Speaking   bool `json:"speaking"`
}

// Outbound events. Each carries its own type tag so handlers can hand
// them straight to the broadcast engine.

type HelloEvent struct {
	Type       string     `json:"type"`
	ServerID   string     `json:"serverId"`
	ClientID   ConnID     `json:"clientId"`
	Role       Role       `json:"role"`
	RoomState  RoomState  `json:"roomState"`
	AgentState AgentState `json:"agentState"`
}

type PeersEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type RoomStateEvent struct {
	Type      string    `json:"type"`
	RoomState RoomState `json:"roomState"`
}

type AgentStateEvent struct {
	Type       string     `json:"type"`
	AgentState AgentState `json:"agentState"`
}

// RelayEvent wraps an opaque payload bounced to the other participants.
// Used for both "signal" and "transcript"; the payload is never inspected.
type RelayEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
