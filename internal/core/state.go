package core

import "strings"

// Profile is one participant's half of the room state.
type Profile struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// RoomState is the durable per-room record holding both profiles.
// The zero value is the state of a room nobody configured yet.
type RoomState struct {
	Primary   Profile `json:"primary"`
	Secondary Profile `json:"secondary"`
}

// Initialized reports whether both languages have been set. Once true,
// init attempts no longer overwrite the record.
func (s RoomState) Initialized() bool {
	return s.Primary.Lang != "" && s.Secondary.Lang != ""
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s RoomState) Trimmed() RoomState {
	return RoomState{
		Primary: Profile{
			Name: strings.TrimSpace(s.Primary.Name),
			Lang: strings.TrimSpace(s.Primary.Lang),
		},
		Secondary: Profile{
			Name: strings.TrimSpace(s.Secondary.Name),
			Lang: strings.TrimSpace(s.Secondary.Lang),
		},
	}
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name *string `json:"name"`
	Lang *string `json:"lang"`
}

// Apply patches the half of the state owned by role. Provided fields are
// trimmed before storing.
func (s *RoomState) Apply(role Role, patch ProfilePatch) {
	p := &s.Primary
	if role == RoleSecondary {
		p = &s.Secondary
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Lang != nil {
		p.Lang = strings.TrimSpace(*patch.Lang)
	}
}

// AgentState tracks whether the translation agent is currently emitting
// audio attributed to each role. The zero value means silence.
type AgentState struct {
	Primary   bool `json:"primary"`
	Secondary bool `json:"secondary"`
}

func (a *AgentState) Set(role Role, speaking bool) {
	switch role {
	case RolePrimary:
		a.Primary = speaking
	case RoleSecondary:
		a.Secondary = speaking
	}
}
