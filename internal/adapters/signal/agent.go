package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/room"
)

// handleAgentSpeaking merges one role's "agent is emitting audio" flag.
// Either participant may flip either flag; a payload naming anything but
// a known role is ignored.
func (ctl *Controller) handleAgentSpeaking(ctx context.Context, rm *room.Room, payload json.RawMessage) {
	var p core.AgentSpeakingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad agent_speaking payload")
		return
	}
	rm.SetAgentSpeaking(ctx, p.TargetRole, p.Speaking)
}
