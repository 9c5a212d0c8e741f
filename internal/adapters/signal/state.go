package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/room"
)

// handleInitRoom applies the primary's one-time room configuration. The
// room enforces the role and idempotency rules; a non-primary sender or a
// second init just re-broadcasts the stored state.
func (ctl *Controller) handleInitRoom(ctx context.Context, rm *room.Room, role core.Role, payload json.RawMessage) {
	var proposed core.RoomState
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &proposed); err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("bad init_room payload")
			return
		}
	}
	rm.InitRoom(ctx, role, proposed)
}

func (ctl *Controller) handleProfile(ctx context.Context, rm *room.Room, role core.Role, payload json.RawMessage) {
	var patch core.ProfilePatch
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &patch); err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("bad profile payload")
			return
		}
	}
	rm.PatchProfile(ctx, role, patch)
}
