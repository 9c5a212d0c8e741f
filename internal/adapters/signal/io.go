package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/room"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drives one connection until it closes or errors; both end in
// the same cleanup path, which removes the connection from its room.
func (ctl *Controller) readPump(
	ctx context.Context,
	cancel context.CancelFunc,
	rm *room.Room,
	adm room.Admission,
	c *wsSignalConn,
) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(adm.ID)).Msg("readPump closing")
		rm.Leave(context.WithoutCancel(ctx), adm.ID)
		c.Close()
		cancel()
	}()

	// Allow a missed ping before giving up on the peer.
	pongWait := ctl.Cfg.PingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("cid", string(adm.ID)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(ctx, rm, adm, data)
		}
	}
}

// handleMessage decodes the envelope and dispatches on the closed message
// set. Non-JSON frames and unknown types die here, silently.
func (ctl *Controller) handleMessage(ctx context.Context, rm *room.Room, adm room.Admission, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("cid", string(adm.ID)).Msg("bad json")
		return
	}

	switch env.Type {
	case core.MsgJoin:
		rm.AnnouncePeers()
	case core.MsgInitRoom:
		ctl.handleInitRoom(ctx, rm, adm.Role, env.Payload)
	case core.MsgProfile:
		ctl.handleProfile(ctx, rm, adm.Role, env.Payload)
	case core.MsgSignal:
		rm.Relay("signal", env.Payload, adm.ID)
	case core.MsgTranscript:
		rm.Relay("transcript", env.Payload, adm.ID)
	case core.MsgAgentSpeaking:
		ctl.handleAgentSpeaking(ctx, rm, env.Payload)
	default:
		log.Debug().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown message type")
	}
}
