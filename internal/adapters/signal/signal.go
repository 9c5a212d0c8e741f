// Package signal is the WebSocket transport for the room coordinator. It
// upgrades connections, runs the read/write pumps and dispatches inbound
// frames to the room aggregate. It degrades by omission: malformed or
// unauthorized frames are dropped, never answered with an error.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/config"
	"github.com/mgarridos/babel/internal/core"
	"github.com/mgarridos/babel/internal/room"
)

const writeWait = 5 * time.Second

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Controller handles the /ws signaling endpoint.
type Controller struct {
	Rooms *room.Manager
	Cfg   *config.Config
}

func NewController(rooms *room.Manager, cfg *config.Config) *Controller {
	return &Controller{Rooms: rooms, Cfg: cfg}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

// TrySend never blocks: a full send buffer or a closed connection drops
// the frame and reports the failure to the caller.
func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal admits one WebSocket connection into the room named by the
// request's room query parameter (default room when absent).
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	roomName := c.Query("room")
	if roomName == "" {
		roomName = ctl.Cfg.DefaultRoom
	}

	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "Expected websocket")
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)

	rm := ctl.Rooms.GetOrCreate(roomName)
	adm, err := rm.Admit(ctx, conn)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("room", roomName).
			Str("sid", c.GetString("client_token")).Msg("admission rejected")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		cancel()
		return
	}

	log.Info().Str("module", "signal").Str("room", roomName).
		Str("sid", c.GetString("client_token")).Str("cid", string(adm.ID)).
		Str("role", string(adm.Role)).Msg("new WS connection")

	go ctl.readPump(ctx, cancel, rm, adm, conn)
}
