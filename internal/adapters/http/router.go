package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mgarridos/babel/internal/adapters/signal"
	"github.com/mgarridos/babel/internal/config"
	"github.com/mgarridos/babel/internal/room"
	"github.com/mgarridos/babel/internal/store"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every browser with a stable token so log
// lines from reconnects of the same client correlate.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, rooms *room.Manager, st store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("BabelSessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewController(rooms, cfg)
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	r.GET("/healthz", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("store ping failed")
			c.String(http.StatusServiceUnavailable, "store unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	r.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, rooms.List())
	})

	// Anything else answers plaintext so probes and bare curls see life.
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	log.Info().Str("module", "adapters.http").Str("default_room", cfg.DefaultRoom).Msg("router setup")
	return r
}
