package http

import (
	"context"
	nethttp "net/http"

	"github.com/dkeye/Chorus/internal/adapters/signal"
	"github.com/dkeye/Chorus/internal/app/orch"
	"github.com/dkeye/Chorus/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

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

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ChorusSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Bool("strict_sender", cfg.Signaling.StrictSender).Msg("router setup")

	calls := &CallsHandler{
		Orch:    o,
		Guard:   SenderGuard{Strict: cfg.Signaling.StrictSender},
		Limiter: NewSendLimiter(cfg.Signaling.SendRate, cfg.Signaling.SendBurst),
	}
	stream := signal.NewStreamController(o, signal.StreamOptions{
		PushInterval: cfg.Signaling.PushInterval,
		ReadLimit:    cfg.Signaling.ReadLimit,
		PingPeriod:   cfg.Signaling.PingPeriod,
	})
	rooms := &RoomsHandler{Orch: o}

	api := r.Group("/api")

	api.GET("/health", Health)

	api.GET("/calls", calls.Get)
	api.POST("/calls", calls.Post)
	api.GET("/calls/rooms", calls.Rooms)
	api.GET("/calls/:roomId/members", calls.Members)
	api.GET("/calls/stream", func(c *gin.Context) {
		user := c.Query("userId")
		if !calls.Guard.AllowRead(c, user) {
			c.JSON(nethttp.StatusForbidden, gin.H{"error": "session is not joined as this user"})
			return
		}
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Str("user_id", user).Msg("call stream endpoint hit")
		stream.HandleStream(ctx, c)
	})

	api.GET("/rooms", rooms.List)
	api.POST("/rooms", rooms.Create)
	api.POST("/rooms/:roomId/join", rooms.Join)
	api.GET("/rooms/:roomId/participants", rooms.Participants)

	return r
}
