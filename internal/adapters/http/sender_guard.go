package http

import (
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionCallUser = "call_user"

// SenderGuard binds a cookie session to the user id it joined a call as.
// With Strict off the binding is recorded but never enforced.
type SenderGuard struct {
	Strict bool
}

func (g SenderGuard) Bind(c *gin.Context, user domain.UserID) {
	s := sessions.Default(c)
	s.Set(sessionCallUser, string(user))
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("user_id", string(user)).Msg("session save")
	}
}

func (g SenderGuard) Unbind(c *gin.Context, user domain.UserID) {
	s := sessions.Default(c)
	if bound, _ := s.Get(sessionCallUser).(string); bound != string(user) {
		return
	}
	s.Delete(sessionCallUser)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("user_id", string(user)).Msg("session save")
	}
}

// AllowSend reports whether the session may act as from.
func (g SenderGuard) AllowSend(c *gin.Context, from domain.UserID) bool {
	if !g.Strict {
		return true
	}
	bound, _ := sessions.Default(c).Get(sessionCallUser).(string)
	if bound == "" || bound != string(from) {
		log.Warn().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Str("from", string(from)).Str("bound", bound).Msg("sender mismatch")
		return false
	}
	return true
}

// AllowRead reports whether the session may drain user's queue.
func (g SenderGuard) AllowRead(c *gin.Context, user string) bool {
	return g.AllowSend(c, domain.UserID(user))
}
