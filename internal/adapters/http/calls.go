package http

import (
	nethttp "net/http"

	"github.com/dkeye/Chorus/internal/app/orch"
	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CallsHandler struct {
	Orch    *orch.Orchestrator
	Guard   SenderGuard
	Limiter *SendLimiter
}

// Get serves ?action=join|leave|poll for userId in roomId.
func (h *CallsHandler) Get(c *gin.Context) {
	user := domain.UserID(c.Query("userId"))
	room := domain.RoomID(c.Query("roomId"))
	if user == "" || room == "" {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "User ID and Room ID required"})
		return
	}
	if err := domain.ValidateUserID(user); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch c.Query("action") {
	case "join":
		h.Orch.JoinCall(room, user)
		h.Guard.Bind(c, user)
		c.JSON(nethttp.StatusOK, gin.H{"success": true})
	case "leave":
		if !h.Guard.AllowSend(c, user) {
			c.JSON(nethttp.StatusForbidden, gin.H{"error": "session is not joined as this user"})
			return
		}
		h.Orch.LeaveCall(room, user)
		h.Guard.Unbind(c, user)
		h.Limiter.Forget(user)
		c.JSON(nethttp.StatusOK, gin.H{"success": true})
	case "poll":
		if !h.Guard.AllowRead(c, string(user)) {
			c.JSON(nethttp.StatusForbidden, gin.H{"error": "session is not joined as this user"})
			return
		}
		c.JSON(nethttp.StatusOK, gin.H{"messages": h.Orch.Poll(user)})
	default:
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}

// Post routes one signaling message.
func (h *CallsHandler) Post(c *gin.Context) {
	var msg core.SignalMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("bad signal json")
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid signaling message"})
		return
	}
	if err := msg.Validate(); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.Guard.AllowSend(c, msg.From) {
		c.JSON(nethttp.StatusForbidden, gin.H{"error": "session is not joined as this user"})
		return
	}
	if !h.Limiter.Allow(msg.From) {
		log.Warn().Str("module", "adapters.http").Str("from", string(msg.From)).Str("type", string(msg.Type)).Msg("signal rate limited")
		c.JSON(nethttp.StatusTooManyRequests, gin.H{"error": "too many signaling messages"})
		return
	}
	if err := h.Orch.Send(msg); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"success": true})
}

func (h *CallsHandler) Members(c *gin.Context) {
	room := domain.RoomID(c.Param("roomId"))
	c.JSON(nethttp.StatusOK, gin.H{"roomId": room, "members": h.Orch.CallMembers(room)})
}

// Rooms lists rooms that currently have call members.
func (h *CallsHandler) Rooms(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"rooms": h.Orch.CallRooms()})
}
