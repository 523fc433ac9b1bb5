package http

import (
	"errors"
	nethttp "net/http"
	"time"

	"github.com/dkeye/Chorus/internal/app/orch"
	"github.com/dkeye/Chorus/internal/app/roster"
	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/gin-gonic/gin"
)

type RoomsHandler struct {
	Orch *orch.Orchestrator
}

type createRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	IsPrivate       bool   `json:"isPrivate"`
	MaxParticipants int    `json:"maxParticipants"`
	CreatedBy       string `json:"createdById"`
}

func (h *RoomsHandler) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid room payload"})
		return
	}
	room, err := h.Orch.CreateRoom(core.RoomDraft{
		Name:            domain.RoomName(req.Name),
		Description:     req.Description,
		IsPrivate:       req.IsPrivate,
		MaxParticipants: req.MaxParticipants,
		CreatedBy:       domain.UserID(req.CreatedBy),
	})
	if err != nil {
		writeRosterError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, room)
}

func (h *RoomsHandler) List(c *gin.Context) {
	c.JSON(nethttp.StatusOK, h.Orch.Rooms(domain.UserID(c.Query("userId"))))
}

func (h *RoomsHandler) Join(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}
	p, err := h.Orch.JoinRoom(domain.RoomID(c.Param("roomId")), domain.UserID(req.UserID))
	if err != nil {
		writeRosterError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, p)
}

func (h *RoomsHandler) Participants(c *gin.Context) {
	ps, err := h.Orch.RoomParticipants(domain.RoomID(c.Param("roomId")))
	if err != nil {
		writeRosterError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, ps)
}

func writeRosterError(c *gin.Context, err error) {
	status := nethttp.StatusInternalServerError
	switch {
	case errors.Is(err, roster.ErrRoomNameEmpty),
		errors.Is(err, domain.ErrUserIDEmpty),
		errors.Is(err, domain.ErrUserIDTooLong):
		status = nethttp.StatusBadRequest
	case errors.Is(err, roster.ErrRoomNotFound):
		status = nethttp.StatusNotFound
	case errors.Is(err, roster.ErrAlreadyMember):
		status = nethttp.StatusConflict
	case errors.Is(err, roster.ErrRoomFull):
		status = nethttp.StatusForbidden
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func Health(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "chorus",
	})
}
