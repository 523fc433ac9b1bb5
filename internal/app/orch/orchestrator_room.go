package orch

import (
	"github.com/dkeye/Chorus/internal/core"
	"github.com/dkeye/Chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) CreateRoom(d core.RoomDraft) (domain.Room, error) {
	room, err := o.Roster.Create(d)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("name", string(d.Name)).Msg("create room rejected")
		return domain.Room{}, err
	}
	return room, nil
}

func (o *Orchestrator) Rooms(user domain.UserID) []domain.Room {
	return o.Roster.List(user)
}

func (o *Orchestrator) JoinRoom(id domain.RoomID, user domain.UserID) (domain.RoomParticipant, error) {
	p, err := o.Roster.Join(id, user)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room_id", string(id)).Str("user_id", string(user)).Msg("join room rejected")
		return domain.RoomParticipant{}, err
	}
	return p, nil
}

func (o *Orchestrator) RoomParticipants(id domain.RoomID) ([]domain.RoomParticipant, error) {
	return o.Roster.Participants(id)
}
