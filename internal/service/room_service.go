// Package service orchestrates the stores, the transition policy and the
// realtime fanout. Writes commit first; fanout runs after and never fails a call.
package service

import (
	"context"

	"livemarket/internal/models"
	"livemarket/internal/observability"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"
)

type RoomService struct {
	rooms  repository.RoomRepository
	fanout *realtime.Fanout
}

func NewRoomService(rooms repository.RoomRepository, fanout *realtime.Fanout) *RoomService {
	return &RoomService{rooms: rooms, fanout: fanout}
}

func (s *RoomService) Create(ctx context.Context, in models.CreateRoomInput) (*models.Room, error) {
	room, err := s.rooms.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.fanout.RoomCreated(ctx, *room)
	return room, nil
}

// Get returns the room or a NotFound error.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, models.NewNotFoundError("Room", id)
	}
	return room, nil
}

func (s *RoomService) List(ctx context.Context, filters models.RoomFilters) ([]models.Room, error) {
	return s.rooms.List(ctx, filters)
}

// Patch applies a partial update and announces it.
func (s *RoomService) Patch(ctx context.Context, id string, patch models.RoomPatch) (*models.Room, error) {
	change, err := s.rooms.Patch(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, models.NewNotFoundError("Room", id)
	}
	s.committed(ctx, *change)
	return &change.Current, nil
}

// Heartbeat records a broadcaster liveness report and announces it.
func (s *RoomService) Heartbeat(ctx context.Context, id string, hb models.Heartbeat) (*models.Room, error) {
	change, err := s.HeartbeatChange(ctx, id, hb)
	if err != nil {
		return nil, err
	}
	return &change.Current, nil
}

// HeartbeatChange is Heartbeat returning both sides of the write. Previous
// is the state the write replaced under the row lock.
func (s *RoomService) HeartbeatChange(ctx context.Context, id string, hb models.Heartbeat) (*models.RoomChange, error) {
	change, err := s.rooms.Heartbeat(ctx, id, hb)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, models.NewNotFoundError("Room", id)
	}
	observability.RoomHeartbeats.Inc()
	s.committed(ctx, *change)
	return change, nil
}

func (s *RoomService) committed(ctx context.Context, change models.RoomChange) {
	recordTransition(change)
	s.fanout.RoomChanged(ctx, change)
}

func recordTransition(change models.RoomChange) {
	from, to := change.Previous.Status, change.Current.Status
	if from != to {
		observability.RoomTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
}
