package service

import (
	"context"

	"livemarket/internal/models"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"
)

// MessageService scopes chat operations to rooms that exist.
type MessageService struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	fanout   *realtime.Fanout
}

func NewMessageService(rooms repository.RoomRepository, messages repository.MessageRepository, fanout *realtime.Fanout) *MessageService {
	return &MessageService{rooms: rooms, messages: messages, fanout: fanout}
}

// Append stores a message and publishes it on the room channel.
func (s *MessageService) Append(ctx context.Context, roomID string, in models.AppendMessageInput) (*models.ChatMessage, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	msg, err := s.messages.Append(ctx, roomID, in)
	if err != nil {
		return nil, err
	}
	s.fanout.ChatAppended(ctx, *msg)
	return msg, nil
}

// Announce appends an event-kind notice without checking the room first.
// Callers hold a room they just wrote.
func (s *MessageService) Announce(ctx context.Context, roomID, text string) (*models.ChatMessage, error) {
	msg, err := s.messages.AppendEvent(ctx, roomID, text)
	if err != nil {
		return nil, err
	}
	s.fanout.ChatAppended(ctx, *msg)
	return msg, nil
}

// List pages backwards through a room's log, oldest first within the page.
func (s *MessageService) List(ctx context.Context, roomID string, q models.MessageQuery) ([]models.ChatMessage, error) {
	if err := s.requireRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, roomID, q)
}

func (s *MessageService) requireRoom(ctx context.Context, roomID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return models.NewNotFoundError("Room", roomID)
	}
	return nil
}
