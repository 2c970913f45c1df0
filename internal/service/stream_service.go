package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"livemarket/internal/models"
	"livemarket/internal/observability"
	"livemarket/internal/streaming"
)

// webhookStatus maps provider callbacks onto room statuses. Types not
// listed are acknowledged and ignored.
var webhookStatus = map[streaming.WebhookType]models.RoomStatus{
	streaming.WebhookActive:       models.StatusLive,
	streaming.WebhookIdle:         models.StatusOffline,
	streaming.WebhookDisconnected: models.StatusOffline,
	streaming.WebhookErrored:      models.StatusError,
	streaming.WebhookDeleted:      models.StatusEnded,
}

var statusNotices = map[models.RoomStatus]string{
	models.StatusLive:  "The seller is live",
	models.StatusEnded: "The stream has ended",
	models.StatusError: "The stream hit a problem",
}

// StreamService connects rooms to the video provider.
type StreamService struct {
	rooms    *RoomService
	messages *MessageService
	provider streaming.Provider
}

func NewStreamService(rooms *RoomService, messages *MessageService, provider streaming.Provider) *StreamService {
	return &StreamService{rooms: rooms, messages: messages, provider: provider}
}

// Provision creates a provider stream for a room and stores its playback URL.
// Only the public half of the asset is returned.
func (s *StreamService) Provision(ctx context.Context, roomID string) (*models.Room, streaming.PublicStream, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, streaming.PublicStream{}, err
	}

	asset, err := s.provider.CreateStream(ctx, streaming.CreateOptions{RoomID: room.ID, Title: room.Title})
	if err != nil {
		return nil, streaming.PublicStream{}, models.NewInternalError(fmt.Errorf("create stream: %w", err))
	}

	playback := asset.PlaybackURL
	updated, err := s.rooms.Patch(ctx, room.ID, models.RoomPatch{HLSURL: &playback})
	if err != nil {
		return nil, streaming.PublicStream{}, err
	}
	return updated, asset.Public(), nil
}

// End stops the provider stream and marks the room ended. A stream
// provisioned for another room is reported as not found.
func (s *StreamService) End(ctx context.Context, roomID, streamID string) (*models.Room, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}
	if err := s.provider.EndStream(ctx, roomID, streamID); err != nil {
		if errors.Is(err, streaming.ErrUnknownStream) {
			return nil, models.NewNotFoundError("Stream", streamID)
		}
		return nil, models.NewInternalError(fmt.Errorf("end stream: %w", err))
	}

	ended := models.StatusEnded
	room, err := s.rooms.Patch(ctx, roomID, models.RoomPatch{Status: &ended})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, room.ID, ended)
	return room, nil
}

// HandleWebhook applies a provider callback as a heartbeat. It returns a nil
// room when the callback was acknowledged without changing anything.
func (s *StreamService) HandleWebhook(ctx context.Context, signature string, body []byte) (*models.Room, error) {
	ev, err := s.provider.ParseWebhook(signature, body)
	if err != nil {
		if errors.Is(err, streaming.ErrMalformedWebhook) {
			return nil, models.NewFieldValidationError("body", err.Error())
		}
		return nil, err
	}

	status, ok := webhookStatus[ev.Type]
	if !ok || ev.RoomID == "" {
		observability.GlobalLogger.DebugContext(ctx, "ignoring stream webhook",
			slog.String("type", string(ev.Type)),
			slog.String("stream_id", ev.StreamID),
		)
		return nil, nil
	}

	change, err := s.rooms.HeartbeatChange(ctx, ev.RoomID, models.Heartbeat{Status: &status})
	if err != nil {
		if models.IsNotFound(err) {
			observability.GlobalLogger.WarnContext(ctx, "stream webhook for unknown room",
				slog.String("room_id", ev.RoomID),
				slog.String("stream_id", ev.StreamID),
			)
			return nil, nil
		}
		return nil, err
	}
	room := &change.Current
	if change.Previous.Status != room.Status {
		s.announce(ctx, room.ID, room.Status)
	}
	return room, nil
}

// announce posts a chat notice for statuses viewers care about. A failure
// here does not undo the status change.
func (s *StreamService) announce(ctx context.Context, roomID string, status models.RoomStatus) {
	text, ok := statusNotices[status]
	if !ok {
		return
	}
	if _, err := s.messages.Announce(ctx, roomID, text); err != nil {
		observability.LogAsyncOperationError(ctx, "stream_notice", err, slog.String("room_id", roomID))
	}
}
