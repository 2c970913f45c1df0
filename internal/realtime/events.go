// Package realtime derives semantic events from committed writes and
// delivers them to broker channels and websocket subscribers.
package realtime

import (
	"strings"
	"time"

	"livemarket/internal/models"
)

// Channel names.
const (
	GlobalChannel     = "live:rooms"
	roomChannelPrefix = "live:room:"
)

// Event names.
const (
	EventRoomCreated = "room.created"
	EventRoomUpdated = "room.updated"
	EventRoomLive    = "room.live"
	EventRoomEnded   = "room.ended"
	EventRoomStatus  = "room.status"
	EventChatMessage = "chat.message"
	EventChatSystem  = "chat.system"
)

// RoomChannel carries one room's state changes and chat.
func RoomChannel(roomID string) string {
	return roomChannelPrefix + roomID
}

// RoomIDFromChannel is the inverse of RoomChannel.
func RoomIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, roomChannelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, roomChannelPrefix)
	return id, id != ""
}

// Event is a named payload before it is stamped and sent.
type Event struct {
	Name string
	Data interface{}
}

// Envelope is the wire form published on a channel.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	TS    time.Time   `json:"ts"`
}

// Seal stamps e for publishing.
func (e Event) Seal(now time.Time) Envelope {
	return Envelope{Event: e.Name, Data: e.Data, TS: now.UTC()}
}

type RoomPayload struct {
	Room models.Room `json:"room"`
}

type StatusPayload struct {
	From models.RoomStatus `json:"from"`
	To   models.RoomStatus `json:"to"`
	Room models.Room       `json:"room"`
}

type ChatPayload struct {
	RoomID  string             `json:"roomId"`
	Message models.ChatMessage `json:"message"`
}

// RoomEvents derives what a committed room write announces: room.updated
// always, followed by at most one of room.ended, room.live or room.status,
// checked in that order.
func RoomEvents(prev, next models.Room) []Event {
	events := []Event{{Name: EventRoomUpdated, Data: RoomPayload{Room: next}}}

	switch {
	case prev.Status != models.StatusEnded && next.Status == models.StatusEnded:
		events = append(events, Event{Name: EventRoomEnded, Data: RoomPayload{Room: next}})
	case prev.Status != models.StatusLive && next.Status == models.StatusLive:
		events = append(events, Event{Name: EventRoomLive, Data: RoomPayload{Room: next}})
	case prev.Status != next.Status:
		events = append(events, Event{Name: EventRoomStatus, Data: StatusPayload{From: prev.Status, To: next.Status, Room: next}})
	}
	return events
}

// CreatedEvent announces a new room on the global feed.
func CreatedEvent(room models.Room) Event {
	return Event{Name: EventRoomCreated, Data: RoomPayload{Room: room}}
}

// ChatEvent announces an appended message. Viewer chat is chat.message;
// system and event notices are chat.system.
func ChatEvent(msg models.ChatMessage) Event {
	name := EventChatMessage
	if msg.Kind != models.KindUser {
		name = EventChatSystem
	}
	return Event{Name: name, Data: ChatPayload{RoomID: msg.RoomID, Message: msg}}
}
