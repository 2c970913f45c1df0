package models

import "time"

// MessageKind distinguishes viewer chat from generated notices.
type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
	KindEvent  MessageKind = "event"
)

func (k MessageKind) Valid() bool {
	return k == KindUser || k == KindSystem || k == KindEvent
}

// Message list limits and text bounds.
const (
	DefaultMessageLimit  = 60
	MaxMessageLimit      = 200
	MaxMessageTextLength = 2000
)

// Author is denormalized onto each message at write time.
type Author struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Handle    string  `json:"handle"`
	AvatarURL *string `json:"avatarUrl"`
	Verified  bool    `json:"verified"`
}

// ChatMessage is an immutable chat log entry scoped to one room.
type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	Kind      MessageKind `json:"kind"`
	Author    *Author     `json:"author"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
}

type AppendMessageInput struct {
	Kind   MessageKind
	Author *Author
	Text   string
}

// MessageQuery pages backwards through a room's log.
type MessageQuery struct {
	Limit  int
	Before *time.Time
}
