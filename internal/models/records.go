package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoomRecord is the persisted shape of a room. Only the repository layer
// touches it; everything else works with Room.
type RoomRecord struct {
	ID                string                      `gorm:"primaryKey;size:96"`
	Title             string                      `gorm:"size:255;not null"`
	Description       string                      `gorm:"type:text;not null;default:''"`
	SellerID          string                      `gorm:"size:128;not null;index"`
	SellerName        string                      `gorm:"size:255;not null"`
	SellerHandle      string                      `gorm:"size:128;not null;default:''"`
	SellerAvatarURL   *string                     `gorm:"size:1024"`
	SellerVerified    bool                        `gorm:"not null;default:false"`
	Status            string                      `gorm:"size:16;not null;index"`
	Visibility        string                      `gorm:"size:16;not null;default:'public'"`
	Viewers           int                         `gorm:"not null;default:0"`
	Category          *string                     `gorm:"size:100;index"`
	Tags              datatypes.JSONSlice[string] `gorm:"not null"`
	CoverURL          *string                     `gorm:"size:1024"`
	PlaybackHLSURL    *string                     `gorm:"column:playback_hls_url;size:1024"`
	PlaybackPosterURL *string                     `gorm:"column:playback_poster_url;size:1024"`
	StartedAt         *time.Time
	EndedAt           *time.Time
	LastHeartbeatAt   *time.Time `gorm:"index"`
	CreatedAt         time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         time.Time  `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the database table name for RoomRecord.
func (RoomRecord) TableName() string {
	return "rooms"
}

// MessageRecord is the persisted shape of a chat message.
type MessageRecord struct {
	ID              string    `gorm:"primaryKey;size:128"`
	RoomID          string    `gorm:"size:96;not null;index:idx_room_messages_room_created,priority:1"`
	Kind            string    `gorm:"size:16;not null"`
	AuthorID        *string   `gorm:"size:128"`
	AuthorName      *string   `gorm:"size:255"`
	AuthorHandle    *string   `gorm:"size:128"`
	AuthorAvatarURL *string   `gorm:"size:1024"`
	AuthorVerified  bool      `gorm:"not null;default:false"`
	Text            string    `gorm:"type:text;not null"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime:false;index:idx_room_messages_room_created,priority:2,sort:desc"`
}

func (MessageRecord) TableName() string {
	return "room_messages"
}

// ToRoom maps a stored row onto the domain type.
func (r RoomRecord) ToRoom() Room {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Room{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Seller: Seller{
			ID:        r.SellerID,
			Name:      r.SellerName,
			Handle:    r.SellerHandle,
			AvatarURL: nonEmpty(r.SellerAvatarURL),
			Verified:  r.SellerVerified,
		},
		Status:     RoomStatus(r.Status),
		Visibility: Visibility(r.Visibility),
		Viewers:    r.Viewers,
		Category:   nonEmpty(r.Category),
		Tags:       tags,
		CoverURL:   nonEmpty(r.CoverURL),
		Playback: Playback{
			HLSURL:    nonEmpty(r.PlaybackHLSURL),
			PosterURL: nonEmpty(r.PlaybackPosterURL),
		},
		StartedAt:       utcPtr(r.StartedAt),
		EndedAt:         utcPtr(r.EndedAt),
		LastHeartbeatAt: utcPtr(r.LastHeartbeatAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// NewRoomRecord maps a domain room onto its stored row.
func NewRoomRecord(room Room) RoomRecord {
	tags := room.Tags
	if tags == nil {
		tags = []string{}
	}
	return RoomRecord{
		ID:                room.ID,
		Title:             room.Title,
		Description:       room.Description,
		SellerID:          room.Seller.ID,
		SellerName:        room.Seller.Name,
		SellerHandle:      room.Seller.Handle,
		SellerAvatarURL:   nonEmpty(room.Seller.AvatarURL),
		SellerVerified:    room.Seller.Verified,
		Status:            string(room.Status),
		Visibility:        string(room.Visibility),
		Viewers:           room.Viewers,
		Category:          nonEmpty(room.Category),
		Tags:              datatypes.JSONSlice[string](tags),
		CoverURL:          nonEmpty(room.CoverURL),
		PlaybackHLSURL:    nonEmpty(room.Playback.HLSURL),
		PlaybackPosterURL: nonEmpty(room.Playback.PosterURL),
		StartedAt:         room.StartedAt,
		EndedAt:           room.EndedAt,
		LastHeartbeatAt:   room.LastHeartbeatAt,
		CreatedAt:         room.CreatedAt,
		UpdatedAt:         room.UpdatedAt,
	}
}

// ToMessage maps a stored row onto the domain type.
func (m MessageRecord) ToMessage() ChatMessage {
	msg := ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Kind:      MessageKind(m.Kind),
		Text:      m.Text,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.AuthorID != nil {
		msg.Author = &Author{
			ID:        *m.AuthorID,
			Name:      deref(m.AuthorName),
			Handle:    deref(m.AuthorHandle),
			AvatarURL: nonEmpty(m.AuthorAvatarURL),
			Verified:  m.AuthorVerified,
		}
	}
	return msg
}

// NewMessageRecord maps a domain message onto its stored row.
func NewMessageRecord(msg ChatMessage) MessageRecord {
	rec := MessageRecord{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Kind:      string(msg.Kind),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
	if a := msg.Author; a != nil {
		rec.AuthorID = &a.ID
		rec.AuthorName = &a.Name
		rec.AuthorHandle = &a.Handle
		rec.AuthorAvatarURL = nonEmpty(a.AvatarURL)
		rec.AuthorVerified = a.Verified
	}
	return rec
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
