// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// RoomStatus is the authoritative lifecycle state of a room.
type RoomStatus string

const (
	StatusStarting RoomStatus = "starting"
	StatusLive     RoomStatus = "live"
	StatusOffline  RoomStatus = "offline"
	StatusEnded    RoomStatus = "ended"
	StatusError    RoomStatus = "error"
)

// RoomStatuses lists every accepted status in declaration order.
var RoomStatuses = []RoomStatus{StatusStarting, StatusLive, StatusOffline, StatusEnded, StatusError}

// Valid reports whether s is one of the closed set of statuses.
func (s RoomStatus) Valid() bool {
	for _, v := range RoomStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Visibility controls where a room is listed.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

var Visibilities = []Visibility{VisibilityPublic, VisibilityUnlisted, VisibilityPrivate}

func (v Visibility) Valid() bool {
	for _, x := range Visibilities {
		if v == x {
			return true
		}
	}
	return false
}

// MaxViewers caps the reported viewer count.
const MaxViewers = 5_000_000

// Room list limits.
const (
	DefaultRoomLimit = 48
	MaxRoomLimit     = 100
)

// Seller is copied onto the room at creation time.
type Seller struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Handle    string  `json:"handle"`
	AvatarURL *string `json:"avatarUrl"`
	Verified  bool    `json:"verified"`
}

type Playback struct {
	HLSURL    *string `json:"hlsUrl"`
	PosterURL *string `json:"posterUrl"`
}

// Room represents a seller's broadcast session.
type Room struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Seller          Seller     `json:"seller"`
	Status          RoomStatus `json:"status"`
	Visibility      Visibility `json:"visibility"`
	Viewers         int        `json:"viewers"`
	Category        *string    `json:"category"`
	Tags            []string   `json:"tags"`
	CoverURL        *string    `json:"coverUrl"`
	Playback        Playback   `json:"playback"`
	StartedAt       *time.Time `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CreateRoomInput carries the caller-supplied fields of a new room.
type CreateRoomInput struct {
	Title       string
	Description string
	Seller      Seller
	Visibility  Visibility
	Category    *string
	Tags        []string
	CoverURL    *string
	Playback    Playback
}

// RoomPatch is a partial update. Nil fields keep their current value.
// An empty string on an optional field clears it.
type RoomPatch struct {
	Title       *string
	Description *string
	Visibility  *Visibility
	CoverURL    *string
	HLSURL      *string
	PosterURL   *string
	Category    *string
	Tags        *[]string
	Status      *RoomStatus
	Viewers     *int
}

// Heartbeat is the broadcaster's periodic liveness report.
type Heartbeat struct {
	Status  *RoomStatus
	Viewers *int
}

// RoomFilters narrows List. Zero values mean "any".
type RoomFilters struct {
	Status     RoomStatus
	Category   string
	Visibility Visibility
	Limit      int
}

// RoomChange pairs the row before and after a committed write.
type RoomChange struct {
	Previous Room
	Current  Room
}

// RoomCategories are the suggested discovery categories.
var RoomCategories = []string{
	"Trading Cards",
	"Sneakers",
	"Vintage",
	"Collectibles",
	"Beauty",
	"Electronics",
	"Mystery Boxes",
	"Jewelry",
	"Home & Garden",
	"Comics",
}
