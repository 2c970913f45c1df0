// Package streaming abstracts the video provider that ingests a seller's
// broadcast and serves HLS playback.
package streaming

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownStream is returned when the provider has no record of a stream id.
	ErrUnknownStream = errors.New("streaming: unknown stream")
	// ErrInvalidSignature is returned when a webhook fails verification.
	ErrInvalidSignature = errors.New("streaming: invalid webhook signature")
	// ErrMalformedWebhook is returned when a webhook body cannot be decoded.
	ErrMalformedWebhook = errors.New("streaming: malformed webhook payload")
)

// CreateOptions describes the stream to provision.
type CreateOptions struct {
	RoomID string
	Title  string
}

// StreamAsset is everything the provider returns for a new stream. IngestURL
// and StreamKey are broadcaster secrets and never leave the server.
type StreamAsset struct {
	RoomID      string
	StreamID    string
	PlaybackID  string
	PlaybackURL string
	IngestURL   string
	StreamKey   string
}

// PublicStream is the part of a StreamAsset safe to return to clients.
type PublicStream struct {
	StreamID   string `json:"streamId"`
	PlaybackID string `json:"playbackId"`
}

func (a StreamAsset) Public() PublicStream {
	return PublicStream{StreamID: a.StreamID, PlaybackID: a.PlaybackID}
}

// WebhookType is the normalized provider event.
type WebhookType string

const (
	WebhookActive       WebhookType = "active"
	WebhookIdle         WebhookType = "idle"
	WebhookDisconnected WebhookType = "disconnected"
	WebhookErrored      WebhookType = "errored"
	WebhookDeleted      WebhookType = "deleted"
)

// WebhookEvent is a decoded provider callback. RoomID comes from the
// passthrough value set at creation and may be empty.
type WebhookEvent struct {
	Type       WebhookType
	StreamID   string
	PlaybackID string
	RoomID     string
}

// NormalizeWebhookType strips provider namespaces, so
// "video.live_stream.active" becomes "active".
func NormalizeWebhookType(raw string) WebhookType {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.LastIndexByte(raw, '.'); i >= 0 {
		raw = raw[i+1:]
	}
	return WebhookType(raw)
}

// Provider provisions and tears down ingest streams and decodes their callbacks.
type Provider interface {
	CreateStream(ctx context.Context, opts CreateOptions) (StreamAsset, error)
	// EndStream stops a stream provisioned for roomID. A stream that is
	// unknown or belongs to another room yields ErrUnknownStream.
	EndStream(ctx context.Context, roomID, streamID string) error
	ParseWebhook(signature string, body []byte) (WebhookEvent, error)
}
