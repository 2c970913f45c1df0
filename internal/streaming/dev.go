package streaming

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Webhook-Signature"

// DevProvider is an in-process provider for local development and tests.
// It mints ids, builds URLs from configuration and remembers which streams
// are open.
type DevProvider struct {
	ingestURL       string
	playbackBaseURL string
	webhookSecret   []byte

	mu      sync.Mutex
	streams map[string]StreamAsset
}

// NewDevProvider builds a provider. An empty secret disables webhook verification.
func NewDevProvider(ingestURL, playbackBaseURL, webhookSecret string) *DevProvider {
	return &DevProvider{
		ingestURL:       strings.TrimRight(ingestURL, "/"),
		playbackBaseURL: strings.TrimRight(playbackBaseURL, "/"),
		webhookSecret:   []byte(webhookSecret),
		streams:         make(map[string]StreamAsset),
	}
}

func (p *DevProvider) CreateStream(ctx context.Context, opts CreateOptions) (StreamAsset, error) {
	if err := ctx.Err(); err != nil {
		return StreamAsset{}, err
	}
	playbackID := strings.ReplaceAll(uuid.NewString(), "-", "")
	asset := StreamAsset{
		RoomID:      opts.RoomID,
		StreamID:    "st_" + uuid.NewString(),
		PlaybackID:  playbackID,
		PlaybackURL: fmt.Sprintf("%s/%s.m3u8", p.playbackBaseURL, playbackID),
		IngestURL:   p.ingestURL,
		StreamKey:   "sk_" + uuid.NewString()[:16],
	}

	p.mu.Lock()
	p.streams[asset.StreamID] = asset
	p.mu.Unlock()
	return asset, nil
}

func (p *DevProvider) EndStream(ctx context.Context, roomID, streamID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	asset, ok := p.streams[streamID]
	if !ok || asset.RoomID != roomID {
		return fmt.Errorf("%w: %s", ErrUnknownStream, streamID)
	}
	delete(p.streams, streamID)
	return nil
}

type devWebhook struct {
	Type string `json:"type"`
	Data struct {
		ID          string `json:"id"`
		PlaybackID  string `json:"playbackId"`
		Passthrough string `json:"passthrough"`
	} `json:"data"`
}

func (p *DevProvider) ParseWebhook(signature string, body []byte) (WebhookEvent, error) {
	if len(p.webhookSecret) > 0 && !p.validSignature(signature, body) {
		return WebhookEvent{}, ErrInvalidSignature
	}
	var hook devWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if hook.Type == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing type", ErrMalformedWebhook)
	}
	return WebhookEvent{
		Type:       NormalizeWebhookType(hook.Type),
		StreamID:   hook.Data.ID,
		PlaybackID: hook.Data.PlaybackID,
		RoomID:     strings.TrimSpace(hook.Data.Passthrough),
	}, nil
}

// Sign returns the signature a caller must send for body.
func (p *DevProvider) Sign(body []byte) string {
	mac := hmac.New(sha256.New, p.webhookSecret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *DevProvider) validSignature(signature string, body []byte) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(p.Sign(body))
	return hmac.Equal(got, want)
}
