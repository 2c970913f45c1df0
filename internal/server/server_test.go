package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"livemarket/internal/bootstrap"
	"livemarket/internal/config"
	"livemarket/internal/database"
	"livemarket/internal/models"
	"livemarket/internal/realtime"
	"livemarket/internal/streaming"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "hook-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, env realtime.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]string)
	}
	p.events[channel] = append(p.events[channel], env.Event)
	return nil
}

func (p *recordingPublisher) on(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events[channel]...)
}

type testServer struct {
	*Server
	app      *fiber.App
	pub      *recordingPublisher
	provider *streaming.DevProvider
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "open sqlite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, configure func(*config.Config)) *testServer {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		Env:             "test",
		RealtimeDriver:  config.RealtimeNone,
		FanoutTimeoutMS: 1000,
	}
	if configure != nil {
		configure(cfg)
	}
	pub := &recordingPublisher{}
	rt := &bootstrap.Realtime{Hub: realtime.NewHub(), Publisher: pub}
	provider := streaming.NewDevProvider("rtmp://ingest.test/live", "https://cdn.test/hls", webhookSecret)

	s, err := NewServerWithDeps(cfg, setupTestDB(t), nil, rt, provider)
	require.NoError(t, err)
	return &testServer{Server: s, app: s.App(), pub: pub, provider: provider}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func (ts *testServer) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.fanout.Wait(ctx))
}

func (ts *testServer) createRoom(t *testing.T, title string) models.Room {
	t.Helper()
	resp, raw := ts.do(t, http.MethodPost, "/api/rooms",
		`{"title":"`+title+`","seller":{"id":"s1","name":"Seller One","handle":"sellerone"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var room models.Room
	require.NoError(t, json.Unmarshal(raw, &room))
	return room
}

func decodeError(t *testing.T, raw []byte) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body
}

func TestRoomRoutes_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Vintage Denim Drop")

	assert.Equal(t, models.StatusStarting, room.Status)
	assert.Equal(t, models.VisibilityPublic, room.Visibility)
	assert.True(t, strings.HasPrefix(room.ID, "vintage-denim-drop-"), room.ID)

	resp, raw := ts.do(t, http.MethodGet, "/api/rooms/"+room.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Room
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, room.ID, got.ID)
	assert.Equal(t, "Seller One", got.Seller.Name)

	resp, raw = ts.do(t, http.MethodGet, "/api/rooms/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decodeError(t, raw).Code)

	ts.settle(t)
	assert.Equal(t, []string{realtime.EventRoomCreated}, ts.pub.on(realtime.GlobalChannel))
}

func TestRoomRoutes_CreateRejectsMissingSeller(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := ts.do(t, http.MethodPost, "/api/rooms", `{"title":"No Seller"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "seller.id", decodeError(t, raw).Field)
}

func TestRoomRoutes_PatchNamesInvalidField(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Sneaker Sunday")

	tests := []struct {
		body  string
		field string
	}{
		{`{"status":"paused"}`, "status"},
		{`{"visibility":"friends"}`, "visibility"},
		{`{"tags":[1,2]}`, "tags"},
		{`{"viewers":-1}`, "viewers"},
		{`{"viewers":5000001}`, "viewers"},
		{`{"playback":{"hlsUrl":42}}`, "playback.hlsUrl"},
	}
	for _, tt := range tests {
		resp, raw := ts.do(t, http.MethodPatch, "/api/rooms/"+room.ID, tt.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.body)
		body := decodeError(t, raw)
		assert.Equal(t, models.CodeValidation, body.Code, tt.body)
		assert.Equal(t, tt.field, body.Field, tt.body)
	}

	resp, _ := ts.do(t, http.MethodPatch, "/api/rooms/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomRoutes_MissingRoomWinsOverBadBody(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPatch, "/api/rooms/missing", `{"status":"paused"}`},
		{http.MethodPatch, "/api/rooms/missing", `not json`},
		{http.MethodPost, "/api/rooms/missing/heartbeat", `{"viewers":-1}`},
		{http.MethodPost, "/api/rooms/missing/messages", `{"text":""}`},
		{http.MethodPost, "/api/rooms/missing/stream/end", `{}`},
	}
	for _, tt := range tests {
		resp, raw := ts.do(t, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tt.method, tt.path)
		assert.Equal(t, models.CodeNotFound, decodeError(t, raw).Code, "%s %s", tt.method, tt.path)
	}
}

func TestRoomRoutes_LiveLifecycle(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Card Breaks")
	path := "/api/rooms/" + room.ID

	resp, raw := ts.do(t, http.MethodPatch, path, `{"status":"live"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var live models.Room
	require.NoError(t, json.Unmarshal(raw, &live))
	require.NotNil(t, live.StartedAt)

	resp, raw = ts.do(t, http.MethodPatch, path, `{"status":"live","viewers":12}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again models.Room
	require.NoError(t, json.Unmarshal(raw, &again))
	assert.True(t, live.StartedAt.Equal(*again.StartedAt), "startedAt is set once")
	assert.Equal(t, 12, again.Viewers)

	resp, raw = ts.do(t, http.MethodPatch, path, `{"status":"ended"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended models.Room
	require.NoError(t, json.Unmarshal(raw, &ended))
	require.NotNil(t, ended.EndedAt)
	assert.True(t, live.StartedAt.Equal(*ended.StartedAt))

	ts.settle(t)
	global := ts.pub.on(realtime.GlobalChannel)
	assert.Contains(t, global, realtime.EventRoomLive)
	assert.Contains(t, global, realtime.EventRoomEnded)
	assert.Contains(t, ts.pub.on(realtime.RoomChannel(room.ID)), realtime.EventRoomLive)
}

func TestRoomRoutes_Heartbeat(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Mystery Box Rips")

	resp, raw := ts.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/heartbeat", `{"status":"live","viewers":99999999}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var got models.Room
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, models.StatusLive, got.Status)
	assert.Equal(t, models.MaxViewers, got.Viewers)
	assert.NotNil(t, got.LastHeartbeatAt)

	resp, raw = ts.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/heartbeat", `{"viewers":"many"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "viewers", decodeError(t, raw).Field)

	resp, _ = ts.do(t, http.MethodPost, "/api/rooms/missing/heartbeat", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomRoutes_ListOrdersLiveFirst(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createRoom(t, "Quiet Room")
	second := ts.createRoom(t, "Busy Room")

	resp, _ := ts.do(t, http.MethodPatch, "/api/rooms/"+second.ID, `{"status":"live","viewers":40}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Rooms []models.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Rooms, 2)
	assert.Equal(t, second.ID, body.Rooms[0].ID)
	assert.Equal(t, first.ID, body.Rooms[1].ID)

	resp, raw = ts.do(t, http.MethodGet, "/api/rooms?status=live", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Rooms, 1)

	resp, raw = ts.do(t, http.MethodGet, "/api/rooms?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "status", decodeError(t, raw).Field)
}

func TestMessageRoutes(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Jewelry Live")
	path := "/api/rooms/" + room.ID + "/messages"

	resp, raw := ts.do(t, http.MethodPost, path, `{"text":"   ","author":{"id":"u1","name":"Buyer"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "text", decodeError(t, raw).Field)

	resp, raw = ts.do(t, http.MethodPost, path, `{"text":" is the ring still available? ","author":{"id":"u1","name":"Buyer"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var msg models.ChatMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "is the ring still available?", msg.Text)
	assert.Equal(t, models.KindUser, msg.Kind)
	assert.Equal(t, room.ID, msg.RoomID)

	resp, raw = ts.do(t, http.MethodGet, path+"?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Messages, 1)
	assert.Equal(t, msg.ID, list.Messages[0].ID)

	resp, _ = ts.do(t, http.MethodGet, "/api/rooms/missing/messages", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/api/rooms/missing/messages", `{"text":"hi","author":{"id":"u1","name":"Buyer"}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ts.settle(t)
	assert.Equal(t, []string{realtime.EventChatMessage}, ts.pub.on(realtime.RoomChannel(room.ID)))
	assert.NotContains(t, ts.pub.on(realtime.GlobalChannel), realtime.EventChatMessage)
}

func TestStreamRoutes_ProvisionHidesSecrets(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Comic Grading")

	resp, raw := ts.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/stream", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	assert.NotContains(t, string(raw), "streamKey")
	assert.NotContains(t, string(raw), "rtmp://")
	assert.NotContains(t, string(raw), "sk_")

	var body struct {
		Room   models.Room            `json:"room"`
		Stream streaming.PublicStream `json:"stream"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.NotNil(t, body.Room.Playback.HLSURL)
	assert.Contains(t, *body.Room.Playback.HLSURL, body.Stream.PlaybackID)

	end := "/api/rooms/" + room.ID + "/stream/end"
	resp, raw = ts.do(t, http.MethodPost, end, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "streamId", decodeError(t, raw).Field)

	resp, raw = ts.do(t, http.MethodPost, end, `{"streamId":"`+body.Stream.StreamID+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var ended models.Room
	require.NoError(t, json.Unmarshal(raw, &ended))
	assert.Equal(t, models.StatusEnded, ended.Status)

	resp, _ = ts.do(t, http.MethodPost, "/api/rooms/missing/stream", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamRoutes_Webhook(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Electronics Clearance")

	payload := []byte(`{"type":"video.live_stream.active","data":{"id":"st_1","playbackId":"pb","passthrough":"` + room.ID + `"}}`)

	resp, _ := ts.do(t, http.MethodPost, "/api/streaming/webhook", string(payload), streaming.SignatureHeader, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodPost, "/api/streaming/webhook", string(payload), streaming.SignatureHeader, ts.provider.Sign(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var got models.Room
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, models.StatusLive, got.Status)

	ignored := bytes.Replace(payload, []byte("live_stream.active"), []byte("asset.ready"), 1)
	resp, _ = ts.do(t, http.MethodPost, "/api/streaming/webhook", string(ignored), streaming.SignatureHeader, ts.provider.Sign(ignored))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	garbage := []byte(`not json`)
	resp, _ = ts.do(t, http.MethodPost, "/api/streaming/webhook", string(garbage), streaming.SignatureHeader, ts.provider.Sign(garbage))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocketRoutes_RequireUpgrade(t *testing.T) {
	ts := newTestServer(t)
	room := ts.createRoom(t, "Beauty Hauls")

	resp, _ := ts.do(t, http.MethodGet, "/api/ws/rooms", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	upgrade := []string{
		"Connection", "Upgrade",
		"Upgrade", "websocket",
		"Sec-WebSocket-Version", "13",
		"Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==",
	}
	resp, _ = ts.do(t, http.MethodGet, "/api/ws/rooms/missing", "", upgrade...)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/ws/rooms/"+room.ID, "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestHealthChecks(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := ts.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "unavailable", body.Checks["redis"])
}

func TestServer_ShutdownDrainsFanout(t *testing.T) {
	ts := newTestServer(t)
	ts.createRoom(t, "Last Call")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.Shutdown(ctx))
	assert.Equal(t, []string{realtime.EventRoomCreated}, ts.pub.on(realtime.GlobalChannel))
}

func TestServer_ShutdownWaitsForSweep(t *testing.T) {
	ts := newTestServerWith(t, func(cfg *config.Config) {
		cfg.HeartbeatSweepEnabled = true
		cfg.HeartbeatTimeoutSeconds = 1
		cfg.HeartbeatSweepIntervalSeconds = 1
	})
	require.NotNil(t, ts.sweeper)
	require.NoError(t, ts.startBackground())
	require.NotNil(t, ts.sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.Shutdown(ctx))

	select {
	case <-ts.sweepDone:
	default:
		t.Fatal("Shutdown returned while the heartbeat sweep was still running")
	}
}
