package lifecycle

import (
	"math"
	"testing"
	"time"

	"livemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func baseRoom() models.Room {
	cat := "Sneakers"
	return models.Room{
		ID:          "mystery-box-abc",
		Title:       "Mystery Box",
		Description: "rips all night",
		Seller:      models.Seller{ID: "s1", Name: "Seller One"},
		Status:      models.StatusStarting,
		Visibility:  models.VisibilityPublic,
		Category:    &cat,
		Tags:        []string{"boxes"},
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func status(s models.RoomStatus) *models.RoomStatus { return &s }
func intp(n int) *int                                { return &n }
func strp(s string) *string                          { return &s }

func TestClampViewers(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-1, 0},
		{math.MinInt, 0},
		{0, 0},
		{42, 42},
		{models.MaxViewers, models.MaxViewers},
		{models.MaxViewers + 1, models.MaxViewers},
		{math.MaxInt, models.MaxViewers},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampViewers(tt.in), "input %d", tt.in)
	}
}

func TestApplyPatch_PartialUpdate(t *testing.T) {
	cur := baseRoom()
	now := t0.Add(time.Minute)

	next := ApplyPatch(cur, models.RoomPatch{Title: strp("  New Title ")}, now)

	assert.Equal(t, "New Title", next.Title)
	assert.Equal(t, cur.Description, next.Description)
	assert.Equal(t, cur.Category, next.Category)
	assert.Equal(t, cur.Tags, next.Tags)
	assert.Equal(t, cur.Status, next.Status)
	assert.Equal(t, now, next.UpdatedAt)
	assert.Nil(t, next.StartedAt)
	assert.Equal(t, t0, cur.UpdatedAt, "current must not be mutated")
}

func TestApplyPatch_EmptyStringClearsOptionalFields(t *testing.T) {
	cur := baseRoom()
	cur.CoverURL = strp("https://cdn.example/cover.jpg")

	next := ApplyPatch(cur, models.RoomPatch{CoverURL: strp(""), Category: strp(""), HLSURL: strp("https://hls/x.m3u8")}, t0)

	assert.Nil(t, next.CoverURL)
	assert.Nil(t, next.Category)
	require.NotNil(t, next.Playback.HLSURL)
	assert.Equal(t, "https://hls/x.m3u8", *next.Playback.HLSURL)
}

func TestApplyPatch_TagsAreCopied(t *testing.T) {
	cur := baseRoom()
	tags := []string{"a", "b"}

	next := ApplyPatch(cur, models.RoomPatch{Tags: &tags}, t0)
	tags[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, next.Tags)
	assert.Equal(t, []string{"boxes"}, cur.Tags)
}

func TestApplyPatch_StatusTransitions(t *testing.T) {
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)
	t3 := t0.Add(3 * time.Minute)

	live := ApplyPatch(baseRoom(), models.RoomPatch{Status: status(models.StatusLive)}, t1)
	require.NotNil(t, live.StartedAt)
	assert.Equal(t, t1, *live.StartedAt)
	assert.Nil(t, live.EndedAt)

	again := ApplyPatch(live, models.RoomPatch{Status: status(models.StatusLive)}, t2)
	assert.Equal(t, t1, *again.StartedAt, "repeated live keeps the first start")
	assert.Equal(t, t2, again.UpdatedAt)

	offline := ApplyPatch(again, models.RoomPatch{Status: status(models.StatusOffline)}, t2)
	relive := ApplyPatch(offline, models.RoomPatch{Status: status(models.StatusLive)}, t3)
	assert.Equal(t, t1, *relive.StartedAt, "re-entering live keeps the first start")

	ended := ApplyPatch(relive, models.RoomPatch{Status: status(models.StatusEnded)}, t3)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, t3, *ended.EndedAt)

	endedAgain := ApplyPatch(ended, models.RoomPatch{Status: status(models.StatusEnded)}, t3.Add(time.Hour))
	assert.Equal(t, t3, *endedAgain.EndedAt)
}

func TestApplyPatch_OtherTransitionsLeaveTimestamps(t *testing.T) {
	cur := baseRoom()
	for _, s := range []models.RoomStatus{models.StatusOffline, models.StatusError, models.StatusStarting} {
		next := ApplyPatch(cur, models.RoomPatch{Status: status(s)}, t0.Add(time.Second))
		assert.Equal(t, s, next.Status)
		assert.Nil(t, next.StartedAt, "status %s", s)
		assert.Nil(t, next.EndedAt, "status %s", s)
	}
}

func TestApplyPatch_ViewersClamped(t *testing.T) {
	cur := baseRoom()
	assert.Equal(t, 0, ApplyPatch(cur, models.RoomPatch{Viewers: intp(-50)}, t0).Viewers)
	assert.Equal(t, models.MaxViewers, ApplyPatch(cur, models.RoomPatch{Viewers: intp(math.MaxInt32)}, t0).Viewers)
}

func TestApplyHeartbeat(t *testing.T) {
	cur := baseRoom()
	now := t0.Add(15 * time.Second)

	next := ApplyHeartbeat(cur, models.Heartbeat{Status: status(models.StatusLive), Viewers: intp(7_000_000)}, now)

	assert.Equal(t, models.StatusLive, next.Status)
	assert.Equal(t, models.MaxViewers, next.Viewers)
	require.NotNil(t, next.StartedAt)
	assert.Equal(t, now, *next.StartedAt)
	require.NotNil(t, next.LastHeartbeatAt)
	assert.Equal(t, now, *next.LastHeartbeatAt)
	assert.Equal(t, now, next.UpdatedAt)

	assert.Equal(t, cur.Title, next.Title)
	assert.Equal(t, cur.Category, next.Category)
	assert.Equal(t, cur.Tags, next.Tags)
}

func TestApplyHeartbeat_EmptyStillStamps(t *testing.T) {
	cur := baseRoom()
	cur.Viewers = 12
	now := t0.Add(time.Second)

	next := ApplyHeartbeat(cur, models.Heartbeat{}, now)

	assert.Equal(t, 12, next.Viewers)
	assert.Equal(t, models.StatusStarting, next.Status)
	assert.Equal(t, now, *next.LastHeartbeatAt)
}

func TestIsStale(t *testing.T) {
	timeout := time.Minute
	beat := t0

	live := baseRoom()
	live.Status = models.StatusLive
	live.LastHeartbeatAt = &beat

	assert.False(t, IsStale(live, timeout, t0.Add(30*time.Second)))
	assert.True(t, IsStale(live, timeout, t0.Add(2*time.Minute)))

	quiet := baseRoom()
	assert.True(t, IsStale(quiet, timeout, t0.Add(2*time.Minute)), "falls back to UpdatedAt")

	ended := live
	ended.Status = models.StatusEnded
	assert.False(t, IsStale(ended, timeout, t0.Add(time.Hour)))
}

func TestExpireStale(t *testing.T) {
	cur := baseRoom()
	cur.Status = models.StatusLive
	started := t0
	cur.StartedAt = &started
	now := t0.Add(time.Hour)

	next := ExpireStale(cur, now)

	assert.Equal(t, models.StatusOffline, next.Status)
	assert.Equal(t, t0, *next.StartedAt)
	assert.Nil(t, next.LastHeartbeatAt)
	assert.Equal(t, now, next.UpdatedAt)
}
