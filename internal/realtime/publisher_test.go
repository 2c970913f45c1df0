package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"livemarket/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisPublisher_NilClientIsNoop(t *testing.T) {
	p := NewRedisPublisher(nil)
	env := CreatedEvent(roomWith(models.StatusStarting)).Seal(time.Now())
	assert.NoError(t, p.Publish(context.Background(), GlobalChannel, env))
	assert.NoError(t, p.StartSubscriber(context.Background(), func(string, string) {}))
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	rdb := setupRedis(t)
	p := NewRedisPublisher(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct{ channel, payload string }
	got := make(chan delivery, 4)
	require.NoError(t, p.StartSubscriber(ctx, func(channel, payload string) {
		got <- delivery{channel, payload}
	}))

	room := roomWith(models.StatusLive)
	env := RoomEvents(roomWith(models.StatusStarting), room)[1].Seal(time.Now())
	require.NoError(t, p.Publish(context.Background(), RoomChannel(room.ID), env))
	require.NoError(t, p.Publish(context.Background(), "unrelated:channel", env))

	select {
	case d := <-got:
		assert.Equal(t, RoomChannel(room.ID), d.channel)
		var decoded struct {
			Event string      `json:"event"`
			Data  RoomPayload `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(d.payload), &decoded))
		assert.Equal(t, EventRoomLive, decoded.Event)
		assert.Equal(t, room.ID, decoded.Data.Room.ID)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("message was not delivered")
	}

	assert.Never(t, func() bool { return len(got) > 0 }, 100*time.Millisecond, testPollInterval)
}

func TestRedisPublisher_SubscriberStopsOnCancel(t *testing.T) {
	rdb := setupRedis(t)
	p := NewRedisPublisher(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	payloads := make(chan string, 4)
	require.NoError(t, p.StartSubscriber(ctx, func(_ string, payload string) { payloads <- payload }))

	env := CreatedEvent(roomWith(models.StatusStarting)).Seal(time.Now())
	require.NoError(t, p.Publish(context.Background(), GlobalChannel, env))
	assert.Eventually(t, func() bool { return len(payloads) == 1 }, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)
	<-payloads

	require.NoError(t, p.Publish(context.Background(), GlobalChannel, env))
	assert.Never(t, func() bool { return len(payloads) > 0 }, 200*time.Millisecond, testPollInterval)
}

func TestRedisPublisher_PublishError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = rdb.Close() }()
	mr.Close()

	p := NewRedisPublisher(rdb)
	env := CreatedEvent(roomWith(models.StatusStarting)).Seal(time.Now())
	assert.Error(t, p.Publish(context.Background(), GlobalChannel, env))
}

func TestMulti(t *testing.T) {
	a := &recordingPublisher{}
	boom := errors.New("boom")
	failing := PublisherFunc(func(context.Context, string, Envelope) error { return boom })
	b := &recordingPublisher{}

	m := Multi(a, nil, failing, b)
	env := CreatedEvent(roomWith(models.StatusStarting)).Seal(time.Now())
	err := m.Publish(context.Background(), GlobalChannel, env)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{EventRoomCreated}, a.on(GlobalChannel))
	assert.Equal(t, []string{EventRoomCreated}, b.on(GlobalChannel), "a failure does not stop later publishers")
}

func TestChannelToTopicAndKey(t *testing.T) {
	tests := []struct {
		channel string
		topic   string
		key     string
		wantErr bool
	}{
		{GlobalChannel, "lm-rooms", "", false},
		{RoomChannel("abc-1"), "lm-room-events", "abc-1", false},
		{"live:room:", "", "", true},
		{"chat:conv:1", "", "", true},
	}
	for _, tt := range tests {
		topic, key, err := channelToTopicAndKey("lm", tt.channel)
		if tt.wantErr {
			assert.Error(t, err, tt.channel)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.topic, topic)
		assert.Equal(t, tt.key, key)
	}

	topic, _, err := channelToTopicAndKey("", GlobalChannel)
	require.NoError(t, err)
	assert.Equal(t, "livemarket-rooms", topic)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{})
	assert.Error(t, err)
}
