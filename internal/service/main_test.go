package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livemarket/internal/database"
	"livemarket/internal/models"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db), "Failed to migrate database")
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sent struct {
	channel string
	env     realtime.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, env realtime.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sent{channel: channel, env: env})
	return nil
}

// events returns the event names published on channel, in order.
func (p *recordingPublisher) events(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.sent {
		if s.channel == channel {
			out = append(out, s.env.Event)
		}
	}
	return out
}

func (p *recordingPublisher) envelopes(channel string) []realtime.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Envelope
	for _, s := range p.sent {
		if s.channel == channel {
			out = append(out, s.env)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

// fixture wires real stores on sqlite behind the services.
type fixture struct {
	clock    *testClock
	pub      *recordingPublisher
	fanout   *realtime.Fanout
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	roomSvc  *RoomService
	msgSvc   *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	clock := &testClock{now: epoch}
	pub := &recordingPublisher{}
	fanout := realtime.NewFanout(pub, time.Second)
	rooms := repository.NewRoomRepository(db, clock.Now)
	messages := repository.NewMessageRepository(db, clock.Now)
	return &fixture{
		clock:    clock,
		pub:      pub,
		fanout:   fanout,
		rooms:    rooms,
		messages: messages,
		roomSvc:  NewRoomService(rooms, fanout),
		msgSvc:   NewMessageService(rooms, messages, fanout),
	}
}

// settle waits for in-flight fanout so assertions see every publish.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.fanout.Wait(ctx))
}

func (f *fixture) createRoom(t *testing.T, title string) *models.Room {
	t.Helper()
	room, err := f.roomSvc.Create(context.Background(), models.CreateRoomInput{
		Title:      title,
		Seller:     models.Seller{ID: "s1", Name: "Seller One"},
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	return room
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func statusPtr(s models.RoomStatus) *models.RoomStatus { return &s }

func intPtr(n int) *int { return &n }
