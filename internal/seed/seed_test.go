package seed

import (
	"context"
	"testing"

	"livemarket/internal/database"
	"livemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestComputeCounts_Default(t *testing.T) {
	live, ended, starting := computeCounts(10, defaultMix)
	if live+ended+starting != 10 {
		t.Fatalf("sum mismatch: got %d", live+ended+starting)
	}
	if live != 5 || ended != 2 || starting != 3 {
		t.Fatalf("unexpected default counts: live=%d, ended=%d, starting=%d", live, ended, starting)
	}
}

func TestComputeCounts_Overfull(t *testing.T) {
	live, ended, starting := computeCounts(3, StatusMix{Live: 90, Ended: 90})
	if live != 3 || ended != 0 || starting != 0 {
		t.Fatalf("unexpected counts: live=%d, ended=%d, starting=%d", live, ended, starting)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestSeed_CreatesRoomsAndChat(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sum, err := Seed(ctx, db, Options{NumRooms: 4, MessagesPerRoom: 3, Mix: StatusMix{Live: 50, Ended: 25}, RandSeed: 42})
	require.NoError(t, err)
	assert.Equal(t, Summary{Rooms: 4, Live: 2, Ended: 1, Messages: 16}, sum)

	var live []models.RoomRecord
	require.NoError(t, db.Where("status = ?", models.StatusLive).Find(&live).Error)
	require.Len(t, live, 2)
	for _, r := range live {
		assert.NotNil(t, r.StartedAt)
		assert.NotNil(t, r.LastHeartbeatAt)
	}

	var system int64
	require.NoError(t, db.Model(&models.MessageRecord{}).Where("kind = ?", models.KindSystem).Count(&system).Error)
	assert.EqualValues(t, 4, system)

	sum, err = Seed(ctx, db, Options{NumRooms: 1, ShouldClean: true, RandSeed: 7})
	require.NoError(t, err)
	var rooms int64
	require.NoError(t, db.Model(&models.RoomRecord{}).Count(&rooms).Error)
	assert.EqualValues(t, 1, rooms)
	assert.Equal(t, 1, sum.Live)
}
