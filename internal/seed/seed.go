// Package seed fills the database with demo rooms and chat for local
// development.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"livemarket/internal/middleware"
	"livemarket/internal/models"
	"livemarket/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumRooms        int
	MessagesPerRoom int
	Mix             StatusMix
	ShouldClean     bool
	// RandSeed makes runs reproducible; zero picks a random seed.
	RandSeed int64
}

// StatusMix is the share of seeded rooms left in each status, in percent.
// The remainder stays starting.
type StatusMix struct {
	Live  int
	Ended int
}

var defaultMix = StatusMix{Live: 50, Ended: 20}

// Summary counts what a run created.
type Summary struct {
	Rooms    int
	Live     int
	Ended    int
	Messages int
}

var titleCase = cases.Title(language.English)

var welcomeLines = []string{
	"Welcome in! Drop a hello in chat.",
	"Giveaway at 100 viewers, tell your friends.",
	"Shipping is free on every win tonight.",
}

// computeCounts splits n rooms by mix. Rounding favors live rooms.
func computeCounts(n int, mix StatusMix) (live, ended, starting int) {
	if n <= 0 {
		return 0, 0, 0
	}
	live = (n*mix.Live + 50) / 100
	ended = n * mix.Ended / 100
	if live+ended > n {
		ended = n - live
	}
	return live, ended, n - live - ended
}

// Seed populates the database with demo rooms and chat through the stores.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var sum Summary
	if opts.NumRooms <= 0 {
		return sum, nil
	}
	if opts.Mix == (StatusMix{}) {
		opts.Mix = defaultMix
	}

	if opts.ShouldClean {
		if err := clearData(ctx, db); err != nil {
			return sum, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	faker := gofakeit.New(opts.RandSeed)
	rooms := repository.NewRoomRepository(db, nil)
	messages := repository.NewMessageRepository(db, nil)

	live, ended, _ := computeCounts(opts.NumRooms, opts.Mix)
	for i := 0; i < opts.NumRooms; i++ {
		room, err := rooms.Create(ctx, fakeRoom(faker))
		if err != nil {
			return sum, fmt.Errorf("failed to create room: %w", err)
		}
		sum.Rooms++

		if _, err := messages.AppendSystem(ctx, room.ID, faker.RandomString(welcomeLines)); err != nil {
			return sum, fmt.Errorf("failed to add welcome message: %w", err)
		}
		sum.Messages++

		switch {
		case i < live:
			viewers := faker.Number(3, 2500)
			status := models.StatusLive
			if _, err := rooms.Heartbeat(ctx, room.ID, models.Heartbeat{Status: &status, Viewers: &viewers}); err != nil {
				return sum, fmt.Errorf("failed to start room %s: %w", room.ID, err)
			}
			sum.Live++
		case i < live+ended:
			status := models.StatusEnded
			if _, err := rooms.Patch(ctx, room.ID, models.RoomPatch{Status: &status}); err != nil {
				return sum, fmt.Errorf("failed to end room %s: %w", room.ID, err)
			}
			sum.Ended++
		}

		for j := 0; j < opts.MessagesPerRoom; j++ {
			if _, err := messages.Append(ctx, room.ID, fakeChat(faker)); err != nil {
				return sum, fmt.Errorf("failed to add chat to %s: %w", room.ID, err)
			}
			sum.Messages++
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("rooms", sum.Rooms),
		slog.Int("live", sum.Live),
		slog.Int("ended", sum.Ended),
		slog.Int("messages", sum.Messages),
	)
	return sum, nil
}

func fakeRoom(f *gofakeit.Faker) models.CreateRoomInput {
	category := f.RandomString(models.RoomCategories)
	name := f.Name()
	avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.UUID())
	cover := fmt.Sprintf("https://picsum.photos/seed/%s/1280/720", f.UUID())

	visibility := models.VisibilityPublic
	if f.Number(1, 10) == 1 {
		visibility = models.VisibilityUnlisted
	}

	return models.CreateRoomInput{
		Title:       fmt.Sprintf("%s %s", titleCase.String(f.Adjective()), category),
		Description: f.Sentence(12),
		Seller: models.Seller{
			ID:        "seller_" + f.UUID()[:8],
			Name:      name,
			Handle:    strings.ToLower(f.Username()),
			AvatarURL: &avatar,
			Verified:  f.Bool(),
		},
		Visibility: visibility,
		Category:   &category,
		Tags:       []string{strings.ToLower(f.Noun()), strings.ToLower(f.Color())},
		CoverURL:   &cover,
	}
}

func fakeChat(f *gofakeit.Faker) models.AppendMessageInput {
	return models.AppendMessageInput{
		Kind: models.KindUser,
		Author: &models.Author{
			ID:     "user_" + f.UUID()[:8],
			Name:   f.FirstName(),
			Handle: strings.ToLower(f.Username()),
		},
		Text: f.Sentence(f.Number(3, 10)),
	}
}

// clearData removes chat before rooms.
func clearData(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := tx.Delete(&models.MessageRecord{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.RoomRecord{}).Error
}
