package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"livemarket/internal/ident"
	"livemarket/internal/lifecycle"
	"livemarket/internal/models"
	"livemarket/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository defines the interface for room data operations.
// Lookups return (nil, nil) when the room does not exist.
type RoomRepository interface {
	Create(ctx context.Context, in models.CreateRoomInput) (*models.Room, error)
	GetByID(ctx context.Context, id string) (*models.Room, error)
	List(ctx context.Context, filters models.RoomFilters) ([]models.Room, error)
	Patch(ctx context.Context, id string, patch models.RoomPatch) (*models.RoomChange, error)
	Heartbeat(ctx context.Context, id string, hb models.Heartbeat) (*models.RoomChange, error)
	ListStale(ctx context.Context, timeout time.Duration, limit int) ([]models.Room, error)
	Expire(ctx context.Context, id string, timeout time.Duration) (*models.RoomChange, error)
}

type roomRepository struct {
	db  *gorm.DB
	now Clock
}

// NewRoomRepository creates a new room repository. A nil clock uses SystemClock.
func NewRoomRepository(db *gorm.DB, clock Clock) RoomRepository {
	return &roomRepository{db: db, now: orSystem(clock)}
}

func (r *roomRepository) Create(ctx context.Context, in models.CreateRoomInput) (*models.Room, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	span, ctx := observability.StartRepositorySpan(ctx, "Create", roomsTable)
	defer span.End()
	defer observability.TrackQuery("create", roomsTable)()

	now := r.now()
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	room := models.Room{
		Title:       in.Title,
		Description: in.Description,
		Seller:      in.Seller,
		Status:      models.StatusStarting,
		Visibility:  in.Visibility,
		Viewers:     0,
		Category:    in.Category,
		Tags:        tags,
		CoverURL:    in.CoverURL,
		Playback:    in.Playback,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := ident.RoomID(in.Title, now)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		room.ID = id

		rec := models.NewRoomRecord(room)
		err = r.db.WithContext(ctx).Create(&rec).Error
		if err == nil {
			created := rec.ToRoom()
			return &created, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetError(err)
			return nil, models.NewStoreError("create room", err)
		}
		lastErr = err
	}
	span.SetError(lastErr)
	return nil, models.NewStoreError("create room", lastErr)
}

func validateCreate(in *models.CreateRoomInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Seller.ID = strings.TrimSpace(in.Seller.ID)
	in.Seller.Name = strings.TrimSpace(in.Seller.Name)

	if in.Title == "" {
		return models.NewFieldValidationError("title", "is required")
	}
	if in.Seller.ID == "" {
		return models.NewFieldValidationError("seller.id", "is required")
	}
	if in.Seller.Name == "" {
		return models.NewFieldValidationError("seller.name", "is required")
	}
	if in.Visibility == "" {
		in.Visibility = models.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return models.NewFieldValidationError("visibility", "must be one of public, unlisted, private")
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	defer observability.TrackQuery("get", roomsTable)()

	var rec models.RoomRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewStoreError("get room", err)
	}
	room := rec.ToRoom()
	return &room, nil
}

// List returns rooms live-first, then by most recent heartbeat (rooms that
// never sent one last), then by most recent update.
func (r *roomRepository) List(ctx context.Context, filters models.RoomFilters) ([]models.Room, error) {
	defer observability.TrackQuery("list", roomsTable)()

	query := r.db.WithContext(ctx).Model(&models.RoomRecord{})
	if filters.Status != "" {
		query = query.Where("status = ?", string(filters.Status))
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Visibility != "" {
		query = query.Where("visibility = ?", string(filters.Visibility))
	}

	var recs []models.RoomRecord
	err := query.
		Order("CASE WHEN status = 'live' THEN 0 ELSE 1 END").
		Order("CASE WHEN last_heartbeat_at IS NULL THEN 1 ELSE 0 END").
		Order("last_heartbeat_at DESC").
		Order("updated_at DESC").
		Limit(clampLimit(filters.Limit, models.DefaultRoomLimit, models.MaxRoomLimit)).
		Find(&recs).Error
	if err != nil {
		return nil, models.NewStoreError("list rooms", err)
	}

	rooms := make([]models.Room, 0, len(recs))
	for _, rec := range recs {
		rooms = append(rooms, rec.ToRoom())
	}
	return rooms, nil
}

func (r *roomRepository) Patch(ctx context.Context, id string, patch models.RoomPatch) (*models.RoomChange, error) {
	return r.mutate(ctx, id, "Patch", func(current models.Room, now time.Time) (models.Room, bool) {
		return lifecycle.ApplyPatch(current, patch, now), true
	})
}

func (r *roomRepository) Heartbeat(ctx context.Context, id string, hb models.Heartbeat) (*models.RoomChange, error) {
	return r.mutate(ctx, id, "Heartbeat", func(current models.Room, now time.Time) (models.Room, bool) {
		return lifecycle.ApplyHeartbeat(current, hb, now), true
	})
}

// ListStale returns active rooms whose last sign of life is older than timeout.
func (r *roomRepository) ListStale(ctx context.Context, timeout time.Duration, limit int) ([]models.Room, error) {
	defer observability.TrackQuery("list_stale", roomsTable)()

	cutoff := r.now().Add(-timeout)
	var recs []models.RoomRecord
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(models.StatusLive), string(models.StatusStarting)}).
		Where("COALESCE(last_heartbeat_at, updated_at) < ?", cutoff).
		Order("updated_at ASC").
		Limit(clampLimit(limit, models.MaxRoomLimit, models.MaxRoomLimit)).
		Find(&recs).Error
	if err != nil {
		return nil, models.NewStoreError("list stale rooms", err)
	}

	rooms := make([]models.Room, 0, len(recs))
	for _, rec := range recs {
		rooms = append(rooms, rec.ToRoom())
	}
	return rooms, nil
}

// Expire moves a room offline if it is still stale once locked. A heartbeat
// that landed after ListStale wins and Expire returns nil.
func (r *roomRepository) Expire(ctx context.Context, id string, timeout time.Duration) (*models.RoomChange, error) {
	return r.mutate(ctx, id, "Expire", func(current models.Room, now time.Time) (models.Room, bool) {
		if !lifecycle.IsStale(current, timeout, now) {
			return current, false
		}
		return lifecycle.ExpireStale(current, now), true
	})
}

// mutate performs one locked read-modify-write. apply runs inside the
// transaction; returning false skips the write. A missing room yields nil.
func (r *roomRepository) mutate(ctx context.Context, id, op string, apply func(models.Room, time.Time) (models.Room, bool)) (*models.RoomChange, error) {
	span, ctx := observability.StartRepositorySpan(ctx, op, roomsTable)
	defer span.End()
	defer observability.TrackQuery(strings.ToLower(op), roomsTable)()

	var change *models.RoomChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.RoomRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		current := rec.ToRoom()
		next, ok := apply(current, r.now())
		if !ok {
			return nil
		}

		row := models.NewRoomRecord(next)
		if err := tx.Model(&models.RoomRecord{ID: id}).Select("*").Omit("id", "created_at").Updates(&row).Error; err != nil {
			return err
		}
		change = &models.RoomChange{Previous: current, Current: row.ToRoom()}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, models.NewStoreError(strings.ToLower(op)+" room", err)
	}
	return change, nil
}
