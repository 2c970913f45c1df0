package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"livemarket/internal/ident"
	"livemarket/internal/models"
	"livemarket/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines the interface for the append-only chat log.
type MessageRepository interface {
	Append(ctx context.Context, roomID string, in models.AppendMessageInput) (*models.ChatMessage, error)
	AppendSystem(ctx context.Context, roomID, text string) (*models.ChatMessage, error)
	AppendEvent(ctx context.Context, roomID, text string) (*models.ChatMessage, error)
	List(ctx context.Context, roomID string, q models.MessageQuery) ([]models.ChatMessage, error)
}

type messageRepository struct {
	db  *gorm.DB
	now Clock
}

// NewMessageRepository creates a new message repository. A nil clock uses SystemClock.
func NewMessageRepository(db *gorm.DB, clock Clock) MessageRepository {
	return &messageRepository{db: db, now: orSystem(clock)}
}

// Append validates and stores one message. Text is trimmed and must be
// non-empty no matter which caller reaches the store.
func (r *messageRepository) Append(ctx context.Context, roomID string, in models.AppendMessageInput) (*models.ChatMessage, error) {
	msg, err := r.prepare(roomID, in)
	if err != nil {
		return nil, err
	}

	span, ctx := observability.StartRepositorySpan(ctx, "Append", messagesTable)
	defer span.End()
	defer observability.TrackQuery("append", messagesTable)()

	actor := string(msg.Kind)
	if msg.Author != nil {
		actor = msg.Author.ID
	}

	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := ident.MessageID(roomID, actor)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		msg.ID = id

		rec := models.NewMessageRecord(msg)
		err = r.db.WithContext(ctx).Create(&rec).Error
		if err == nil {
			stored := rec.ToMessage()
			observability.ChatMessages.WithLabelValues(string(stored.Kind)).Inc()
			return &stored, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetError(err)
			return nil, models.NewStoreError("append message", err)
		}
		lastErr = err
	}
	span.SetError(lastErr)
	return nil, models.NewStoreError("append message", lastErr)
}

func (r *messageRepository) AppendSystem(ctx context.Context, roomID, text string) (*models.ChatMessage, error) {
	return r.Append(ctx, roomID, models.AppendMessageInput{Kind: models.KindSystem, Text: text})
}

func (r *messageRepository) AppendEvent(ctx context.Context, roomID, text string) (*models.ChatMessage, error) {
	return r.Append(ctx, roomID, models.AppendMessageInput{Kind: models.KindEvent, Text: text})
}

func (r *messageRepository) prepare(roomID string, in models.AppendMessageInput) (models.ChatMessage, error) {
	if strings.TrimSpace(roomID) == "" {
		return models.ChatMessage{}, models.NewFieldValidationError("roomId", "is required")
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return models.ChatMessage{}, models.NewFieldValidationError("text", "must not be empty")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageTextLength {
		return models.ChatMessage{}, models.NewFieldValidationError("text", fmt.Sprintf("must be at most %d characters", models.MaxMessageTextLength))
	}

	kind := in.Kind
	if kind == "" {
		kind = models.KindUser
	}
	if !kind.Valid() {
		return models.ChatMessage{}, models.NewFieldValidationError("kind", "must be one of user, system, event")
	}

	msg := models.ChatMessage{
		RoomID:    roomID,
		Kind:      kind,
		Text:      text,
		CreatedAt: r.now(),
	}

	// Only viewer chat carries an author.
	if kind == models.KindUser {
		if in.Author == nil || strings.TrimSpace(in.Author.ID) == "" || strings.TrimSpace(in.Author.Name) == "" {
			return models.ChatMessage{}, models.NewFieldValidationError("author", "id and name are required for user messages")
		}
		author := *in.Author
		author.ID = strings.TrimSpace(author.ID)
		author.Name = strings.TrimSpace(author.Name)
		msg.Author = &author
	}
	return msg, nil
}

// List returns up to q.Limit messages strictly older than q.Before,
// oldest first.
func (r *messageRepository) List(ctx context.Context, roomID string, q models.MessageQuery) ([]models.ChatMessage, error) {
	defer observability.TrackQuery("list", messagesTable)()

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if q.Before != nil {
		query = query.Where("created_at < ?", q.Before.UTC())
	}

	var recs []models.MessageRecord
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(q.Limit, models.DefaultMessageLimit, models.MaxMessageLimit)).
		Find(&recs).Error
	if err != nil {
		return nil, models.NewStoreError("list messages", err)
	}

	out := make([]models.ChatMessage, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec.ToMessage()
	}
	return out, nil
}
