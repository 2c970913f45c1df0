package service

import (
	"context"
	"testing"

	"livemarket/internal/models"
	"livemarket/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyer() *models.Author {
	return &models.Author{ID: "u1", Name: "Buyer"}
}

func TestMessageService_AppendScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, "Trading Cards")
	f.settle(t)
	f.pub.reset()

	_, err := f.msgSvc.Append(ctx, room.ID, models.AppendMessageInput{Kind: models.KindUser, Author: buyer(), Text: "  "})
	assertCode(t, err, models.CodeValidation)

	msg, err := f.msgSvc.Append(ctx, room.ID, models.AppendMessageInput{Kind: models.KindUser, Author: buyer(), Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Text)
	f.settle(t)

	envs := f.pub.envelopes(realtime.RoomChannel(room.ID))
	require.Len(t, envs, 1, "chat.message is published once")
	assert.Equal(t, realtime.EventChatMessage, envs[0].Event)
	payload, ok := envs[0].Data.(realtime.ChatPayload)
	require.True(t, ok)
	assert.Equal(t, room.ID, payload.RoomID)
	assert.Equal(t, msg.ID, payload.Message.ID)
	assert.Empty(t, f.pub.events(realtime.GlobalChannel), "chat never reaches the global feed")
}

func TestMessageService_AnnounceIsSystemEvent(t *testing.T) {
	f := newFixture(t)
	room := f.createRoom(t, "Jewelry Hour")
	f.settle(t)

	msg, err := f.msgSvc.Announce(context.Background(), room.ID, "The seller is live")
	require.NoError(t, err)
	assert.Equal(t, models.KindEvent, msg.Kind)
	assert.Nil(t, msg.Author)
	f.settle(t)
	assert.Equal(t, []string{realtime.EventChatSystem}, f.pub.events(realtime.RoomChannel(room.ID)))
}

func TestMessageService_RoomMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.msgSvc.Append(ctx, "missing", models.AppendMessageInput{Kind: models.KindUser, Author: buyer(), Text: "hi"})
	assertCode(t, err, models.CodeNotFound)

	_, err = f.msgSvc.List(ctx, "missing", models.MessageQuery{})
	assertCode(t, err, models.CodeNotFound)

	f.settle(t)
	assert.Empty(t, f.pub.sent)
}

func TestMessageService_ListPagesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.createRoom(t, "Beauty Bar")

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		_, err := f.msgSvc.Append(ctx, room.ID, models.AppendMessageInput{Kind: models.KindUser, Author: buyer(), Text: text})
		require.NoError(t, err)
	}

	page, err := f.msgSvc.List(ctx, room.ID, models.MessageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"four", "five"}, []string{page[0].Text, page[1].Text})

	var seen []string
	cursor := page[0].CreatedAt
	for {
		older, err := f.msgSvc.List(ctx, room.ID, models.MessageQuery{Limit: 2, Before: &cursor})
		require.NoError(t, err)
		if len(older) == 0 {
			break
		}
		for _, m := range older {
			assert.True(t, m.CreatedAt.Before(cursor))
			seen = append(seen, m.Text)
		}
		cursor = older[0].CreatedAt
	}
	assert.ElementsMatch(t, []string{"one", "two", "three"}, seen)
}
