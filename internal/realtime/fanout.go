package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"livemarket/internal/models"
	"livemarket/internal/observability"

	"golang.org/x/sync/errgroup"
)

// DefaultFanoutTimeout bounds one fanout when none is configured.
const DefaultFanoutTimeout = 2 * time.Second

// Fanout publishes derived events after a write has committed. Every call
// returns immediately; publishing happens on a detached goroutine bounded
// by the configured timeout. Failures are logged and counted, never returned.
type Fanout struct {
	pub     Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewFanout creates a Fanout over pub. A nil pub discards every event.
func NewFanout(pub Publisher, timeout time.Duration) *Fanout {
	if timeout <= 0 {
		timeout = DefaultFanoutTimeout
	}
	return &Fanout{pub: pub, timeout: timeout}
}

// RoomCreated announces a new room on the global channel.
func (f *Fanout) RoomCreated(ctx context.Context, room models.Room) {
	f.dispatch(ctx, room.ID, []string{GlobalChannel}, []Event{CreatedEvent(room)})
}

// RoomChanged announces a committed room write on the room and global channels.
func (f *Fanout) RoomChanged(ctx context.Context, change models.RoomChange) {
	events := RoomEvents(change.Previous, change.Current)
	f.dispatch(ctx, change.Current.ID, []string{RoomChannel(change.Current.ID), GlobalChannel}, events)
}

// ChatAppended announces a message on its room channel only.
func (f *Fanout) ChatAppended(ctx context.Context, msg models.ChatMessage) {
	f.dispatch(ctx, msg.RoomID, []string{RoomChannel(msg.RoomID)}, []Event{ChatEvent(msg)})
}

// Wait blocks until in-flight fanouts finish or ctx is done.
func (f *Fanout) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fanout) dispatch(ctx context.Context, roomID string, channels []string, events []Event) {
	if f.pub == nil {
		return
	}
	// The caller's request may finish before publishing does.
	detached := context.WithoutCancel(ctx)
	stamp := time.Now()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(detached, f.timeout)
		defer cancel()

		var g errgroup.Group
		for _, channel := range channels {
			channel := channel
			g.Go(func() error {
				return f.publishAll(ctx, channel, events, stamp)
			})
		}
		if err := g.Wait(); err != nil {
			observability.LogAsyncOperationError(ctx, "fanout", err,
				slog.String("room_id", roomID),
				slog.Int("events", len(events)),
			)
		}
	}()
}

// publishAll sends events to one channel in order. A failed event does not
// stop the ones after it; the first failure is returned.
func (f *Fanout) publishAll(ctx context.Context, channel string, events []Event, stamp time.Time) error {
	scope := "room"
	if channel == GlobalChannel {
		scope = "global"
	}

	var first error
	for _, ev := range events {
		span, pctx := observability.StartPublishSpan(ctx, channel, ev.Name)
		err := f.pub.Publish(pctx, channel, ev.Seal(stamp))
		if err != nil {
			span.SetError(err)
			observability.FanoutPublishes.WithLabelValues(scope, ev.Name, "error").Inc()
			if first == nil {
				first = models.NewFanoutError(channel, ev.Name, err)
			}
		} else {
			observability.FanoutPublishes.WithLabelValues(scope, ev.Name, "ok").Inc()
		}
		span.End()
	}
	return first
}
