package service

import (
	"context"
	"log/slog"
	"time"

	"livemarket/internal/observability"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"
)

const sweepBatchSize = 100

// HeartbeatSweeper moves rooms whose broadcaster went quiet to offline.
type HeartbeatSweeper struct {
	rooms    repository.RoomRepository
	fanout   *realtime.Fanout
	timeout  time.Duration
	interval time.Duration
}

func NewHeartbeatSweeper(rooms repository.RoomRepository, fanout *realtime.Fanout, timeout, interval time.Duration) *HeartbeatSweeper {
	return &HeartbeatSweeper{rooms: rooms, fanout: fanout, timeout: timeout, interval: interval}
}

// Run sweeps every interval until ctx is done.
func (s *HeartbeatSweeper) Run(ctx context.Context) {
	if s.interval <= 0 || s.timeout <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				observability.LogAsyncOperationError(ctx, "heartbeat_sweep", err)
			}
		}
	}
}

// RunOnce expires one batch of stale rooms and returns how many moved.
// Each room is re-checked under its row lock, so a heartbeat that lands
// between the scan and the write wins.
func (s *HeartbeatSweeper) RunOnce(ctx context.Context) (int, error) {
	stale, err := s.rooms.ListStale(ctx, s.timeout, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, room := range stale {
		change, err := s.rooms.Expire(ctx, room.ID, s.timeout)
		if err != nil {
			return expired, err
		}
		if change == nil {
			continue
		}
		expired++
		observability.SweepExpirations.Inc()
		recordTransition(*change)
		s.fanout.RoomChanged(ctx, *change)
	}

	if expired > 0 {
		observability.GlobalLogger.InfoContext(ctx, "heartbeat sweep expired rooms",
			slog.Int("expired", expired),
			slog.Duration("timeout", s.timeout),
		)
	}
	return expired, nil
}
