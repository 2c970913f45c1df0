// Package lifecycle decides how a room changes under a patch or heartbeat.
// Nothing here performs I/O; callers pass the clock in.
package lifecycle

import (
	"strings"
	"time"

	"livemarket/internal/models"
)

// ClampViewers bounds a reported viewer count to [0, models.MaxViewers].
func ClampViewers(n int) int {
	if n < 0 {
		return 0
	}
	if n > models.MaxViewers {
		return models.MaxViewers
	}
	return n
}

// ApplyPatch returns the room that results from applying patch to current at now.
// Fields absent from the patch keep their current value.
func ApplyPatch(current models.Room, patch models.RoomPatch, now time.Time) models.Room {
	next := current
	next.Tags = append([]string(nil), current.Tags...)

	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Visibility != nil {
		next.Visibility = *patch.Visibility
	}
	if patch.CoverURL != nil {
		next.CoverURL = optional(*patch.CoverURL)
	}
	if patch.HLSURL != nil {
		next.Playback.HLSURL = optional(*patch.HLSURL)
	}
	if patch.PosterURL != nil {
		next.Playback.PosterURL = optional(*patch.PosterURL)
	}
	if patch.Category != nil {
		next.Category = optional(*patch.Category)
	}
	if patch.Tags != nil {
		next.Tags = append([]string{}, (*patch.Tags)...)
	}
	if patch.Viewers != nil {
		next.Viewers = ClampViewers(*patch.Viewers)
	}
	if patch.Status != nil {
		transition(&next, current, *patch.Status, now)
	}

	next.UpdatedAt = now
	return next
}

// ApplyHeartbeat is the strict subset of ApplyPatch a broadcaster may send.
// It also stamps LastHeartbeatAt.
func ApplyHeartbeat(current models.Room, hb models.Heartbeat, now time.Time) models.Room {
	next := current
	next.Tags = append([]string(nil), current.Tags...)

	if hb.Viewers != nil {
		next.Viewers = ClampViewers(*hb.Viewers)
	}
	if hb.Status != nil {
		transition(&next, current, *hb.Status, now)
	}

	beat := now
	next.LastHeartbeatAt = &beat
	next.UpdatedAt = now
	return next
}

// transition moves next into status to. StartedAt and EndedAt are written
// only on the first entry into live and ended respectively.
func transition(next *models.Room, current models.Room, to models.RoomStatus, now time.Time) {
	next.Status = to
	if to == current.Status {
		return
	}
	switch to {
	case models.StatusLive:
		if current.StartedAt == nil {
			started := now
			next.StartedAt = &started
		}
	case models.StatusEnded:
		if current.EndedAt == nil {
			ended := now
			next.EndedAt = &ended
		}
	}
}

// IsStale reports whether an active room has gone quiet for longer than timeout.
// Rooms that never sent a heartbeat are measured from their last update.
func IsStale(room models.Room, timeout time.Duration, now time.Time) bool {
	if room.Status != models.StatusLive && room.Status != models.StatusStarting {
		return false
	}
	last := room.UpdatedAt
	if room.LastHeartbeatAt != nil {
		last = *room.LastHeartbeatAt
	}
	return now.Sub(last) > timeout
}

// ExpireStale is the write a heartbeat sweep applies to a stale room. Only
// the status moves; LastHeartbeatAt keeps recording the broadcaster's last beat.
func ExpireStale(current models.Room, now time.Time) models.Room {
	next := current
	next.Tags = append([]string(nil), current.Tags...)
	transition(&next, current, models.StatusOffline, now)
	next.UpdatedAt = now
	return next
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
