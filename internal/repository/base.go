// Package repository is the durable storage boundary for rooms and chat.
package repository

import (
	"time"
)

const (
	roomsTable    = "rooms"
	messagesTable = "room_messages"

	// maxIDAttempts bounds retries after a primary-key collision.
	maxIDAttempts = 3
)

// Clock supplies server-assigned timestamps.
type Clock func() time.Time

// SystemClock returns UTC wall time at the microsecond precision postgres stores.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func orSystem(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// clampLimit applies the list bounds: zero means the default, anything
// outside [1, max] is pulled to the nearest bound.
func clampLimit(n, def, max int) int {
	switch {
	case n == 0:
		return def
	case n < 1:
		return 1
	case n > max:
		return max
	}
	return n
}
