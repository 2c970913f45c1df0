package validation

import (
	"strconv"
	"strings"
	"time"

	"livemarket/internal/models"
)

// ParseRoomFilters reads list filters from query values. Unknown enum
// values are rejected; a malformed limit falls back to the default.
func ParseRoomFilters(status, category, visibility, limit string) (models.RoomFilters, error) {
	var f models.RoomFilters

	if status = strings.TrimSpace(status); status != "" {
		if !models.RoomStatus(status).Valid() {
			return f, invalid("status", "must be one of %s", joinStatuses())
		}
		f.Status = models.RoomStatus(status)
	}
	f.Category = strings.TrimSpace(category)
	if visibility = strings.TrimSpace(visibility); visibility != "" {
		if !models.Visibility(visibility).Valid() {
			return f, invalid("visibility", "must be one of public, unlisted, private")
		}
		f.Visibility = models.Visibility(visibility)
	}
	f.Limit = parseLimit(limit)
	return f, nil
}

// ParseMessageQuery reads limit and before. A before value that is not an
// ISO-8601 timestamp is ignored rather than rejected.
func ParseMessageQuery(limit, before string) models.MessageQuery {
	q := models.MessageQuery{Limit: parseLimit(limit)}
	if t, ok := ParseTimestamp(before); ok {
		q.Before = &t
	}
	return q
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02",
}

// ParseTimestamp accepts the common ISO-8601 forms. Times without a zone are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	if n == 0 {
		// Zero means "use the default" to the stores; an explicit 0 asks for the minimum.
		return 1
	}
	return n
}
