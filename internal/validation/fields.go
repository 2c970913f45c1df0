// Package validation turns raw request bodies and query strings into typed
// inputs. Each body is checked field by field in a fixed order, so the
// first invalid field is always the one reported.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"livemarket/internal/models"
)

// Length limits for free-form fields.
const (
	MaxTitleLength       = 140
	MaxDescriptionLength = 5000
	MaxURLLength         = 1024
	MaxCategoryLength    = 100
	MaxTags              = 20
	MaxTagLength         = 40
	MaxNameLength        = 255
	MaxHandleLength      = 128
)

// rule checks one field of a decoded object and writes it into out.
type rule[T any] struct {
	field string
	check func(raw json.RawMessage, present bool, out *T) error
}

// decodeObject parses body as a JSON object keyed by field name.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return nil, models.NewFieldValidationError("body", "must be a JSON object")
	}
	return fields, nil
}

// run applies rules in order and stops at the first failure.
func run[T any](fields map[string]json.RawMessage, rules []rule[T]) (T, error) {
	var out T
	for _, r := range rules {
		raw, present := fields[r.field]
		if err := r.check(raw, present, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

func invalid(field, format string, args ...interface{}) error {
	return models.NewFieldValidationError(field, fmt.Sprintf(format, args...))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringField decodes a JSON string and bounds its length in characters.
func stringField(field string, raw json.RawMessage, max int) (string, error) {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return "", invalid(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return s, nil
}

// optionalString treats null like "", which clears the field on a patch.
func optionalString(field string, raw json.RawMessage, max int) (*string, error) {
	if isNull(raw) {
		empty := ""
		return &empty, nil
	}
	s, err := stringField(field, raw, max)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func requiredString(field string, raw json.RawMessage, present bool, max int) (string, error) {
	if !present || isNull(raw) {
		return "", invalid(field, "is required")
	}
	s, err := stringField(field, raw, max)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalid(field, "is required")
	}
	return s, nil
}

func boolField(field string, raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, invalid(field, "must be a boolean")
	}
	return b, nil
}

func numberField(field string, raw json.RawMessage) (float64, error) {
	var n float64
	if isNull(raw) || json.Unmarshal(raw, &n) != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, invalid(field, "must be a finite number")
	}
	return n, nil
}

func statusField(field string, raw json.RawMessage) (models.RoomStatus, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !models.RoomStatus(s).Valid() {
		return "", invalid(field, "must be one of %s", joinStatuses())
	}
	return models.RoomStatus(s), nil
}

func visibilityField(field string, raw json.RawMessage) (models.Visibility, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !models.Visibility(s).Valid() {
		return "", invalid(field, "must be one of public, unlisted, private")
	}
	return models.Visibility(s), nil
}

// tagsField requires an array of strings. Tags are trimmed; blanks and
// repeats are dropped.
func tagsField(field string, raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, invalid(field, "must be an array of strings")
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, invalid(field, "each tag must be at most %d characters", MaxTagLength)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, invalid(field, "must have at most %d tags", MaxTags)
	}
	return out, nil
}

// playbackFields validates {hlsUrl, posterUrl}; each may be a string or null.
func playbackFields(field string, raw json.RawMessage) (hls, poster *string, err error) {
	if isNull(raw) {
		empty := ""
		return &empty, &empty, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, nil, invalid(field, "must be an object")
	}
	if v, ok := obj["hlsUrl"]; ok {
		if hls, err = optionalString(field+".hlsUrl", v, MaxURLLength); err != nil {
			return nil, nil, err
		}
	}
	if v, ok := obj["posterUrl"]; ok {
		if poster, err = optionalString(field+".posterUrl", v, MaxURLLength); err != nil {
			return nil, nil, err
		}
	}
	return hls, poster, nil
}

func joinStatuses() string {
	names := make([]string, len(models.RoomStatuses))
	for i, s := range models.RoomStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func nilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
