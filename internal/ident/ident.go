// Package ident generates room and message identifiers.
package ident

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxSlugLength bounds the human-readable prefix of an id.
	MaxSlugLength = 48

	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	hexAlphabet    = "0123456789abcdef"

	roomSuffixSize = 3
	// 8 hex chars carry 32 bits.
	messageHexSize = 8

	fallbackRoomSlug = "room"
	fallbackMsgSlug  = "msg"
)

// Slugify lowercases s, folds accents, collapses every run of characters
// outside [a-z0-9] into a single '-' and trims leading and trailing '-'.
// The result is at most max bytes long; max <= 0 means unbounded.
func Slugify(s string, max int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	out := b.String()
	if max > 0 && len(out) > max {
		out = strings.TrimRight(out[:max], "-")
	}
	return out
}

// RoomID builds "<slug>-<base36 millis><random>" from a seed such as the title.
func RoomID(seed string, now time.Time) (string, error) {
	slug := Slugify(seed, MaxSlugLength)
	if slug == "" {
		slug = fallbackRoomSlug
	}
	random, err := gonanoid.Generate(suffixAlphabet, roomSuffixSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate room id suffix: %w", err)
	}
	return slug + "-" + strconv.FormatInt(now.UnixMilli(), 36) + random, nil
}

// MessageID builds "<slug(roomID-actor)>-<random hex>". The prefix is a
// debugging aid only; uniqueness comes from the random tail.
func MessageID(roomID, actor string) (string, error) {
	slug := Slugify(roomID+"-"+actor, MaxSlugLength)
	if slug == "" {
		slug = fallbackMsgSlug
	}
	random, err := gonanoid.Generate(hexAlphabet, messageHexSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate message id suffix: %w", err)
	}
	return slug + "-" + random, nil
}
