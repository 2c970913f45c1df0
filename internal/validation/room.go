package validation

import (
	"encoding/json"
	"math"

	"livemarket/internal/models"
)

// patchRules run in this order; the first failing field is reported.
var patchRules = []rule[models.RoomPatch]{
	{"title", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		s, err := stringField("title", raw, MaxTitleLength)
		if err != nil {
			return err
		}
		if s == "" {
			return invalid("title", "must not be empty")
		}
		out.Title = &s
		return nil
	}},
	{"description", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		s, err := optionalString("description", raw, MaxDescriptionLength)
		out.Description = s
		return err
	}},
	{"visibility", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		v, err := visibilityField("visibility", raw)
		if err != nil {
			return err
		}
		out.Visibility = &v
		return nil
	}},
	{"coverUrl", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		s, err := optionalString("coverUrl", raw, MaxURLLength)
		out.CoverURL = s
		return err
	}},
	{"playback", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		hls, poster, err := playbackFields("playback", raw)
		out.HLSURL, out.PosterURL = hls, poster
		return err
	}},
	{"category", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		s, err := optionalString("category", raw, MaxCategoryLength)
		out.Category = s
		return err
	}},
	{"tags", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		tags, err := tagsField("tags", raw)
		if err != nil {
			return err
		}
		out.Tags = &tags
		return nil
	}},
	{"status", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		s, err := statusField("status", raw)
		if err != nil {
			return err
		}
		out.Status = &s
		return nil
	}},
	{"viewers", func(raw json.RawMessage, present bool, out *models.RoomPatch) error {
		if !present {
			return nil
		}
		n, err := numberField("viewers", raw)
		if err != nil {
			return err
		}
		if n < 0 || n > models.MaxViewers {
			return invalid("viewers", "must be between 0 and %d", models.MaxViewers)
		}
		v := int(math.Floor(n))
		out.Viewers = &v
		return nil
	}},
}

// ValidateRoomPatch parses a PATCH body. Absent fields stay nil; null or ""
// on an optional field clears it.
func ValidateRoomPatch(body []byte) (models.RoomPatch, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return models.RoomPatch{}, err
	}
	return run(fields, patchRules)
}

var heartbeatRules = []rule[models.Heartbeat]{
	{"status", func(raw json.RawMessage, present bool, out *models.Heartbeat) error {
		if !present {
			return nil
		}
		s, err := statusField("status", raw)
		if err != nil {
			return err
		}
		out.Status = &s
		return nil
	}},
	{"viewers", func(raw json.RawMessage, present bool, out *models.Heartbeat) error {
		if !present {
			return nil
		}
		n, err := numberField("viewers", raw)
		if err != nil {
			return err
		}
		// Broadcaster counts are clamped, not rejected.
		n = math.Max(0, math.Min(n, models.MaxViewers))
		v := int(math.Floor(n))
		out.Viewers = &v
		return nil
	}},
}

// ValidateHeartbeat parses a heartbeat body. An empty body is a bare liveness ping.
func ValidateHeartbeat(body []byte) (models.Heartbeat, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return models.Heartbeat{}, err
	}
	return run(fields, heartbeatRules)
}

var createRules = []rule[models.CreateRoomInput]{
	{"title", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		s, err := requiredString("title", raw, present, MaxTitleLength)
		out.Title = s
		return err
	}},
	{"seller", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		seller, err := sellerField(raw, present)
		out.Seller = seller
		return err
	}},
	{"description", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present || isNull(raw) {
			return nil
		}
		s, err := stringField("description", raw, MaxDescriptionLength)
		out.Description = s
		return err
	}},
	{"visibility", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present || isNull(raw) {
			out.Visibility = models.VisibilityPublic
			return nil
		}
		v, err := visibilityField("visibility", raw)
		out.Visibility = v
		return err
	}},
	{"coverUrl", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present {
			return nil
		}
		s, err := optionalString("coverUrl", raw, MaxURLLength)
		out.CoverURL = nilIfEmpty(s)
		return err
	}},
	{"playback", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present {
			return nil
		}
		hls, poster, err := playbackFields("playback", raw)
		out.Playback = models.Playback{HLSURL: nilIfEmpty(hls), PosterURL: nilIfEmpty(poster)}
		return err
	}},
	{"category", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present {
			return nil
		}
		s, err := optionalString("category", raw, MaxCategoryLength)
		out.Category = nilIfEmpty(s)
		return err
	}},
	{"tags", func(raw json.RawMessage, present bool, out *models.CreateRoomInput) error {
		if !present {
			out.Tags = []string{}
			return nil
		}
		tags, err := tagsField("tags", raw)
		out.Tags = tags
		return err
	}},
}

// ValidateCreateRoom parses a create body. title, seller.id and seller.name
// are required.
func ValidateCreateRoom(body []byte) (models.CreateRoomInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return models.CreateRoomInput{}, err
	}
	return run(fields, createRules)
}

func sellerField(raw json.RawMessage, present bool) (models.Seller, error) {
	if !present || isNull(raw) {
		return models.Seller{}, invalid("seller.id", "is required")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return models.Seller{}, invalid("seller", "must be an object")
	}
	return personFields("seller", obj)
}

// personFields reads the id/name/handle/avatarUrl/verified shape shared by
// sellers and chat authors.
func personFields(prefix string, obj map[string]json.RawMessage) (models.Seller, error) {
	var p models.Seller
	var err error

	idRaw, ok := obj["id"]
	if p.ID, err = requiredString(prefix+".id", idRaw, ok, MaxHandleLength); err != nil {
		return p, err
	}
	nameRaw, ok := obj["name"]
	if p.Name, err = requiredString(prefix+".name", nameRaw, ok, MaxNameLength); err != nil {
		return p, err
	}
	if v, ok := obj["handle"]; ok && !isNull(v) {
		if p.Handle, err = stringField(prefix+".handle", v, MaxHandleLength); err != nil {
			return p, err
		}
	}
	if v, ok := obj["avatarUrl"]; ok {
		avatar, err := optionalString(prefix+".avatarUrl", v, MaxURLLength)
		if err != nil {
			return p, err
		}
		p.AvatarURL = nilIfEmpty(avatar)
	}
	if v, ok := obj["verified"]; ok {
		if p.Verified, err = boolField(prefix+".verified", v); err != nil {
			return p, err
		}
	}
	return p, nil
}
