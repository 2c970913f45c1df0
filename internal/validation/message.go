package validation

import (
	"encoding/json"

	"livemarket/internal/models"
)

var messageRules = []rule[models.AppendMessageInput]{
	{"text", func(raw json.RawMessage, present bool, out *models.AppendMessageInput) error {
		s, err := requiredString("text", raw, present, models.MaxMessageTextLength)
		out.Text = s
		return err
	}},
	{"kind", func(raw json.RawMessage, present bool, out *models.AppendMessageInput) error {
		out.Kind = models.KindUser
		if !present || isNull(raw) {
			return nil
		}
		var k string
		if err := json.Unmarshal(raw, &k); err != nil || !models.MessageKind(k).Valid() {
			return invalid("kind", "must be one of user, system, event")
		}
		out.Kind = models.MessageKind(k)
		return nil
	}},
	{"author", func(raw json.RawMessage, present bool, out *models.AppendMessageInput) error {
		if out.Kind != models.KindUser {
			return nil
		}
		if !present || isNull(raw) {
			return invalid("author.id", "is required")
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return invalid("author", "must be an object")
		}
		p, err := personFields("author", obj)
		if err != nil {
			return err
		}
		out.Author = &models.Author{
			ID:        p.ID,
			Name:      p.Name,
			Handle:    p.Handle,
			AvatarURL: p.AvatarURL,
			Verified:  p.Verified,
		}
		return nil
	}},
}

// ValidateMessage parses a chat post. kind defaults to user, which requires
// author.id and author.name; other kinds ignore any author sent.
func ValidateMessage(body []byte) (models.AppendMessageInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return models.AppendMessageInput{}, err
	}
	return run(fields, messageRules)
}

// EndStreamInput is the body of a stream end request.
type EndStreamInput struct {
	StreamID string
}

// ValidateEndStream requires a streamId.
func ValidateEndStream(body []byte) (EndStreamInput, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return EndStreamInput{}, err
	}
	raw, ok := fields["streamId"]
	id, err := requiredString("streamId", raw, ok, MaxHandleLength)
	return EndStreamInput{StreamID: id}, err
}
