package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content part types accepted in multi-part messages.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ImageURL holds an image reference inside a content part.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of a multi-part message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// MessageContent is the string-or-parts union used by OpenAI chat messages.
// The zero value is an empty plain string.
type MessageContent struct {
	Text  string
	Parts []ContentPart

	isParts bool
}

// TextContent returns a plain-string content value.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

// PartsContent returns a multi-part content value.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts, isParts: true}
}

// IsParts reports whether the content was a list of typed parts.
func (c MessageContent) IsParts() bool {
	return c.isParts
}

// PlainText flattens the content to text. Part lists contribute their text
// parts in order; image parts are skipped. Used for system messages and
// assistant history turns, which never carry images in this protocol.
func (c MessageContent) PlainText() string {
	if !c.isParts {
		return c.Text
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// UnmarshalJSON implements the union decoding: a JSON string, an array of
// typed parts, or null (empty).
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*c = MessageContent{}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = MessageContent{Text: s}
		return nil
	case strings.HasPrefix(trimmed, "["):
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		for _, p := range parts {
			if p.Type != PartTypeText && p.Type != PartTypeImageURL {
				return fmt.Errorf("unknown content part type %q", p.Type)
			}
		}
		*c = MessageContent{Parts: parts, isParts: true}
		return nil
	default:
		return fmt.Errorf("message content must be a string or an array of parts")
	}
}

// MarshalJSON emits the same form the content was built from.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}
