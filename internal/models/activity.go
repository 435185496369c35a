package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
)

// ActivityKind selects how an activity card is painted.
type ActivityKind string

const (
	ActivityKindColor ActivityKind = "color"
	ActivityKindImage ActivityKind = "image"
)

// Icons is the glyph set new activities pick from.
var Icons = []string{
	"🎨", "⚽", "🎵", "📚", "🍳", "🚲", "🖍️", "🎤", "🎬", "🧩", "🚀", "🌳", "🎯",
	"🧪", "🧱", "🧘", "🏊", "🧺", "🖼️", "🎮", "🧵", "🎭", "🎲", "🏸", "🏕️", "🎈",
}

// Activity is a destination people can be assigned to. Payload holds a CSS
// color for ActivityKindColor and an image data URL for ActivityKindImage.
type Activity struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Icon    string       `json:"icon"`
	Kind    ActivityKind `json:"type"`
	Payload string       `json:"data"`
}

// Validate checks that the payload matches the kind.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return common.ErrEmptyName
	}
	switch a.Kind {
	case ActivityKindColor:
		if strings.TrimSpace(a.Payload) == "" || strings.HasPrefix(a.Payload, "data:") {
			return common.ErrInvalidPayload
		}
	case ActivityKindImage:
		if _, err := ParseDataURL(a.Payload); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidPayload, err)
		}
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidKind, a.Kind)
	}
	return nil
}

// Image is a decoded image resource.
type Image struct {
	MediaType string
	Data      []byte
}

// DataURL encodes img as a base64 data URL.
func (img Image) DataURL() string {
	return "data:" + img.MediaType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL decodes a base64 "data:image/...;base64,..." URL. SVG is
// refused since it can carry script.
func ParseDataURL(s string) (Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return Image{}, common.ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, common.ErrInvalidImage
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || !strings.HasPrefix(mediaType, "image/") || strings.HasPrefix(mediaType, "image/svg") {
		return Image{}, common.ErrInvalidImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return Image{}, common.ErrInvalidImage
	}
	return Image{MediaType: mediaType, Data: data}, nil
}

// ParseDate validates an ISO calendar date used as a background key.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return "", common.ErrInvalidDate
	}
	return t.Format(time.DateOnly), nil
}
