package model

import (
	"strings"
	"time"
)

// ClickLinkKey is the payload field that carries a notification's
// navigation target.
const ClickLinkKey = "_click_link"

// Notification represents a single user notification as returned by the
// consumer API.
type Notification struct {
	// ID is the message identifier, unique within the user's notifications
	// and stable across fetches.
	ID int64 `json:"id"`

	// TypeName is the dotted message type, e.g. "org.edx.discussion.reply".
	TypeName string `json:"type_name"`

	// RendererKey selects the template used to render Payload.
	RendererKey string `json:"renderer_key"`

	// Payload holds the presentation data; its shape depends on TypeName.
	Payload map[string]any `json:"payload"`

	// Read indicates whether the user has already read this notification.
	Read bool `json:"read"`

	// ClickLink is the optional URL opened when the notification is visited.
	// It carries no surrounding whitespace.
	ClickLink string `json:"click_link,omitempty"`

	// CreatedAt is when the underlying message was created.
	CreatedAt time.Time `json:"created_at"`
}

// Family returns the dotted segment immediately preceding the last one in
// TypeName. It is the group key used by the unread view.
func (n Notification) Family() string {
	parts := strings.Split(n.TypeName, ".")
	if len(parts) < 2 {
		return n.TypeName
	}
	return parts[len(parts)-2]
}

// HasClickLink reports whether visiting the notification should navigate.
func (n Notification) HasClickLink() bool {
	return n.ClickLink != ""
}

// ClickLinkFromPayload extracts the navigation target from a payload,
// trimmed of surrounding whitespace.
func ClickLinkFromPayload(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	link, _ := payload[ClickLinkKey].(string)
	return strings.TrimSpace(link)
}
