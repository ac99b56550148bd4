package api

import (
	"time"

	"github.com/nhle/notification-tray/internal/model"
)

// CountResponse is the body of GET unread_count.
type CountResponse struct {
	Count int `json:"count"`
}

// MessageType describes the type of a notification message.
type MessageType struct {
	Name     string `json:"name"`
	Renderer string `json:"renderer"`
}

// Message is the notification message shared by every recipient.
type Message struct {
	ID        int64          `json:"id"`
	Namespace string         `json:"namespace,omitempty"`
	Created   time.Time      `json:"created"`
	Payload   map[string]any `json:"payload"`
	MsgType   MessageType    `json:"msg_type"`
}

// UserNotification is one entry of the notification list endpoints.
type UserNotification struct {
	ID      int64      `json:"id"`
	UserID  int64      `json:"user_id"`
	ReadAt  *time.Time `json:"read_at"`
	Created time.Time  `json:"created"`
	Msg     Message    `json:"msg"`
}

// MarkRequest is the body of POST mark_one_read/<id>.
type MarkRequest struct {
	MarkAs string `json:"mark_as"`
}

// ErrorResponse is the error body returned by the reference server.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToModel converts the wire representation into a Notification.
func (u UserNotification) ToModel() model.Notification {
	return model.Notification{
		ID:          u.Msg.ID,
		TypeName:    u.Msg.MsgType.Name,
		RendererKey: u.Msg.MsgType.Renderer,
		Payload:     u.Msg.Payload,
		Read:        u.ReadAt != nil,
		ClickLink:   model.ClickLinkFromPayload(u.Msg.Payload),
		CreatedAt:   u.Msg.Created,
	}
}
