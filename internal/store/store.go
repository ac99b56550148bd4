package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a notification does not exist for the user.
var ErrNotFound = errors.New("notification not found")

// ErrInvalidFilter is returned when a filter excludes both read and unread
// notifications.
var ErrInvalidFilter = errors.New("filter must include read or unread notifications")

// MessageType names a kind of notification and the renderer that displays it.
type MessageType struct {
	Name     string `db:"name"`
	Renderer string `db:"renderer"`
}

// Message is a published notification body, shared by every recipient.
type Message struct {
	ID        int64
	Namespace string
	Type      MessageType
	Payload   map[string]any
	Created   time.Time
}

// UserNotification is one user's copy of a message.
type UserNotification struct {
	ID      int64
	UserID  int64
	Message Message
	ReadAt  *time.Time
	Created time.Time
}

// IsRead reports whether the user has read the notification.
func (u UserNotification) IsRead() bool {
	return u.ReadAt != nil
}

// NotificationFilter controls filtering and pagination for notification
// queries. Read and Unread select which read states are included.
type NotificationFilter struct {
	Read      bool
	Unread    bool
	Namespace *string
	TypeName  *string
	Limit     int
	Offset    int
}

// AllNotifications includes both read and unread notifications.
func AllNotifications() NotificationFilter {
	return NotificationFilter{Read: true, Unread: true}
}

// UnreadNotifications includes only unread notifications.
func UnreadNotifications() NotificationFilter {
	return NotificationFilter{Unread: true}
}

// Store defines the persistence interface of the notification server.
type Store interface {
	// Publish stores msg and delivers it to every user in userIDs. The
	// message type is registered if it is new.
	Publish(ctx context.Context, msg Message, userIDs []int64) (Message, error)

	// Notifications lists a user's notifications, newest first.
	Notifications(ctx context.Context, userID int64, filter NotificationFilter) ([]UserNotification, error)
	CountNotifications(ctx context.Context, userID int64, filter NotificationFilter) (int, error)

	// Notification returns the user's copy of message msgID.
	Notification(ctx context.Context, userID, msgID int64) (*UserNotification, error)

	// SetRead marks the user's copy of message msgID read or unread.
	SetRead(ctx context.Context, userID, msgID int64, read bool) error

	// MarkAllRead marks every unread notification of the user read,
	// limited to namespace when it is non-nil. It returns how many changed.
	MarkAllRead(ctx context.Context, userID int64, namespace *string) (int64, error)

	MessageTypes(ctx context.Context) ([]MessageType, error)
}
