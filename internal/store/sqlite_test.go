package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-tray/internal/store"
	"github.com/nhle/notification-tray/tests/testutil"
)

var (
	day      = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	replyTyp = store.MessageType{Name: "open-edx.lms.discussions.reply-to-thread", Renderer: "basic"}
	badgeTyp = store.MessageType{Name: "open-edx.lms.leaderboard.badge", Renderer: "badge"}
)

func publish(t *testing.T, s store.Store, typ store.MessageType, ns string, created time.Time, users ...int64) store.Message {
	t.Helper()
	msg, err := s.Publish(context.Background(), store.Message{
		Namespace: ns,
		Type:      typ,
		Payload:   map[string]any{"subject": typ.Name, "_click_link": "/courses/1"},
		Created:   created,
	}, users)
	require.NoError(t, err)
	return msg
}

func ids(ns []store.UserNotification) []int64 {
	out := make([]int64, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Message.ID)
	}
	return out
}

func TestPublishDeliversToEveryUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	msg := publish(t, s, replyTyp, "course-1", day, 1, 2)
	require.NotZero(t, msg.ID)

	for _, uid := range []int64{1, 2} {
		n, err := s.Notification(ctx, uid, msg.ID)
		require.NoError(t, err)
		assert.False(t, n.IsRead())
		assert.Equal(t, replyTyp, n.Message.Type)
		assert.Equal(t, "course-1", n.Message.Namespace)
		assert.Equal(t, "/courses/1", n.Message.Payload["_click_link"])
		assert.True(t, n.Message.Created.Equal(day))
	}

	_, err := s.Notification(ctx, 3, msg.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	types, err := s.MessageTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.MessageType{replyTyp}, types)
}

func TestPublishRejectsIncompleteType(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.Publish(context.Background(), store.Message{Type: store.MessageType{Name: "x"}}, []int64{1})
	assert.Error(t, err)
}

func TestNotificationsNewestFirstWithFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	a := publish(t, s, replyTyp, "course-1", day, 1)
	b := publish(t, s, badgeTyp, "course-2", day.Add(time.Hour), 1)
	c := publish(t, s, replyTyp, "course-1", day.Add(2*time.Hour), 1)
	require.NoError(t, s.SetRead(ctx, 1, b.ID, true))

	all, err := s.Notifications(ctx, 1, store.AllNotifications())
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID, a.ID}, ids(all))

	unread, err := s.Notifications(ctx, 1, store.UnreadNotifications())
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(unread))

	read, err := s.Notifications(ctx, 1, store.NotificationFilter{Read: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(read))

	ns := "course-1"
	scoped, err := s.Notifications(ctx, 1, store.NotificationFilter{Read: true, Unread: true, Namespace: &ns})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, a.ID}, ids(scoped))

	typ := badgeTyp.Name
	byType, err := s.Notifications(ctx, 1, store.NotificationFilter{Read: true, Unread: true, TypeName: &typ})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(byType))

	page, err := s.Notifications(ctx, 1, store.NotificationFilter{Read: true, Unread: true, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(page))

	tail, err := s.Notifications(ctx, 1, store.NotificationFilter{Read: true, Unread: true, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids(tail))

	_, err = s.Notifications(ctx, 1, store.NotificationFilter{})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestCountNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		publish(t, s, replyTyp, "course-1", day.Add(time.Duration(i)*time.Minute), 1)
	}
	publish(t, s, replyTyp, "course-2", day, 1)
	publish(t, s, replyTyp, "course-1", day, 2)

	n, err := s.CountNotifications(ctx, 1, store.UnreadNotifications())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ns := "course-1"
	n, err = s.CountNotifications(ctx, 1, store.NotificationFilter{Unread: true, Namespace: &ns, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSetReadAndUnread(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	readAt := day.Add(24 * time.Hour)
	s.SetClock(func() time.Time { return readAt })

	msg := publish(t, s, replyTyp, "", day, 1)

	require.NoError(t, s.SetRead(ctx, 1, msg.ID, true))
	n, err := s.Notification(ctx, 1, msg.ID)
	require.NoError(t, err)
	require.True(t, n.IsRead())
	assert.True(t, n.ReadAt.Equal(readAt))

	// A second read keeps the first read time.
	s.SetClock(func() time.Time { return readAt.Add(time.Hour) })
	require.NoError(t, s.SetRead(ctx, 1, msg.ID, true))
	n, err = s.Notification(ctx, 1, msg.ID)
	require.NoError(t, err)
	assert.True(t, n.ReadAt.Equal(readAt))

	require.NoError(t, s.SetRead(ctx, 1, msg.ID, false))
	n, err = s.Notification(ctx, 1, msg.ID)
	require.NoError(t, err)
	assert.False(t, n.IsRead())

	assert.ErrorIs(t, s.SetRead(ctx, 2, msg.ID, true), store.ErrNotFound)
	assert.ErrorIs(t, s.SetRead(ctx, 1, 999, true), store.ErrNotFound)
}

func TestMarkAllRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	publish(t, s, replyTyp, "course-1", day, 1, 2)
	publish(t, s, replyTyp, "course-2", day, 1)
	publish(t, s, badgeTyp, "course-1", day, 1)

	ns := "course-1"
	changed, err := s.MarkAllRead(ctx, 1, &ns)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	n, err := s.CountNotifications(ctx, 1, store.UnreadNotifications())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	changed, err = s.MarkAllRead(ctx, 1, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	// Other users are untouched.
	n, err = s.CountNotifications(ctx, 2, store.UnreadNotifications())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReopenKeepsSchema(t *testing.T) {
	path := t.TempDir() + "/notifications.db"

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	publish(t, s, replyTyp, "", day, 1)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountNotifications(context.Background(), 1, store.AllNotifications())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
