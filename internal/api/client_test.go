package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-tray/internal/api"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/server"
	"github.com/nhle/notification-tray/internal/store"
	"github.com/nhle/notification-tray/tests/testutil"
)

type fixture struct {
	srv   *httptest.Server
	store *store.SQLiteStore
	base  *url.URL
}

func newFixture(t *testing.T, cfg model.ServerConfig) fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	srv := httptest.NewServer(server.New(st, cfg, nil).Handler())
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return fixture{srv: srv, store: st, base: base}
}

func (f fixture) publish(t *testing.T, typeName, ns string, created time.Time, users ...int64) store.Message {
	t.Helper()
	msg, err := server.CannedMessage(typeName, ns)
	require.NoError(t, err)
	msg.Created = created
	msg, err = f.store.Publish(context.Background(), msg, users)
	require.NoError(t, err)
	return msg
}

// client returns a client whose jar supplies the CSRF token, the way a
// browser session would.
func (f fixture) client(t *testing.T, cookies map[string]string, opts ...api.Option) *api.Client {
	t.Helper()
	jar, err := api.NewCookieJar(f.base, cookies)
	require.NoError(t, err)

	opts = append([]api.Option{
		api.WithHTTPClient(&http.Client{Jar: jar, Timeout: 5 * time.Second}),
		api.WithTokenProvider(api.ChainTokenProvider{api.StaticToken(""), api.JarTokenProvider{Jar: jar}}),
	}, opts...)
	c, err := api.NewClient(f.srv.URL, model.DefaultEndpoints(), opts...)
	require.NoError(t, err)
	return c
}

func TestUnreadCountAndNotifications(t *testing.T) {
	f := newFixture(t, model.ServerConfig{DefaultUserID: 1})
	day := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	a := f.publish(t, "testserver.type1", "", day, 1)
	b := f.publish(t, "open-edx.lms.discussions.reply-to-thread", "", day.Add(time.Hour), 1)
	require.NoError(t, f.store.SetRead(context.Background(), 1, a.ID, true))

	c := f.client(t, nil)
	ctx := context.Background()

	n, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := c.Notifications(ctx, model.ViewUnread)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, b.ID, unread[0].ID)
	assert.False(t, unread[0].Read)
	assert.Equal(t, server.RendererDiscussion, unread[0].RendererKey)
	assert.Equal(t, "/courses/demo/discussion", unread[0].ClickLink)

	all, err := c.Notifications(ctx, model.ViewAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []int64{b.ID, a.ID}, []int64{all[0].ID, all[1].ID})
	assert.True(t, all[1].Read)
	assert.False(t, all[1].HasClickLink())
}

func TestNamespaceScopesCountAndMarkAll(t *testing.T) {
	f := newFixture(t, model.ServerConfig{DefaultUserID: 1})
	f.publish(t, "testserver.type1", "course-1", time.Time{}, 1)
	f.publish(t, "testserver.type1", "course-2", time.Time{}, 1)

	ctx := context.Background()
	scoped := f.client(t, nil, api.WithNamespace("course-1"))

	n, err := scoped.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, scoped.MarkAllRead(ctx))

	n, err = scoped.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.client(t, nil).UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkReadUsesCookieToken(t *testing.T) {
	f := newFixture(t, model.ServerConfig{DefaultUserID: 1})
	msg := f.publish(t, "testserver.type1", "", time.Time{}, 1)
	ctx := context.Background()
	c := f.client(t, nil)

	// The first write has no cookie yet, so the server rejects it and
	// hands one out.
	err := c.MarkRead(ctx, msg.ID)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	require.NoError(t, c.MarkRead(ctx, msg.ID))

	n, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = c.MarkRead(ctx, 999)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.False(t, api.IsAuthError(err))
}

func TestWriteWithoutTokenIsRejected(t *testing.T) {
	f := newFixture(t, model.ServerConfig{DefaultUserID: 1})
	ctx := context.Background()

	c, err := api.NewClient(f.srv.URL, model.DefaultEndpoints())
	require.NoError(t, err)

	_, err = c.UnreadCount(ctx)
	require.NoError(t, err)

	err = c.MarkAllRead(ctx)
	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Contains(t, authErr.Message, "CSRF verification failed")
}

func TestSessionCookie(t *testing.T) {
	f := newFixture(t, model.ServerConfig{Sessions: map[string]int64{"s-2": 2}})
	f.publish(t, "testserver.type1", "", time.Time{}, 2)
	ctx := context.Background()

	n, err := f.client(t, map[string]string{api.SessionCookieName: "s-2"}).UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.client(t, nil).UnreadCount(ctx)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
}

func TestRendererTemplatesAndText(t *testing.T) {
	f := newFixture(t, model.ServerConfig{DefaultUserID: 1})
	c := f.client(t, nil)
	ctx := context.Background()

	index, err := c.RendererTemplates(ctx)
	require.NoError(t, err)
	require.Contains(t, index, server.RendererBasic)

	body, err := c.Text(ctx, index[server.RendererBasic])
	require.NoError(t, err)
	assert.Equal(t, server.Templates[server.RendererBasic], body)

	_, err = c.Text(ctx, model.APIPrefix+"/renderers/templates/missing")
	assert.True(t, api.IsNotFound(err))
}

func TestTokenProviders(t *testing.T) {
	ctx := context.Background()
	target, err := url.Parse("http://example.com/api")
	require.NoError(t, err)

	_, err = api.StaticToken("").CSRFToken(ctx, target)
	assert.ErrorIs(t, err, api.ErrNoToken)

	token, err := api.StaticToken("abc").CSRFToken(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	jar, err := api.NewCookieJar(target, map[string]string{api.CSRFCookieName: "from-jar", "empty": ""})
	require.NoError(t, err)

	chain := api.ChainTokenProvider{api.StaticToken(""), api.JarTokenProvider{Jar: jar}, api.StaticToken("late")}
	token, err = chain.CSRFToken(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "from-jar", token)

	_, err = api.ChainTokenProvider{}.CSRFToken(ctx, target)
	assert.ErrorIs(t, err, api.ErrNoToken)

	_, err = api.JarTokenProvider{}.CSRFToken(ctx, target)
	assert.ErrorIs(t, err, api.ErrNoToken)
}

func TestUnconfiguredEndpoint(t *testing.T) {
	c, err := api.NewClient("http://example.com", model.EndpointsConfig{})
	require.NoError(t, err)

	_, err = c.UnreadCount(context.Background())
	assert.Error(t, err)
}

func TestToModelTrimsClickLink(t *testing.T) {
	u := api.UserNotification{
		ID: 3,
		Msg: api.Message{
			ID:      11,
			Created: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC),
			Payload: map[string]any{model.ClickLinkKey: " /courses/demo/discussion\n"},
			MsgType: api.MessageType{Name: "open-edx.lms.discussions.reply-to-thread", Renderer: "discussion"},
		},
	}

	n := u.ToModel()

	assert.Equal(t, "/courses/demo/discussion", n.ClickLink)
	assert.True(t, n.HasClickLink())
	assert.Equal(t, int64(11), n.ID)
	assert.False(t, n.Read)
}
