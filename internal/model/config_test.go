package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAppConfig(), cfg)
	assert.True(t, cfg.ShortPollEnabled())
	assert.Equal(t, time.Minute, cfg.PollPeriod())
	assert.Equal(t, ThemeAuto, cfg.Display.Theme)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
base_url: https://lms.example.com
namespace: course-v1:edX+DemoX
watcher:
  name: short-poll
  args:
    poll_period_secs: 15
endpoints:
  unread_count: https://api.example.com/count
sound:
  enabled: false
  command: ["paplay", "/tmp/ding.oga"]
display:
  theme: light
  date_location: UTC
server:
  sessions:
    abc: 7
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://lms.example.com", cfg.BaseURL)
	assert.Equal(t, "course-v1:edX+DemoX", cfg.Namespace)
	assert.Equal(t, 15*time.Second, cfg.PollPeriod())
	assert.Equal(t, "https://api.example.com/count", cfg.Endpoints.UnreadCount)
	assert.Equal(t, DefaultEndpoints().AllNotifications, cfg.Endpoints.AllNotifications)
	assert.False(t, cfg.Sound.Enabled)
	assert.Equal(t, []string{"paplay", "/tmp/ding.oga"}, cfg.Sound.Command)
	assert.Equal(t, DefaultBadgeTemplate, cfg.Templates.Badge)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, ThemeLight, cfg.Display.Theme)
	assert.Equal(t, int64(7), cfg.Server.Sessions["abc"])
}

func TestLoadConfigWatcher(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "watcher:\n  name: none\n"))
	require.NoError(t, err)
	assert.False(t, cfg.ShortPollEnabled())

	cfg, err = LoadConfig(writeConfig(t, "watcher:\n  name: short-poll\n  args:\n    poll_period_secs: 0\n"))
	require.NoError(t, err)
	assert.False(t, cfg.ShortPollEnabled())

	_, err = LoadConfig(writeConfig(t, "watcher:\n  name: long-poll\n"))
	assert.ErrorContains(t, err, "unknown watcher")
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "base_url: [unclosed\n"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.BaseURL = "https://lms.example.com"
	cfg.Namespace = "course-1"
	cfg.Watcher = WatcherConfig{Name: WatcherNone}
	cfg.Sound.Enabled = false

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
	assert.Equal(t, cfg.Namespace, loaded.Namespace)
	assert.Equal(t, WatcherNone, loaded.Watcher.Name)
	assert.False(t, loaded.Sound.Enabled)
	assert.Equal(t, cfg.Endpoints, loaded.Endpoints)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := DefaultAppConfig()
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Display.DateLocation = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}

func TestFamily(t *testing.T) {
	cases := map[string]string{
		"open-edx.lms.discussions.reply-to-thread": "discussions",
		"testserver.type1":                         "testserver",
		"standalone":                               "standalone",
	}
	for typeName, want := range cases {
		assert.Equal(t, want, Notification{TypeName: typeName}.Family(), typeName)
	}
}

func TestClickLink(t *testing.T) {
	assert.Equal(t, "/x", ClickLinkFromPayload(map[string]any{ClickLinkKey: "/x"}))
	assert.Equal(t, "https://example.com/t/1", ClickLinkFromPayload(map[string]any{ClickLinkKey: "  https://example.com/t/1\n"}))
	assert.Empty(t, ClickLinkFromPayload(map[string]any{ClickLinkKey: " \t "}))
	assert.Empty(t, ClickLinkFromPayload(map[string]any{ClickLinkKey: 3}))
	assert.Empty(t, ClickLinkFromPayload(nil))

	assert.False(t, Notification{}.HasClickLink())
	assert.True(t, Notification{ClickLink: "https://example.com"}.HasClickLink())
}

func TestViewSelectionString(t *testing.T) {
	assert.Equal(t, "unread", ViewUnread.String())
	assert.Equal(t, "all", ViewAll.String())
}
