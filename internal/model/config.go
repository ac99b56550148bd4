package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Refresh watcher names accepted in the watcher.name setting.
const (
	WatcherShortPoll = "short-poll"
	WatcherNone      = "none"
)

// Themes accepted in the display.theme setting.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// APIPrefix is the path prefix of the consumer notification API.
const APIPrefix = "/api/notifications/v1/consumer"

// EndpointsConfig holds the URLs of the consumer API. Each value may be an
// absolute URL or a path resolved against BaseURL.
type EndpointsConfig struct {
	UnreadCount         string `mapstructure:"unread_count" yaml:"unread_count"`
	UnreadNotifications string `mapstructure:"unread_notifications" yaml:"unread_notifications"`
	AllNotifications    string `mapstructure:"all_notifications" yaml:"all_notifications"`
	MarkAllRead         string `mapstructure:"mark_all_read" yaml:"mark_all_read"`
	MarkOneRead         string `mapstructure:"mark_one_read" yaml:"mark_one_read"`
	RendererTemplates   string `mapstructure:"renderer_templates" yaml:"renderer_templates"`
}

// WatcherArgs holds the arguments of the refresh watcher.
type WatcherArgs struct {
	PollPeriodSecs int `mapstructure:"poll_period_secs" yaml:"poll_period_secs"`
}

// WatcherConfig selects how the unread count is refreshed in the background.
type WatcherConfig struct {
	// Name is "short-poll" or "none".
	Name string      `mapstructure:"name" yaml:"name"`
	Args WatcherArgs `mapstructure:"args" yaml:"args"`
}

// SoundConfig controls the audio cue played when new notifications arrive.
type SoundConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Command is an optional external player invocation, e.g.
	// ["paplay", "/usr/share/sounds/freedesktop/stereo/message.oga"].
	// When empty the terminal bell is used.
	Command []string `mapstructure:"command" yaml:"command"`
}

// TemplatesConfig holds the templates of the tray shell.
type TemplatesConfig struct {
	// Badge renders the unread count. It receives .Count and .Known.
	Badge string `mapstructure:"badge" yaml:"badge"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// Theme is auto, dark or light and picks the adaptive color set.
	Theme string `mapstructure:"theme" yaml:"theme"`

	// DateLocation is the IANA zone used for the "all" view date groups.
	DateLocation string `mapstructure:"date_location" yaml:"date_location"`

	// Mouse enables mouse click handling.
	Mouse bool `mapstructure:"mouse" yaml:"mouse"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig holds settings of the bundled reference API server.
type ServerConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	DefaultUserID int64  `mapstructure:"default_user_id" yaml:"default_user_id"`

	// Sessions maps session cookie values to user ids. When empty every
	// request acts as DefaultUserID.
	Sessions map[string]int64 `mapstructure:"sessions" yaml:"sessions"`

	// PostRatePerMinute limits write requests per client.
	PostRatePerMinute int `mapstructure:"post_rate_per_minute" yaml:"post_rate_per_minute"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	BaseURL   string          `mapstructure:"base_url" yaml:"base_url"`
	Namespace string          `mapstructure:"namespace" yaml:"namespace"`
	Endpoints EndpointsConfig `mapstructure:"endpoints" yaml:"endpoints"`
	Watcher   WatcherConfig   `mapstructure:"watcher" yaml:"watcher"`
	Sound     SoundConfig     `mapstructure:"sound" yaml:"sound"`
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// ShortPollEnabled reports whether the unread count is refreshed on a timer.
func (c *AppConfig) ShortPollEnabled() bool {
	return c.Watcher.Name == WatcherShortPoll && c.Watcher.Args.PollPeriodSecs > 0
}

// PollPeriod returns the short-poll interval.
func (c *AppConfig) PollPeriod() time.Duration {
	return time.Duration(c.Watcher.Args.PollPeriodSecs) * time.Second
}

// Location returns the zone used to bucket notifications by date,
// falling back to the local zone when DateLocation is unset or invalid.
func (c *AppConfig) Location() *time.Location {
	if c.Display.DateLocation == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Display.DateLocation)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultBadgeTemplate renders the count, or a dash while it is unknown.
const DefaultBadgeTemplate = `{{if .Known}}{{.Count}}{{else}}-{{end}}`

// ConfigDir returns ~/.config/notifytray.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifytray")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifytray/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultEndpoints returns the endpoint paths served by the reference server.
func DefaultEndpoints() EndpointsConfig {
	return EndpointsConfig{
		UnreadCount:         APIPrefix + "/notifications/count?read=false&unread=true",
		UnreadNotifications: APIPrefix + "/notifications?read=false&unread=true",
		AllNotifications:    APIPrefix + "/notifications?read=true&unread=true",
		MarkAllRead:         APIPrefix + "/notifications/mark_notifications",
		MarkOneRead:         APIPrefix + "/notifications",
		RendererTemplates:   APIPrefix + "/renderers/templates",
	}
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		BaseURL:   "http://localhost:8000",
		Endpoints: DefaultEndpoints(),
		Watcher: WatcherConfig{
			Name: WatcherShortPoll,
			Args: WatcherArgs{PollPeriodSecs: 60},
		},
		Sound: SoundConfig{Enabled: true},
		Templates: TemplatesConfig{
			Badge: DefaultBadgeTemplate,
		},
		Display: DisplayConfig{
			Theme: ThemeAuto,
			Mouse: true,
		},
		Log: LogConfig{
			Level:      "info",
			FilePath:   filepath.Join(ConfigDir(), "notifytray.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Addr:              ":8000",
			DBPath:            filepath.Join(ConfigDir(), "notifications.db"),
			DefaultUserID:     1,
			PostRatePerMinute: 120,
		},
	}
}

// setDefaults registers every default on v so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()

	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("namespace", d.Namespace)
	v.SetDefault("endpoints.unread_count", d.Endpoints.UnreadCount)
	v.SetDefault("endpoints.unread_notifications", d.Endpoints.UnreadNotifications)
	v.SetDefault("endpoints.all_notifications", d.Endpoints.AllNotifications)
	v.SetDefault("endpoints.mark_all_read", d.Endpoints.MarkAllRead)
	v.SetDefault("endpoints.mark_one_read", d.Endpoints.MarkOneRead)
	v.SetDefault("endpoints.renderer_templates", d.Endpoints.RendererTemplates)
	v.SetDefault("watcher.name", d.Watcher.Name)
	v.SetDefault("watcher.args.poll_period_secs", d.Watcher.Args.PollPeriodSecs)
	v.SetDefault("sound.enabled", d.Sound.Enabled)
	v.SetDefault("templates.badge", d.Templates.Badge)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.mouse", d.Display.Mouse)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", d.Server.DBPath)
	v.SetDefault("server.default_user_id", d.Server.DefaultUserID)
	v.SetDefault("server.post_rate_per_minute", d.Server.PostRatePerMinute)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with NOTIFYTRAY_ override file values.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("notifytray")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return DefaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch cfg.Watcher.Name {
	case WatcherShortPoll, WatcherNone:
	case "":
		cfg.Watcher.Name = WatcherNone
	default:
		return nil, fmt.Errorf("parsing config %s: unknown watcher %q", path, cfg.Watcher.Name)
	}
	if cfg.Templates.Badge == "" {
		cfg.Templates.Badge = DefaultBadgeTemplate
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("base_url", cfg.BaseURL)
	v.Set("namespace", cfg.Namespace)
	v.Set("endpoints", cfg.Endpoints)
	v.Set("watcher", cfg.Watcher)
	v.Set("sound", cfg.Sound)
	v.Set("templates", cfg.Templates)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
