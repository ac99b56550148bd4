package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/api"
	"github.com/nhle/notification-tray/internal/app"
	"github.com/nhle/notification-tray/internal/counter"
	"github.com/nhle/notification-tray/internal/credential"
	"github.com/nhle/notification-tray/internal/logging"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/navigate"
	"github.com/nhle/notification-tray/internal/theme"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "notifytray",
	Short: "Terminal notification tray for the consumer notification API",
	Long: `notifytray shows the unread notification count of a notification API
and opens a pane listing unread or all notifications.

Run without arguments to start the tray. Use "notifytray configure" to set
the API location and session first, or "notifytray serve" to run the bundled
reference server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTray()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func runTray() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := theme.Apply(cfg.Display.Theme); err != nil {
		return err
	}

	client, base, err := newAPIClient(cfg, log)
	if err != nil {
		return err
	}

	var poller *counter.Poller
	if cfg.ShortPollEnabled() {
		poller = counter.NewPoller(client, cfg.PollPeriod(), logging.Module(log, "poller"))
	}

	m, err := app.New(client, app.Options{
		Counter: counter.Options{
			BadgeTemplate: cfg.Templates.Badge,
			Poller:        poller,
			Player:        counter.NewPlayer(cfg.Sound),
			Logger:        logging.Module(log, "counter"),
		},
		Opener:   navigate.SystemOpener{},
		Location: cfg.Location(),
		LinkBase: base,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.Display.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	log.Info("starting tray",
		zap.String("base_url", cfg.BaseURL),
		zap.String("watcher", cfg.Watcher.Name),
	)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("running tray: %w", err)
	}
	return nil
}

// newAPIClient builds a client that carries the stored session cookie and
// takes the CSRF token from the server cookie or, failing that, the
// keyring.
func newAPIClient(cfg *model.AppConfig, log *zap.Logger) (*api.Client, *url.URL, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing base url %q: %w", cfg.BaseURL, err)
	}

	session, err := credential.Get(credential.KeySession)
	if err != nil {
		log.Debug("no stored session", zap.Error(err))
	}
	jar, err := api.NewCookieJar(base, map[string]string{api.SessionCookieName: session})
	if err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(cfg.BaseURL, cfg.Endpoints,
		api.WithHTTPClient(&http.Client{Jar: jar, Timeout: 30 * time.Second}),
		api.WithTokenProvider(api.ChainTokenProvider{
			api.JarTokenProvider{Jar: jar},
			api.KeyringTokenProvider{Key: credential.KeyCSRF},
		}),
		api.WithNamespace(cfg.Namespace),
		api.WithLogger(logging.Module(log, "api")),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, base, nil
}
