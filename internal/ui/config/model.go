// Package config is the interactive setup screen run by the configure
// command. It collects the API location and session, checks them against
// the server and persists the result.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-tray/internal/api"
	"github.com/nhle/notification-tray/internal/credential"
	"github.com/nhle/notification-tray/internal/keys"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/theme"
)

// Mode represents the current state of the setup view.
type Mode int

const (
	ModeForm       Mode = iota // Editing the settings
	ModeValidating             // Testing the connection
	ModeResult                 // Showing the outcome
)

// Validator checks that cfg reaches a working API with the given session
// cookie and CSRF token. It returns the current unread count.
type Validator func(ctx context.Context, cfg *model.AppConfig, session, csrf string) (int, error)

// Saver persists cfg and stores the secrets.
type Saver func(cfg *model.AppConfig, session, csrf string) error

// Options configures the setup model.
type Options struct {
	Validate Validator
	Save     Saver
	Keys     *keys.KeyMap
}

// resultMsg carries the outcome of a validate-and-save attempt.
type resultMsg struct {
	count int
	err   error
	saved bool
}

// formValues is shared by every copy of the model so the huh fields keep
// writing to the same place.
type formValues struct {
	baseURL    string
	namespace  string
	pollPeriod string
	sound      bool
	session    string
	csrf       string
}

// Model is the Bubble Tea model for the setup UI.
type Model struct {
	mode   Mode
	base   *model.AppConfig
	values *formValues
	form   *huh.Form

	validate Validator
	save     Saver
	spinner  spinner.Model

	count int
	err   error
	saved bool

	keys          *keys.KeyMap
	width, height int
}

// New creates a setup model pre-filled from cfg.
func New(cfg *model.AppConfig, opts Options) Model {
	if opts.Keys == nil {
		opts.Keys = keys.DefaultKeyMap()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	base := *cfg
	m := Model{
		mode: ModeForm,
		base: &base,
		values: &formValues{
			baseURL:    cfg.BaseURL,
			namespace:  cfg.Namespace,
			pollPeriod: strconv.Itoa(cfg.Watcher.Args.PollPeriodSecs),
			sound:      cfg.Sound.Enabled,
		},
		validate: opts.Validate,
		save:     opts.Save,
		spinner:  sp,
		keys:     opts.Keys,
		width:    80,
		height:   24,
	}
	if !cfg.ShortPollEnabled() {
		m.values.pollPeriod = "0"
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case resultMsg:
		m.mode = ModeResult
		m.count = msg.count
		m.err = msg.err
		m.saved = msg.saved
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			return m, nil
		case ModeResult:
			return m.handleResultKeys(msg)
		}
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// submit validates the entered settings and saves them when they work.
func (m Model) submit() (tea.Model, tea.Cmd) {
	cfg, err := m.Config()
	if err != nil {
		m.mode = ModeResult
		m.err = err
		return m, nil
	}
	m.mode = ModeValidating
	m.err = nil
	return m, tea.Batch(m.spinner.Tick, m.validateAndSave(cfg))
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "enter", key.Matches(msg, m.keys.Hide), key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case msg.String() == "e":
		m.mode = ModeForm
		m.form = m.buildForm()
		return m, m.form.Init()
	case msg.String() == "r" && m.err != nil:
		return m.submit()
	}
	return m, nil
}

// Config returns the configuration described by the form.
func (m Model) Config() (*model.AppConfig, error) {
	cfg := *m.base
	v := m.values

	if err := validateURL(v.baseURL); err != nil {
		return nil, err
	}
	period, err := parsePollPeriod(v.pollPeriod)
	if err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(v.baseURL), "/")
	cfg.Namespace = strings.TrimSpace(v.namespace)
	cfg.Sound.Enabled = v.sound
	cfg.Watcher.Args.PollPeriodSecs = period
	cfg.Watcher.Name = model.WatcherShortPoll
	if period == 0 {
		cfg.Watcher.Name = model.WatcherNone
	}
	return &cfg, nil
}

// Mode returns the current screen.
func (m Model) Mode() Mode {
	return m.mode
}

// Saved reports whether the last attempt persisted the settings.
func (m Model) Saved() bool {
	return m.saved
}

// Err returns the error of the last attempt.
func (m Model) Err() error {
	return m.err
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) buildForm() *huh.Form {
	v := m.values
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Root of the site serving the notification API").
				Placeholder("https://lms.example.com").
				Value(&v.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Namespace").
				Description("Optional course or tenant to scope the count to").
				Value(&v.namespace),
			huh.NewInput().
				Title("Poll period (seconds)").
				Description("How often to refresh the unread count, 0 to disable").
				Value(&v.pollPeriod).
				Validate(func(s string) error {
					_, err := parsePollPeriod(s)
					return err
				}),
			huh.NewConfirm().
				Title("Play a sound on new notifications?").
				Value(&v.sound),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Session cookie").
				Description("Value of the sessionid cookie, stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&v.session),
			huh.NewInput().
				Title("CSRF token").
				Description("Optional; the server's csrftoken cookie is used when empty").
				EchoMode(huh.EchoModePassword).
				Value(&v.csrf),
		),
	).WithWidth(m.formWidth())
}

// validateAndSave checks the connection then persists the settings if it
// works.
func (m Model) validateAndSave(cfg *model.AppConfig) tea.Cmd {
	validate, save := m.validate, m.save
	session, csrf := m.values.session, m.values.csrf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var count int
		if validate != nil {
			n, err := validate(ctx, cfg, session, csrf)
			if err != nil {
				return resultMsg{err: fmt.Errorf("connection failed: %w", err)}
			}
			count = n
		}

		if save != nil {
			if err := save(cfg, session, csrf); err != nil {
				return resultMsg{count: count, err: fmt.Errorf("connection OK but save failed: %w", err)}
			}
		}
		return resultMsg{count: count, saved: true}
	}
}

// --- View ---

// View renders the setup UI based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeForm:
		title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
		return style.Render(title.Render("Notification Tray Setup") + "\n" + m.form.View())
	case ModeValidating:
		return style.Render(fmt.Sprintf("%s Testing connection...", m.spinner.View()))
	case ModeResult:
		return style.Render(m.viewResult())
	}
	return ""
}

func (m Model) viewResult() string {
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)
	if m.err != nil {
		errStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed)
		return errStyle.Render("Setup failed") + "\n\n" +
			m.err.Error() + "\n\n" +
			hint.Render("r retry | e edit | enter/esc quit")
	}

	okStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
	return okStyle.Render("Connection successful") + "\n\n" +
		fmt.Sprintf("Unread notifications: %d", m.count) + "\n\n" +
		hint.Render("e edit | enter/esc quit")
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Defaults ---

// APIValidator fetches the unread count with the given credentials.
func APIValidator(ctx context.Context, cfg *model.AppConfig, session, csrf string) (int, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return 0, fmt.Errorf("parsing base url: %w", err)
	}
	jar, err := api.NewCookieJar(base, map[string]string{api.SessionCookieName: session})
	if err != nil {
		return 0, err
	}

	client, err := api.NewClient(cfg.BaseURL, cfg.Endpoints,
		api.WithHTTPClient(&http.Client{Jar: jar, Timeout: 10 * time.Second}),
		api.WithTokenProvider(api.StaticToken(csrf)),
		api.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return 0, err
	}
	return client.UnreadCount(ctx)
}

// FileSaver writes cfg to path and stores the secrets in the keyring. An
// empty secret removes any stored value.
func FileSaver(path string) Saver {
	return func(cfg *model.AppConfig, session, csrf string) error {
		if err := model.SaveConfig(path, cfg); err != nil {
			return err
		}
		secrets := map[string]string{
			credential.KeySession: session,
			credential.KeyCSRF:    csrf,
		}
		var errs []error
		for k, v := range secrets {
			var err error
			if v == "" {
				err = credential.Delete(k)
			} else {
				err = credential.Set(k, v)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// --- Validators ---

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func parsePollPeriod(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("poll period must be a non-negative number of seconds")
	}
	return n, nil
}
