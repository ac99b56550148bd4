package app

import (
	"context"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/counter"
	"github.com/nhle/notification-tray/internal/keys"
	"github.com/nhle/notification-tray/internal/navigate"
	"github.com/nhle/notification-tray/internal/pane"
	"github.com/nhle/notification-tray/internal/render"
	"github.com/nhle/notification-tray/internal/theme"
	"github.com/nhle/notification-tray/internal/ui"
	helpview "github.com/nhle/notification-tray/internal/ui/help"
)

// Client is everything the tray needs from the notification API.
type Client interface {
	counter.CountSource
	pane.Client
	render.TemplateSource
}

// navigatedMsg reports the outcome of opening a click link.
type navigatedMsg struct {
	url string
	err error
}

// navigateTimeout bounds how long starting the browser may take.
const navigateTimeout = 10 * time.Second

// trayIcon is drawn left of the unread badge.
const trayIcon = "🔔"

// idleText is shown in place of the closed pane.
const idleText = "Press n to open notifications"

// Options configures the root model.
type Options struct {
	Title    string
	Counter  counter.Options
	Opener   navigate.Opener
	Location *time.Location
	// LinkBase resolves relative click links.
	LinkBase *url.URL
	Logger   *zap.Logger
}

// Model is the root Bubble Tea model. It owns the header icon with the
// unread counter and constructs the notification pane on first use.
type Model struct {
	client   Client
	layout   ui.Layout
	keys     *keys.KeyMap
	counter  counter.Model
	pane     *pane.Model
	helpView helpview.Model
	showHelp bool
	opener   navigate.Opener
	linkBase *url.URL
	loc      *time.Location
	title    string
	log      *zap.Logger
	lastErr  error
	ready    bool
}

// New creates the root model.
func New(client Client, opts Options) (Model, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	counterOpts := opts.Counter
	if counterOpts.Logger == nil {
		counterOpts.Logger = log.Named("counter")
	}
	c, err := counter.New(client, counterOpts)
	if err != nil {
		return Model{}, err
	}

	opener := opts.Opener
	if opener == nil {
		opener = navigate.SystemOpener{}
	}
	title := opts.Title
	if title == "" {
		title = "Notifications"
	}

	km := keys.DefaultKeyMap()
	return Model{
		client:   client,
		layout:   ui.NewLayout(80, 24),
		keys:     km,
		counter:  c,
		helpView: helpview.New(km, 80, 24),
		opener:   opener,
		linkBase: opts.LinkBase,
		loc:      opts.Location,
		title:    title,
		log:      log,
	}, nil
}

// Init fetches the unread count and starts the poller.
func (m Model) Init() tea.Cmd {
	return m.counter.Init()
}

// Update routes messages to the counter and the pane.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.helpView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		if m.pane != nil {
			r := m.layout.PaneRect()
			m.pane.SetSize(r.W, r.H)
		}
		return m, nil

	case counter.CountIncreasedMsg:
		if m.pane == nil {
			return m, nil
		}
		return m.updatePane(m.pane.Hydrate())

	case pane.NavigateMsg:
		return m, m.navigate(msg.URL)

	case navigatedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.log.Warn("opening click link failed", zap.String("url", msg.url), zap.Error(msg.err))
			return m, nil
		}
		m.lastErr = nil
		// The page we left would have reloaded, showing fresh state.
		cmds := []tea.Cmd{func() tea.Msg { return counter.RefreshMsg{} }}
		if m.pane != nil {
			var cmd tea.Cmd
			*m.pane, cmd = m.pane.Hydrate()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	// Everything else belongs to the counter or the pane; each ignores
	// messages it does not own.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.counter, cmd = m.counter.Update(msg)
	cmds = append(cmds, cmd)
	if m.pane != nil {
		*m.pane, cmd = m.pane.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.counter.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case m.showHelp && key.Matches(msg, m.keys.Hide):
		m.showHelp = false
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		return m.clickIcon()

	case key.Matches(msg, m.keys.Hide):
		if m.pane == nil {
			return m, nil
		}
		return m.updatePane(m.pane.ClickOutside())

	case key.Matches(msg, m.keys.Refresh):
		cmds := []tea.Cmd{func() tea.Msg { return counter.RefreshMsg{} }}
		if m.pane != nil {
			var cmd tea.Cmd
			*m.pane, cmd = m.pane.Hydrate()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	if m.pane != nil && m.pane.Visible() && !m.showHelp {
		return m.updatePane(m.pane.Update(msg))
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	if m.layout.IconRect(trayIcon, m.counter.View()).Contains(msg.X, msg.Y) {
		return m.clickIcon()
	}
	if m.pane == nil || !m.pane.Visible() {
		return m, nil
	}

	r := m.layout.PaneRect()
	if r.Contains(msg.X, msg.Y) {
		ox, oy := pane.InnerOffset()
		return m.updatePane(m.pane.ClickInside(msg.X-r.X-ox, msg.Y-r.Y-oy))
	}
	return m.updatePane(m.pane.ClickOutside())
}

// clickIcon constructs the pane on first use, otherwise toggles it.
func (m Model) clickIcon() (tea.Model, tea.Cmd) {
	if m.pane == nil {
		p := pane.New(m.client, m.client, pane.Options{
			Keys:     m.keys,
			Location: m.loc,
			Logger:   m.log.Named("pane"),
		})
		r := m.layout.PaneRect()
		p.SetSize(r.W, r.H)
		p, cmd := p.Init()
		m.pane = &p
		return m, cmd
	}
	return m.updatePane(m.pane.Toggle())
}

// updatePane stores the pane returned by a pane call.
func (m Model) updatePane(p pane.Model, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	*m.pane = p
	return m, cmd
}

func (m Model) navigate(link string) tea.Cmd {
	target := link
	if m.linkBase != nil {
		if ref, err := url.Parse(link); err == nil {
			target = m.linkBase.ResolveReference(ref).String()
		}
	}
	opener := m.opener
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), navigateTimeout)
		defer cancel()
		return navigatedMsg{url: target, err: opener.Open(ctx, target)}
	}
}

// PaneConstructed reports whether the pane has been built.
func (m Model) PaneConstructed() bool {
	return m.pane != nil
}

// Pane returns the pane, or nil before the first icon click.
func (m Model) Pane() *pane.Model {
	return m.pane
}

// Counter returns the unread counter.
func (m Model) Counter() counter.Model {
	return m.counter
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title, trayIcon, m.counter.View())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusText())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) renderContent() string {
	if m.showHelp {
		return m.helpView.View()
	}
	if m.pane == nil || !m.pane.Visible() {
		return m.layout.RenderContent("", idleText)
	}
	return m.layout.RenderContent(m.pane.View(), idleText)
}

// statusText shows the last error, if any, ahead of the key hints.
func (m Model) statusText() string {
	if err := m.lastError(); err != nil {
		return theme.ErrorStyle.Render("⚠ " + err.Error())
	}
	return m.helpView.ShortView()
}

func (m Model) lastError() error {
	if err := m.counter.Err(); err != nil {
		return err
	}
	if m.pane != nil {
		if err := m.pane.Err(); err != nil {
			return err
		}
	}
	return m.lastErr
}
