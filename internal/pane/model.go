package pane

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/counter"
	"github.com/nhle/notification-tray/internal/keys"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/render"
	"github.com/nhle/notification-tray/internal/theme"
)

// requestTimeout bounds every request the pane issues.
const requestTimeout = 30 * time.Second

// Placeholders shown when a view has nothing to display.
const (
	EmptyUnreadText = "You have no unread notifications."
	EmptyAllText    = "You have no notifications."
)

// Client is the part of the API the pane talks to.
type Client interface {
	Notifications(ctx context.Context, view model.ViewSelection) ([]model.Notification, error)
	MarkAllRead(ctx context.Context) error
	MarkRead(ctx context.Context, id int64) error
}

// NavigateMsg asks the app to open URL.
type NavigateMsg struct {
	URL string
}

type registryLoadedMsg struct {
	registry *render.Registry
	report   render.LoadReport
	err      error
}

type collectionMsg struct {
	seq     uint64
	records []model.Notification
	err     error
}

type markedAllReadMsg struct {
	err error
}

type markedReadMsg struct {
	record model.Notification
	err    error
}

// Options configures a pane Model.
type Options struct {
	Keys     *keys.KeyMap
	Location *time.Location
	Logger   *zap.Logger
}

// Model lists the notifications of the selected view, grouped for display.
type Model struct {
	client Client
	loader *render.Loader
	keys   *keys.KeyMap
	log    *zap.Logger
	loc    *time.Location

	state    State
	registry *render.Registry
	loaded   bool
	groups   []render.Group
	messages []render.Message
	cursor   int

	// lineOwners maps each viewport line to a message index, or -1.
	lineOwners []int

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
}

// New creates the pane. Templates are loaded from templates during Init.
func New(client Client, templates render.TemplateSource, opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	km := opts.Keys
	if km == nil {
		km = keys.DefaultKeyMap()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:   client,
		loader:   render.NewLoader(templates, log),
		keys:     km,
		log:      log,
		loc:      loc,
		state:    NewState(),
		viewport: viewport.New(60, 10),
		spinner:  sp,
		width:    60,
		height:   14,
	}
}

// Init loads the template registry and fetches the unread collection.
func (m Model) Init() (Model, tea.Cmd) {
	var effects []Effect
	m.state, effects = fetch(m.state)
	return m, tea.Batch(
		m.loadRegistry(),
		m.run(effects),
		m.spinner.Tick,
	)
}

// Update handles pane messages and key presses while the pane is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case registryLoadedMsg:
		if msg.err != nil {
			m.log.Error("renderer templates unavailable", zap.Error(msg.err))
		}
		for key, err := range msg.report.Failures {
			m.log.Warn("renderer template skipped", zap.String("renderer", key), zap.Error(err))
		}
		m.registry = msg.registry
		m.loaded = true
		m.regroup()
		return m, nil

	case collectionMsg:
		if msg.err != nil {
			m.log.Error("notification fetch failed",
				zap.Stringer("view", m.state.View),
				zap.Error(msg.err),
			)
			return m.apply(FetchFailed{Seq: msg.seq, Err: msg.err})
		}
		return m.apply(Fetched{Seq: msg.seq, Records: msg.records})

	case markedAllReadMsg:
		if msg.err != nil {
			m.log.Error("mark all read failed", zap.Error(msg.err))
		}
		return m.apply(MarkedAllRead{Err: msg.err})

	case markedReadMsg:
		if msg.err != nil {
			m.log.Error("mark read failed", zap.Int64("id", msg.record.ID), zap.Error(msg.err))
		}
		return m.apply(MarkedRead{Record: msg.record, Err: msg.err})

	case spinner.TickMsg:
		if m.state.Status != StatusLoading && m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if !m.state.Visible {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.ViewUnread):
			return m.SelectUnread()
		case key.Matches(msg, m.keys.ViewAll):
			return m.SelectAll()
		case key.Matches(msg, m.keys.MarkAllRead):
			return m.apply(MarkAllRead{})
		case key.Matches(msg, m.keys.Visit):
			return m.VisitSelected()
		case key.Matches(msg, m.keys.Down):
			m.moveCursor(1)
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.moveCursor(-1)
			return m, nil
		}
	}

	return m, nil
}

// SelectUnread switches to (or re-fetches) the unread view.
func (m Model) SelectUnread() (Model, tea.Cmd) {
	return m.apply(SelectUnread{})
}

// SelectAll switches to the all view.
func (m Model) SelectAll() (Model, tea.Cmd) {
	return m.apply(SelectAll{})
}

// Hydrate re-fetches the current view.
func (m Model) Hydrate() (Model, tea.Cmd) {
	return m.apply(Hydrate{})
}

// Show opens the pane.
func (m Model) Show() (Model, tea.Cmd) {
	return m.apply(Show{})
}

// Hide closes the pane.
func (m Model) Hide() (Model, tea.Cmd) {
	return m.apply(Hide{})
}

// Toggle flips visibility.
func (m Model) Toggle() (Model, tea.Cmd) {
	return m.apply(Toggle{})
}

// ClickOutside hides the pane if it is open.
func (m Model) ClickOutside() (Model, tea.Cmd) {
	return m.apply(ClickOutside{})
}

// VisitSelected visits the notification under the cursor.
func (m Model) VisitSelected() (Model, tea.Cmd) {
	if m.cursor < 0 || m.cursor >= len(m.messages) {
		return m, nil
	}
	return m.apply(Visit{Record: m.messages[m.cursor].Notification})
}

// ClickInside handles a click at (x, y) relative to the pane's inner
// top-left corner. The click never reaches outside handlers.
func (m Model) ClickInside(x, y int) (Model, tea.Cmd) {
	m, _ = m.apply(ClickInside{})

	switch {
	case y == tabsRow:
		unreadWidth := lipgloss.Width(m.tab("Unread", model.ViewUnread))
		allWidth := lipgloss.Width(m.tab("View all", model.ViewAll))
		switch {
		case x < unreadWidth:
			return m.SelectUnread()
		case x < unreadWidth+allWidth:
			return m.SelectAll()
		}
	case y == actionsRow:
		if x < lipgloss.Width(markAllLabel) {
			return m.apply(MarkAllRead{})
		}
	case y >= bodyRow:
		line := y - bodyRow + m.viewport.YOffset
		if line >= 0 && line < len(m.lineOwners) && m.lineOwners[line] >= 0 {
			m.cursor = m.lineOwners[line]
			m.refreshViewport()
			return m.VisitSelected()
		}
	}
	return m, nil
}

// Visible reports whether the pane is shown.
func (m Model) Visible() bool {
	return m.state.Visible
}

// ViewSelection returns the selected tab.
func (m Model) ViewSelection() model.ViewSelection {
	return m.state.View
}

// State returns the pane's state.
func (m Model) State() State {
	return m.state
}

// Groups returns the grouped messages currently displayed.
func (m Model) Groups() []render.Group {
	return m.groups
}

// Err returns the most recent request failure.
func (m Model) Err() error {
	return m.state.Err
}

// SetSize sets the outer size of the pane box.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = max(width-frameWidth, 1)
	m.viewport.Height = max(height-frameHeight-bodyRow, 1)
	m.refreshViewport()
}

// Size returns the outer size of the pane box.
func (m Model) Size() (int, int) {
	return m.width, m.height
}

// Inner row layout of the pane box.
const (
	tabsRow    = 0
	actionsRow = 1
	bodyRow    = 3
)

// Frame occupied by the pane border and padding.
const (
	frameWidth  = 4
	frameHeight = 2
)

// InnerOffset is the offset of the pane's inner content from its outer
// top-left corner.
func InnerOffset() (int, int) {
	return frameWidth / 2, frameHeight / 2
}

const markAllLabel = "Mark as read (m)"

// View renders the pane box.
func (m Model) View() string {
	tabs := lipgloss.JoinHorizontal(lipgloss.Top,
		m.tab("Unread", model.ViewUnread),
		m.tab("View all", model.ViewAll),
	)
	if m.state.Status == StatusLoading {
		tabs += " " + m.spinner.View()
	}

	actions := theme.HelpStyle.Render(markAllLabel)
	rule := theme.DimmedStyle.Render(strings.Repeat("─", max(m.width-frameWidth, 1)))

	var body string
	switch {
	case !m.loaded || (m.state.Status == StatusLoading && len(m.state.Records) == 0):
		body = m.spinner.View() + " Loading…"
	case len(m.messages) == 0:
		body = theme.DimmedStyle.Render(m.emptyText())
	default:
		body = m.viewport.View()
	}

	content := lipgloss.JoinVertical(lipgloss.Left, tabs, actions, rule, body)
	return theme.PaneStyle.
		Width(m.width - 2).
		Height(m.height - frameHeight).
		Render(content)
}

func (m Model) tab(label string, view model.ViewSelection) string {
	if m.state.View == view {
		return theme.ActiveTabStyle.Render(label)
	}
	return theme.TabStyle.Render(label)
}

func (m Model) emptyText() string {
	if m.state.View == model.ViewAll {
		return EmptyAllText
	}
	return EmptyUnreadText
}

// apply runs one transition and turns its effects into commands.
func (m Model) apply(e Event) (Model, tea.Cmd) {
	prevView, prevLen := m.state.View, len(m.state.Records)
	var effects []Effect
	m.state, effects = Next(m.state, e)
	if _, fetched := e.(Fetched); fetched || m.state.View != prevView || len(m.state.Records) != prevLen {
		m.regroup()
	}

	cmd := m.run(effects)
	if m.state.Status == StatusLoading {
		cmd = tea.Batch(cmd, m.spinner.Tick)
	}
	return m, cmd
}

func (m Model) run(effects []Effect) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(effects))
	for _, e := range effects {
		switch e.Kind {
		case EffectFetch:
			cmds = append(cmds, m.fetchCollection(e.View, e.Seq))
		case EffectPostMarkAllRead:
			cmds = append(cmds, m.postMarkAllRead())
		case EffectPostMarkRead:
			cmds = append(cmds, m.postMarkRead(e.Record))
		case EffectNavigate:
			url := e.URL
			cmds = append(cmds, func() tea.Msg { return NavigateMsg{URL: url} })
		case EffectRefreshCounter:
			cmds = append(cmds, func() tea.Msg { return counter.RefreshMsg{} })
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) loadRegistry() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		reg, report, err := loader.Load(ctx)
		return registryLoadedMsg{registry: reg, report: report, err: err}
	}
}

func (m Model) fetchCollection(view model.ViewSelection, seq uint64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		records, err := client.Notifications(ctx, view)
		return collectionMsg{seq: seq, records: records, err: err}
	}
}

func (m Model) postMarkAllRead() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return markedAllReadMsg{err: client.MarkAllRead(ctx)}
	}
}

func (m Model) postMarkRead(record model.Notification) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		return markedReadMsg{record: record, err: client.MarkRead(ctx, record.ID)}
	}
}

// regroup recomputes the display groups from the records and registry.
func (m *Model) regroup() {
	if !m.loaded {
		return
	}
	m.groups = render.GroupNotifications(m.state.Records, m.state.View, m.registry, render.GroupOptions{
		Location: m.loc,
		Logger:   m.log,
	})
	m.messages = render.Flatten(m.groups)
	if m.cursor >= len(m.messages) {
		m.cursor = len(m.messages) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.refreshViewport()
}

func (m *Model) moveCursor(delta int) {
	if len(m.messages) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.messages)-1)
	m.refreshViewport()
}

// refreshViewport re-renders the message list and scrolls the cursor
// into view.
func (m *Model) refreshViewport() {
	var (
		lines      []string
		owners     []int
		cursorLine int
		idx        int
	)
	bodyWidth := max(m.viewport.Width-2, 1)

	for gi, g := range m.groups {
		if gi > 0 {
			lines = append(lines, "")
			owners = append(owners, -1)
		}
		lines = append(lines, theme.GroupTitleStyle.Render(g.Title))
		owners = append(owners, -1)

		for _, msg := range g.Messages {
			style := theme.ListItemStyle
			if idx == m.cursor {
				style = theme.SelectedItemStyle
				cursorLine = len(lines)
			}
			stamp := theme.DimmedStyle.Render(msg.CreatedAt.In(m.loc).Format("Jan 2 15:04"))
			text := lipgloss.NewStyle().Width(bodyWidth).Render(msg.Body)
			block := style.Render(lipgloss.JoinVertical(lipgloss.Left, text, stamp))
			for _, l := range strings.Split(block, "\n") {
				lines = append(lines, l)
				owners = append(owners, idx)
			}
			idx++
		}
	}

	m.lineOwners = owners
	m.viewport.SetContent(strings.Join(lines, "\n"))

	switch {
	case cursorLine < m.viewport.YOffset:
		m.viewport.SetYOffset(cursorLine)
	case cursorLine >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(cursorLine - m.viewport.Height + 1)
	}
}

// String describes the pane for logging.
func (m Model) String() string {
	return fmt.Sprintf("pane(view=%s, records=%d, visible=%t)",
		m.state.View, len(m.state.Records), m.state.Visible)
}
