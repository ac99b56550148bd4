package counter

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/model"
)

// CountSource fetches the unread count.
type CountSource interface {
	UnreadCount(ctx context.Context) (int, error)
}

// RefreshMsg asks the counter to fetch the count again and display it
// whatever its value.
type RefreshMsg struct{}

// CountIncreasedMsg is emitted when a poll raised the displayed count.
// The app reacts by hydrating the pane if it has been constructed.
type CountIncreasedMsg struct {
	Count int
}

// countFetchedMsg is the result of a foreground fetch.
type countFetchedMsg struct {
	count int
	err   error
}

// BadgeData is what the badge template sees.
type BadgeData struct {
	Count int
	// Known is false until the first successful fetch.
	Known bool
}

// Options configures a counter Model.
type Options struct {
	// BadgeTemplate defaults to model.DefaultBadgeTemplate.
	BadgeTemplate string
	// Poller enables short-poll refresh when non-nil.
	Poller *Poller
	Player Player
	Logger *zap.Logger
}

// Model owns the unread count and its badge.
type Model struct {
	source CountSource
	poller *Poller
	player Player
	log    *zap.Logger
	tmpl   *template.Template

	count   *int
	badge   string
	renders int
	err     error
}

// New creates a counter model. It fails only when the badge template does
// not compile.
func New(source CountSource, opts Options) (Model, error) {
	body := opts.BadgeTemplate
	if body == "" {
		body = model.DefaultBadgeTemplate
	}
	tmpl, err := template.New("badge").Parse(body)
	if err != nil {
		return Model{}, fmt.Errorf("parsing badge template: %w", err)
	}

	m := Model{
		source: source,
		poller: opts.Poller,
		player: opts.Player,
		log:    opts.Logger,
		tmpl:   tmpl,
	}
	if m.player == nil {
		m.player = NopPlayer{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.render()
	return m, nil
}

// Init fetches the count and starts the poller, if any.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetch()}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles counter messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshMsg:
		return m, m.fetch()

	case countFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.log.Warn("unread count fetch failed", zap.Error(msg.err))
			return m, nil
		}
		m.err = nil
		m.setCount(msg.count)
		return m, nil

	case PolledCountMsg:
		var wait tea.Cmd
		if m.poller != nil {
			wait = m.poller.WaitForNextResult()
		}
		if msg.Err != nil {
			return m, wait
		}
		if msg.Count <= m.displayed() {
			return m, wait
		}
		m.setCount(msg.Count)
		return m, tea.Batch(wait, m.playSound(), increased(msg.Count))
	}

	return m, nil
}

// View returns the rendered badge.
func (m Model) View() string {
	return m.badge
}

// Count returns the displayed count and whether it is known.
func (m Model) Count() (int, bool) {
	if m.count == nil {
		return 0, false
	}
	return *m.count, true
}

// Renders returns how many times the badge has been rendered.
func (m Model) Renders() int {
	return m.renders
}

// Err returns the last fetch error, if the latest fetch failed.
func (m Model) Err() error {
	return m.err
}

// Stop halts background polling.
func (m Model) Stop() {
	if m.poller != nil {
		m.poller.Stop()
	}
}

// displayed is the count polls are compared against. An unknown count
// counts as zero.
func (m Model) displayed() int {
	if m.count == nil {
		return 0
	}
	return *m.count
}

// setCount stores n and re-renders the badge when the value changed.
func (m *Model) setCount(n int) {
	if m.count != nil && *m.count == n {
		return
	}
	m.count = &n
	m.render()
}

func (m *Model) render() {
	data := BadgeData{}
	if m.count != nil {
		data = BadgeData{Count: *m.count, Known: true}
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, data); err != nil {
		m.log.Warn("badge render failed", zap.Error(err))
		return
	}
	m.badge = buf.String()
	m.renders++
}

func (m Model) fetch() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		count, err := source.UnreadCount(ctx)
		return countFetchedMsg{count: count, err: err}
	}
}

func (m Model) playSound() tea.Cmd {
	player, log := m.player, m.log
	return func() tea.Msg {
		if err := player.Play(context.Background()); err != nil {
			log.Warn("notification sound failed", zap.Error(err))
		}
		return nil
	}
}

func increased(count int) tea.Cmd {
	return func() tea.Msg {
		return CountIncreasedMsg{Count: count}
	}
}
