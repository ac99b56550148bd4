package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-tray/internal/theme"
)

// Rect is a screen region in cells.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the cell (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// Pane size limits.
const (
	maxPaneWidth = 64
	minPaneWidth = 24
)

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// IconRect is the area of the tray icon and its badge at the right end of
// the header.
func (l Layout) IconRect(icon, badge string) Rect {
	w := lipgloss.Width(trayIcon(icon, badge))
	return Rect{X: l.Width - w, Y: 0, W: w, H: l.HeaderHeight}
}

// trayIcon renders the icon on the header background followed by the
// unread badge.
func trayIcon(icon, badge string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		theme.HeaderStyle.Render(icon),
		theme.BadgeStyle.Render(badge),
	)
}

// PaneRect is the area of the pane dropdown, anchored under the icon.
func (l Layout) PaneRect() Rect {
	w := min(max(l.Width/2, minPaneWidth), maxPaneWidth, l.Width)
	return Rect{
		X: l.Width - w,
		Y: l.HeaderHeight,
		W: w,
		H: max(l.ContentHeight(), 0),
	}
}

// RenderHeader renders the top header bar with a title on the left and
// the tray icon with its badge on the right.
func (l Layout) RenderHeader(title, icon, badge string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	iconRendered := trayIcon(icon, badge)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(iconRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		iconRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderContent places the pane on the right of the content area, or an
// idle message when the pane is closed.
func (l Layout) RenderContent(pane string, idle string) string {
	if pane == "" {
		return lipgloss.Place(
			l.ContentWidth(), max(l.ContentHeight(), 0),
			lipgloss.Center, lipgloss.Center,
			theme.HelpStyle.Render(idle),
		)
	}
	return lipgloss.PlaceHorizontal(l.ContentWidth(), lipgloss.Right, pane)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(max(l.ContentHeight(), 0)).
		MaxHeight(max(l.ContentHeight(), 0)).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
