package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-tray/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#69DB7C", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the top bar and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// BadgeStyle renders the unread counter next to the tray icon.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// PaneStyle wraps the notification pane overlay.
var PaneStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// PanelStyle wraps full-size overlays such as help.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// TabStyle is an inactive pane tab.
var TabStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Padding(0, 1)

// ActiveTabStyle is the selected pane tab.
var ActiveTabStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue).
	Underline(true).
	Padding(0, 1)

// GroupTitleStyle renders a family or date heading.
var GroupTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)

// ListItemStyle is the base style for notifications in the pane.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the notification under the cursor.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle is used for timestamps and read notifications.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ErrorStyle is used for the last-error hint in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Background(ColorSubtle)

// Apply selects which side of the adaptive colors is used. "auto" keeps
// the terminal's own background detection.
func Apply(name string) error {
	switch name {
	case model.ThemeAuto, "":
	case model.ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	case model.ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	default:
		return fmt.Errorf("unknown theme %q", name)
	}
	return nil
}
