package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestHeaderPutsBadgeAtIconRect(t *testing.T) {
	l := NewLayout(80, 24)

	header := l.RenderHeader("Notifications", "🔔", "12")
	r := l.IconRect("🔔", "12")

	assert.Equal(t, 80, lipgloss.Width(header))
	assert.Equal(t, 80, r.X+r.W)
	assert.True(t, strings.HasSuffix(strings.TrimRight(header, " "), "12"))
	assert.True(t, r.Contains(79, 0))
	assert.False(t, r.Contains(r.X-1, 0))
}

func TestPaneRectStaysWithinBounds(t *testing.T) {
	small := NewLayout(20, 10).PaneRect()
	assert.Equal(t, 20, small.W)
	assert.Equal(t, 0, small.X)

	wide := NewLayout(200, 50).PaneRect()
	assert.Equal(t, maxPaneWidth, wide.W)
	assert.Equal(t, 200-maxPaneWidth, wide.X)
	assert.Equal(t, 1, wide.Y)
	assert.Equal(t, 48, wide.H)
}
