package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-tray/internal/model"
)

func TestApplyPicksColorSet(t *testing.T) {
	dark := lipgloss.HasDarkBackground()
	t.Cleanup(func() { lipgloss.SetHasDarkBackground(dark) })

	require.NoError(t, Apply(model.ThemeLight))
	assert.False(t, lipgloss.HasDarkBackground())

	require.NoError(t, Apply(model.ThemeDark))
	assert.True(t, lipgloss.HasDarkBackground())

	require.NoError(t, Apply(model.ThemeAuto))
	assert.True(t, lipgloss.HasDarkBackground())
}

func TestApplyRejectsUnknownTheme(t *testing.T) {
	assert.ErrorContains(t, Apply("solarized"), `unknown theme "solarized"`)
}
