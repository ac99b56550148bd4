package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/notification-tray/internal/theme"
	"github.com/nhle/notification-tray/internal/ui/config"
)

// configureCmd runs the interactive setup form.
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the API location, polling and session interactively",
	Long: `Opens a form for the base URL, namespace, poll period and sound, plus
the session cookie and CSRF token. The connection is tested before the config
file is written; secrets go to the system keyring.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := theme.Apply(cfg.Display.Theme); err != nil {
		return err
	}

	m := config.New(cfg, config.Options{
		Validate: config.APIValidator,
		Save:     config.FileSaver(configPath),
	})
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("running setup: %w", err)
	}

	if done, ok := final.(config.Model); ok && done.Saved() {
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", configPath)
	}
	return nil
}
