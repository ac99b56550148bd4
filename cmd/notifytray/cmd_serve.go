package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/notification-tray/internal/logging"
	"github.com/nhle/notification-tray/internal/model"
	"github.com/nhle/notification-tray/internal/server"
	"github.com/nhle/notification-tray/internal/store"
)

var (
	serveAddr    string
	serveDBPath  string
	serveLogFile bool
)

// serveCmd runs the reference notification API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference notification API server",
	Long: `Serves the consumer notification API from a local SQLite database.

Every request acts as server.default_user_id unless server.sessions maps
session cookies to users. Writes require the csrftoken cookie echoed in the
X-CSRFToken header.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (default from config)")
	serveCmd.Flags().BoolVar(&serveLogFile, "log-file", false, "Log to the configured file instead of stderr")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServerFlags(cfg)

	logCfg := cfg.Log
	if !serveLogFile {
		logCfg.FilePath = ""
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("serving notification api",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db", cfg.Server.DBPath),
	)
	return server.New(st, cfg.Server, logging.Module(log, "server")).Run(ctx)
}

func applyServerFlags(cfg *model.AppConfig) {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDBPath != "" {
		cfg.Server.DBPath = serveDBPath
	}
}

func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return store.NewSQLiteStore(cfg.Server.DBPath)
}
