// Command sprocketd is the Sprocket server daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GoCodeAlone/sprocket/category"
	"github.com/GoCodeAlone/sprocket/config"
	"github.com/GoCodeAlone/sprocket/event"
	"github.com/GoCodeAlone/sprocket/internal/version"
	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/provider/mock"
	"github.com/GoCodeAlone/sprocket/server"
	"github.com/GoCodeAlone/sprocket/session"
	"github.com/GoCodeAlone/sprocket/tool"
)

var configPath = flag.String("config", "sprocket.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting sprocketd",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	provider.RegisterFactory("mock", func(provider.Settings) provider.Provider {
		return mock.New()
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}
	store, err := category.NewSQLiteStore(filepath.Join(cfg.DataDir, "sprocket.db"))
	if err != nil {
		log.Fatalf("Failed to open category store: %v", err)
	}
	defer store.Close()

	if err := seedCategories(store, cfg, logger); err != nil {
		log.Fatalf("Failed to seed categories: %v", err)
	}

	hub := event.NewHub(logger)
	sessions := session.NewManager(store, hub, logger)

	srv := server.New(*cfg, version.Version, logger)
	srv.SetSessionManager(sessions)
	srv.SetCategoryStore(store)
	srv.SetHub(hub)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("Sprocket server running on http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-sigCh:
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", slog.Any("error", err))
	}
	sessions.CloseAll()
	fmt.Println("Shutdown complete")
}

// seedCategories inserts the config file's categories into an empty
// store. An already-populated store is left untouched so runtime edits
// survive restarts.
func seedCategories(store category.Store, cfg *config.Config, logger *slog.Logger) error {
	existing, err := store.List()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, cc := range cfg.Categories {
		servers := make([]tool.ServerConfig, 0, len(cc.ToolServers))
		for _, ts := range cc.ToolServers {
			servers = append(servers, tool.ServerConfig{
				Name:    ts.Name,
				Command: ts.Command,
				Args:    ts.Args,
			})
		}
		id, err := store.Create(&category.Category{
			Name:         cc.Name,
			SystemPrompt: cc.SystemPrompt,
			Provider:     cc.Provider,
			Model:        cc.Model,
			APIKey:       cc.APIKey,
			Endpoint:     cc.Endpoint,
			MaxTokens:    cc.MaxTokens,
			ToolServers:  servers,
		})
		if err != nil {
			return err
		}
		logger.Info("seeded category",
			slog.String("id", id),
			slog.String("name", cc.Name))
	}
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
