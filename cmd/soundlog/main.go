// Command soundlog runs the listening-history tracker web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/soundlog/soundlog/internal/config"
	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/ingest"
	"github.com/soundlog/soundlog/internal/spotify"
	"github.com/soundlog/soundlog/internal/stats"
	"github.com/soundlog/soundlog/internal/token"
	"github.com/soundlog/soundlog/internal/web"
	webfs "github.com/soundlog/soundlog/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	api := spotify.New()

	tokens := token.NewManager(
		token.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		database.Users(),
		api,
		token.WithRefreshMargin(cfg.RefreshMargin),
		token.WithProfileSync(cfg.ProfileSync),
		token.WithLogger(logger.With("component", "token")),
	)

	ingestor := ingest.New(
		tokens,
		api,
		database.Plays(),
		ingest.WithLimit(cfg.RecentLimit),
		ingest.WithLogger(logger.With("component", "ingest")),
	)

	statistics := stats.New(tokens, api, database.Plays())

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr,
		Auth:        tokens,
		Ingest:      ingestor,
		Stats:       statistics,
		Sessions:    web.NewDBSessionStore(database),
		Logger:      logger.With("component", "web"),
		TemplatesFS: templates,
		StaticFS:    static,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}
