// Command soundlog-sync polls recent playback for known users and appends
// it to the history store. Run it from cron or a scheduler; each run is
// independent of the web application.
package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/soundlog/soundlog/internal/config"
	"github.com/soundlog/soundlog/internal/db"
	"github.com/soundlog/soundlog/internal/ingest"
	"github.com/soundlog/soundlog/internal/spotify"
	"github.com/soundlog/soundlog/internal/token"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	app := &cli.Command{
		Name:  "soundlog-sync",
		Usage: "Sync recent Spotify plays into the history store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "Sync a single user ID instead of every known user",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent sync workers",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Upstream requests per second across all workers",
				Value: 5,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runSync(ctx, cmd, logger)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("sync failed: %v", err)
	}
}

type syncResult struct {
	userID     string
	considered int
	err        error
}

func runSync(ctx context.Context, cmd *cli.Command, logger *log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

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

	var userIDs []string
	if user := cmd.String("user"); user != "" {
		userIDs = []string{user}
	} else {
		userIDs, err = database.Users().ListIDs(ctx)
		if err != nil {
			return err
		}
	}

	runID := uuid.New().String()
	logger = logger.With("run", runID)
	logger.Info("sync run starting", "users", len(userIDs))

	workers := int(cmd.Int("workers"))
	if workers < 1 {
		workers = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cmd.Float("rate")), 1)

	jobs := make(chan string, len(userIDs))
	results := make(chan syncResult, len(userIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					results <- syncResult{userID: userID, err: err}
					continue
				}
				considered, err := ingestor.SyncHistory(ctx, userID)
				results <- syncResult{userID: userID, considered: considered, err: err}
			}
		}()
	}

	for _, id := range userIDs {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var synced, revoked, failed int
	for res := range results {
		switch {
		case res.err == nil:
			synced++
		case errors.Is(res.err, token.ErrCredentialRevoked):
			// Needs re-authorization; retrying is pointless until then.
			revoked++
			logger.Warn("user needs re-authorization", "user", res.userID)
		default:
			// Transient; the next scheduled run picks these up again.
			failed++
			logger.Warn("sync failed", "user", res.userID, "err", res.err)
		}
	}

	logger.Info("sync run finished", "synced", synced, "revoked", revoked, "failed", failed)
	return nil
}
